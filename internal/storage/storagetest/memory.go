// Package storagetest provides an in-memory storage.Storage with the same
// ordering, set and conflict semantics as the PostgreSQL service.
package storagetest

import (
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is safe for concurrent use.
type Memory struct {
	// Unavailable makes every call fail with models.ErrBackendUnavailable.
	Unavailable atomic.Bool

	// Now is the server clock. Tests may replace it to force timestamp ties.
	Now func() time.Time

	mu           sync.Mutex
	rooms        map[string]*models.ChatRoom
	users        map[string]*models.User
	messages     map[string][]*models.Message
	replies      map[string][]models.Reply
	userMessages []models.UserMessage
	seq          int64

	insertFailures  int
	failAfterCommit bool

	subsMu sync.Mutex
	subs   map[string]map[*memorySubscription]struct{}
}

var _ storage.Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Now:      time.Now,
		rooms:    make(map[string]*models.ChatRoom),
		users:    make(map[string]*models.User),
		messages: make(map[string][]*models.Message),
		replies:  make(map[string][]models.Reply),
		subs:     make(map[string]map[*memorySubscription]struct{}),
	}
}

// FailInserts makes the next n InsertMessage calls fail as unavailable.
// With afterCommit the message is stored before the failure is reported,
// which is what a dropped connection after COMMIT looks like to the caller.
func (m *Memory) FailInserts(n int, afterCommit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertFailures = n
	m.failAfterCommit = afterCommit
}

// UserMessages returns a copy of the per-user history entries.
func (m *Memory) UserMessages() []models.UserMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.userMessages)
}

func (m *Memory) check() error {
	if m.Unavailable.Load() {
		return fmt.Errorf("memory store offline: %w", models.ErrBackendUnavailable)
	}
	return nil
}

func (m *Memory) CreateRoomIfAbsent(_ context.Context, room *models.ChatRoom) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	if err := room.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.RoomID]; ok {
		return false, nil
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = m.Now()
	}
	if room.Members == nil {
		room.Members = []string{}
	}
	stored := cloneRoom(*room)
	m.rooms[room.RoomID] = &stored
	return true, nil
}

func (m *Memory) ListRooms(_ context.Context) ([]models.ChatRoom, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]models.ChatRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, cloneRoom(*r))
	}
	slices.SortStableFunc(rooms, func(a, b models.ChatRoom) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return rooms, nil
}

func (m *Memory) GetRoomByID(_ context.Context, roomID string) (*models.ChatRoom, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	room := cloneRoom(*r)
	return &room, nil
}

func (m *Memory) AddRoomMember(_ context.Context, roomID, userID string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return models.ErrRoomNotFound
	}
	if !slices.Contains(r.Members, userID) {
		r.Members = append(r.Members, userID)
	}
	return nil
}

func (m *Memory) UpdateRoomLastMessage(_ context.Context, roomID string, last models.LastMessage) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return models.ErrRoomNotFound
	}
	r.LastMessage = last
	return nil
}

func (m *Memory) SaveUserIfNotExists(_ context.Context, user *models.User) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return nil
	}
	stored := *user
	stored.JoinedRooms = slices.Clone(user.JoinedRooms)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.Now()
	}
	m.users[user.ID] = &stored
	return nil
}

func (m *Memory) AddUserJoinedRoom(_ context.Context, userID, roomID string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	if !slices.Contains(u.JoinedRooms, roomID) {
		u.JoinedRooms = append(u.JoinedRooms, roomID)
	}
	return nil
}

func (m *Memory) GetUserJoinedRooms(_ context.Context, userID string) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, u.JoinedRooms...), nil
}

func (m *Memory) SaveUserMessage(_ context.Context, entry *models.UserMessage) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = uint(len(m.userMessages) + 1)
	m.userMessages = append(m.userMessages, *entry)
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg *models.Message) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertFailures > 0 && !m.failAfterCommit {
		m.insertFailures--
		return fmt.Errorf("insert dropped: %w", models.ErrBackendUnavailable)
	}

	for _, existing := range m.messages[msg.RoomID] {
		if existing.ID == msg.ID {
			return fmt.Errorf("message %s in room %s: %w", msg.ID, msg.RoomID, models.ErrMessageExists)
		}
	}

	m.seq++
	msg.Seq = m.seq
	msg.CreatedAt = m.Now()
	if msg.LikedBy == nil {
		msg.LikedBy = []string{}
	}
	stored := cloneMessage(*msg)
	stored.Replies = nil
	stored.Pending = false
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], &stored)

	if m.insertFailures > 0 {
		m.insertFailures--
		return fmt.Errorf("connection reset after commit: %w", models.ErrBackendUnavailable)
	}
	return nil
}

func (m *Memory) GetMessages(_ context.Context, roomID string) ([]models.Message, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.messages[roomID]
	out := make([]models.Message, 0, len(stored))
	for _, msg := range stored {
		out = append(out, cloneMessage(*msg))
	}
	slices.SortFunc(out, func(a, b models.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq > b.Seq:
			return -1
		case a.Seq < b.Seq:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *Memory) ToggleReaction(_ context.Context, roomID, messageID, token string) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.findMessage(roomID, messageID)
	if msg == nil {
		return nil, models.ErrMessageNotFound
	}
	msg.LikedBy = models.ToggleToken(msg.LikedBy, token)
	return slices.Clone([]string(msg.LikedBy)), nil
}

func (m *Memory) InsertReply(_ context.Context, reply *models.Reply) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findMessage(reply.RoomID, reply.MessageID) == nil {
		return models.ErrMessageNotFound
	}
	reply.CreatedAt = m.Now()
	key := replyKey(reply.RoomID, reply.MessageID)
	m.replies[key] = append(m.replies[key], *reply)
	return nil
}

func (m *Memory) GetReplies(_ context.Context, roomID, messageID string) ([]models.Reply, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.replies[replyKey(roomID, messageID)]), nil
}

func (m *Memory) findMessage(roomID, messageID string) *models.Message {
	for _, msg := range m.messages[roomID] {
		if msg.ID == messageID {
			return msg
		}
	}
	return nil
}

func replyKey(roomID, messageID string) string {
	return roomID + "/" + messageID
}

func cloneRoom(r models.ChatRoom) models.ChatRoom {
	r.Members = slices.Clone(r.Members)
	if r.PasswordHash != nil {
		hash := *r.PasswordHash
		r.PasswordHash = &hash
	}
	return r
}

func cloneMessage(msg models.Message) models.Message {
	msg.LikedBy = slices.Clone(msg.LikedBy)
	msg.Replies = slices.Clone(msg.Replies)
	if msg.Location != nil {
		loc := *msg.Location
		msg.Location = &loc
	}
	if msg.ReplyTo != nil {
		replyTo := *msg.ReplyTo
		msg.ReplyTo = &replyTo
	}
	return msg
}

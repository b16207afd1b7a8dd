// Package session is the per-device chat controller. It renders the cached
// snapshot on entry, merges optimistic sends with live snapshots by message
// id and drives reactions and replies.
package session

import (
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/cache"
	"circleup/backend/internal/livesync"
	"circleup/backend/internal/models"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Live
	Detached
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Detached:
		return "detached"
	default:
		return "uninitialized"
	}
}

// View is what the device shows.
type View struct {
	State    State
	RoomID   string
	Messages []models.Message
	Selected string
}

// Renderer is called after every change, never concurrently.
type Renderer func(View)

type Authorizer interface {
	Authorize(ctx context.Context, user models.User, roomID, password string) (bool, error)
}

type Syncer interface {
	Subscribe(ctx context.Context, roomID string, onSnapshot livesync.SnapshotFunc) (func(), error)
}

type MessageStore interface {
	Append(ctx context.Context, roomID string, sender models.Sender, id string, content models.Content) (*models.Message, error)
	ToggleReaction(ctx context.Context, roomID, messageID, userID, emoji string) ([]string, error)
	Reply(ctx context.Context, roomID, messageID string, sender models.Sender, text string) (*models.Reply, error)
	Palette() []string
}

type Uploader interface {
	UploadImage(ctx context.Context, senderID string, media attachment.MediaRef) (models.Content, error)
}

type Deps struct {
	Ledger   Authorizer
	Sync     Syncer
	Messages MessageStore
	Cache    cache.Cache
}

type Session struct {
	user   models.User
	deps   Deps
	render Renderer

	renderMu sync.Mutex

	mu          sync.Mutex
	state       State
	roomID      string
	gen         uint64
	confirmed   []models.Message
	pending     map[string]models.Message
	selected    string
	authorized  bool
	held        []models.Message
	hasHeld     bool
	unsubscribe func()
}

func New(user models.User, deps Deps, render Renderer) *Session {
	if render == nil {
		render = func(View) {}
	}
	return &Session{
		user:    user,
		deps:    deps,
		render:  render,
		pending: make(map[string]models.Message),
	}
}

// Open enters roomID, leaving the current room first. The cached snapshot
// is rendered immediately; authorization and the live subscription run
// concurrently. Snapshots that arrive before authorization completes are
// held back. When the backend is unreachable the session stays Loading
// with the cached view and is read-only until a later Open succeeds.
func (s *Session) Open(ctx context.Context, roomID, password string) error {
	if roomID == "" {
		return models.ErrRoomNotFound
	}
	s.detach()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = Loading
	s.roomID = roomID
	s.confirmed = nil
	s.pending = make(map[string]models.Message)
	s.selected = ""
	s.authorized = false
	s.held, s.hasHeld = nil, false
	s.mu.Unlock()

	s.hydrate(ctx, gen, roomID)
	s.emit()

	var (
		g           errgroup.Group
		authErr     error
		unsubscribe func()
	)
	g.Go(func() error {
		_, authErr = s.deps.Ledger.Authorize(ctx, s.user, roomID, password)
		return authErr
	})
	g.Go(func() error {
		var err error
		unsubscribe, err = s.deps.Sync.Subscribe(ctx, roomID, func(msgs []models.Message) {
			s.onSnapshot(gen, msgs)
		})
		return err
	})
	err := g.Wait()

	if authErr != nil && !errors.Is(authErr, models.ErrBackendUnavailable) {
		if unsubscribe != nil {
			unsubscribe()
		}
		s.mu.Lock()
		if s.gen == gen {
			s.state = Detached
			s.clearLocked()
		}
		s.mu.Unlock()
		s.emit()
		return fmt.Errorf("open room %s: %w", roomID, authErr)
	}

	if err != nil {
		if unsubscribe != nil {
			unsubscribe()
		}
		log.Printf("WARNING: Room %s opened offline for user %s: %v", roomID, s.user.ID, err)
		return fmt.Errorf("open room %s: %w", roomID, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.authorized = true
	held, hasHeld := s.held, s.hasHeld
	s.held, s.hasHeld = nil, false
	if hasHeld {
		s.applyLocked(held)
	}
	s.mu.Unlock()

	if hasHeld {
		s.emit()
	}
	return nil
}

// hydrate shows the cached snapshot if it belongs to roomID and was
// written for this user. Cache failures only degrade to an empty list.
func (s *Session) hydrate(ctx context.Context, gen uint64, roomID string) {
	if s.deps.Cache == nil {
		return
	}
	snap, found, err := s.deps.Cache.Load(ctx)
	if err != nil {
		log.Printf("WARNING: Failed to read cached messages for user %s: %v", s.user.ID, err)
		return
	}
	if !found || snap.RoomID != roomID || snap.UserID != s.user.ID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == Loading {
		s.confirmed = snap.Messages
	}
}

func (s *Session) onSnapshot(gen uint64, msgs []models.Message) {
	s.mu.Lock()
	if s.gen != gen || s.state == Detached {
		s.mu.Unlock()
		return
	}
	if !s.authorized {
		s.held, s.hasHeld = msgs, true
		s.mu.Unlock()
		return
	}
	s.applyLocked(msgs)
	s.mu.Unlock()

	s.emit()
}

// applyLocked makes msgs the confirmed list; optimistic entries present in
// it are dropped.
func (s *Session) applyLocked(msgs []models.Message) {
	s.confirmed = msgs
	for _, msg := range msgs {
		delete(s.pending, msg.ID)
	}
	s.state = Live
}

// Send validates content, shows it at once as pending and appends it.
// On failure the pending entry is removed and the error wraps
// models.ErrSendFailed.
func (s *Session) Send(ctx context.Context, content models.Content) error {
	if err := content.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.writableLocked() {
		s.mu.Unlock()
		return models.ErrNotInRoom
	}
	roomID, gen := s.roomID, s.gen
	id := uuid.New().String()
	s.pending[id] = models.Message{
		ID:        id,
		RoomID:    roomID,
		Text:      content.Text,
		Image:     content.Image,
		Location:  content.Location,
		CreatedAt: time.Now(),
		User:      s.user.Sender(),
		LikedBy:   []string{},
		Pending:   true,
	}
	s.mu.Unlock()
	s.emit()

	msg, err := s.deps.Messages.Append(ctx, roomID, s.user.Sender(), id, content)

	s.mu.Lock()
	if s.gen == gen {
		if _, waiting := s.pending[id]; waiting {
			if err != nil {
				delete(s.pending, id)
			} else {
				s.pending[id] = *msg
			}
		}
	}
	s.mu.Unlock()
	s.emit()

	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrSendFailed, err)
	}
	return nil
}

// SendAttachment uploads media and sends it as an image message. Nothing
// is sent when the upload fails.
func (s *Session) SendAttachment(ctx context.Context, uploader Uploader, media attachment.MediaRef) error {
	s.mu.Lock()
	writable := s.writableLocked()
	s.mu.Unlock()
	if !writable {
		return models.ErrNotInRoom
	}

	content, err := uploader.UploadImage(ctx, s.user.ID, media)
	if err != nil {
		return err
	}
	return s.Send(ctx, content)
}

// SelectForReaction marks a confirmed message as the reaction target.
func (s *Session) SelectForReaction(messageID string) error {
	s.mu.Lock()
	if !s.writableLocked() {
		s.mu.Unlock()
		return models.ErrNotInRoom
	}
	if !slices.ContainsFunc(s.confirmed, func(m models.Message) bool { return m.ID == messageID }) {
		s.mu.Unlock()
		return models.ErrMessageNotFound
	}
	s.selected = messageID
	s.mu.Unlock()

	s.emit()
	return nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	changed := s.selected != ""
	s.selected = ""
	s.mu.Unlock()

	if changed {
		s.emit()
	}
}

// React toggles emoji on the selected message. The selection is cleared
// whether or not the toggle succeeds.
func (s *Session) React(ctx context.Context, emoji string) error {
	s.mu.Lock()
	roomID, messageID := s.roomID, s.selected
	writable := s.writableLocked()
	s.mu.Unlock()

	if !writable {
		return models.ErrNotInRoom
	}
	if messageID == "" {
		return models.ErrNoSelection
	}

	_, err := s.deps.Messages.ToggleReaction(ctx, roomID, messageID, s.user.ID, emoji)
	s.ClearSelection()
	if err != nil {
		return fmt.Errorf("react to %s: %w", messageID, err)
	}
	return nil
}

func (s *Session) Reply(ctx context.Context, messageID, text string) error {
	s.mu.Lock()
	roomID := s.roomID
	writable := s.writableLocked()
	s.mu.Unlock()

	if !writable {
		return models.ErrNotInRoom
	}
	if _, err := s.deps.Messages.Reply(ctx, roomID, messageID, s.user.Sender(), text); err != nil {
		return fmt.Errorf("reply to %s: %w", messageID, err)
	}
	return nil
}

// Palette returns the fixed reaction choices.
func (s *Session) Palette() []string {
	return s.deps.Messages.Palette()
}

// Messages returns confirmed and pending messages, newest first. Pending
// entries sort by their local send time.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergedLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close leaves the current room and drops its messages from the view.
func (s *Session) Close() {
	s.detach()
	s.emit()
}

func (s *Session) detach() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	if s.state != Uninitialized {
		s.state = Detached
	}
	s.gen++
	s.clearLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// writableLocked reports whether the open room accepted this user. A room
// opened offline shows its cache but takes no writes.
func (s *Session) writableLocked() bool {
	return s.roomID != "" && s.authorized && (s.state == Loading || s.state == Live)
}

func (s *Session) clearLocked() {
	s.confirmed = nil
	s.pending = make(map[string]models.Message)
	s.held, s.hasHeld = nil, false
	s.selected = ""
	s.authorized = false
}

func (s *Session) mergedLocked() []models.Message {
	merged := make([]models.Message, 0, len(s.pending)+len(s.confirmed))
	for _, msg := range s.pending {
		merged = append(merged, msg)
	}
	// Map iteration order is random; keep pending entries deterministic.
	slices.SortFunc(merged, func(a, b models.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	merged = append(merged, s.confirmed...)
	livesync.SortSnapshot(merged)
	return merged
}

func (s *Session) viewLocked() View {
	return View{
		State:    s.state,
		RoomID:   s.roomID,
		Messages: s.mergedLocked(),
		Selected: s.selected,
	}
}

// emit renders the latest view. renderMu keeps views in build order.
func (s *Session) emit() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
}

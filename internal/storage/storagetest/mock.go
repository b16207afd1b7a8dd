package storagetest

import (
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error) {
	args := m.Called(ctx, room)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]models.ChatRoom)
	return rooms, args.Error(1)
}

func (m *MockStorage) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.ChatRoom)
	return room, args.Error(1)
}

func (m *MockStorage) AddRoomMember(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) UpdateRoomLastMessage(ctx context.Context, roomID string, last models.LastMessage) error {
	args := m.Called(ctx, roomID, last)
	return args.Error(0)
}

func (m *MockStorage) SaveUserIfNotExists(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) AddUserJoinedRoom(ctx context.Context, userID, roomID string) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *MockStorage) GetUserJoinedRooms(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockStorage) SaveUserMessage(ctx context.Context, entry *models.UserMessage) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) InsertMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *MockStorage) ToggleReaction(ctx context.Context, roomID, messageID, token string) ([]string, error) {
	args := m.Called(ctx, roomID, messageID, token)
	likedBy, _ := args.Get(0).([]string)
	return likedBy, args.Error(1)
}

func (m *MockStorage) InsertReply(ctx context.Context, reply *models.Reply) error {
	args := m.Called(ctx, reply)
	return args.Error(0)
}

func (m *MockStorage) GetReplies(ctx context.Context, roomID, messageID string) ([]models.Reply, error) {
	args := m.Called(ctx, roomID, messageID)
	replies, _ := args.Get(0).([]models.Reply)
	return replies, args.Error(1)
}

func (m *MockStorage) PublishRoomChange(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStorage) SubscribeRoomChanges(ctx context.Context, roomID string) (storage.Subscription, error) {
	args := m.Called(ctx, roomID)
	sub, _ := args.Get(0).(storage.Subscription)
	return sub, args.Error(1)
}

package rooms_test

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/storage/storagetest"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDirectory(t *testing.T) (*rooms.Directory, *storagetest.Memory) {
	t.Helper()
	store := storagetest.NewMemory()
	return rooms.NewDirectory(store, rooms.NewPasswordHasher(bcrypt.MinCost)), store
}

func TestDirectory_CreateRoom(t *testing.T) {
	creator := models.User{ID: "creator", Name: "Ada"}

	tests := []struct {
		name    string
		req     rooms.CreateRoomRequest
		wantErr error
	}{
		{name: "public", req: rooms.CreateRoomRequest{Name: "Board games"}},
		{name: "private", req: rooms.CreateRoomRequest{Name: "Secret", IsPrivate: true, Password: "abcd"}},
		{name: "blank name", req: rooms.CreateRoomRequest{Name: "   "}, wantErr: models.ErrInvalidRoom},
		{name: "private without password", req: rooms.CreateRoomRequest{Name: "Secret", IsPrivate: true}, wantErr: models.ErrMissingPassword},
		{name: "private short password", req: rooms.CreateRoomRequest{Name: "Secret", IsPrivate: true, Password: "abc"}, wantErr: models.ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			dir, store := newDirectory(t)
			ctx := context.Background()

			// Act
			room, err := dir.CreateRoom(ctx, creator, tt.req)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				listed, _ := store.ListRooms(ctx)
				assert.Empty(t, listed)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, room.RoomID, "id is generated when not supplied")
			assert.Equal(t, []string{"creator"}, []string(room.Members))
			assert.Equal(t, config.WelcomeMessageText, room.LastMessage.Text)

			joined, err := store.GetUserJoinedRooms(ctx, "creator")
			require.NoError(t, err)
			assert.Equal(t, []string{room.RoomID}, joined)
		})
	}
}

func TestDirectory_CreateRoom_HashNeverStoredRaw(t *testing.T) {
	// Arrange
	dir, _ := newDirectory(t)
	ctx := context.Background()
	hasher := rooms.NewPasswordHasher(bcrypt.MinCost)

	// Act
	first, err := dir.CreateRoom(ctx, models.User{ID: "u1"}, rooms.CreateRoomRequest{Name: "A", IsPrivate: true, Password: "abcd"})
	require.NoError(t, err)
	second, err := dir.CreateRoom(ctx, models.User{ID: "u1"}, rooms.CreateRoomRequest{Name: "B", IsPrivate: true, Password: "abcd"})
	require.NoError(t, err)

	// Assert
	details, err := dir.GetRoomDetails(ctx, first.RoomID)
	require.NoError(t, err)
	require.NotNil(t, details.PasswordHash)
	assert.NotEqual(t, "abcd", *details.PasswordHash)
	assert.True(t, hasher.Verify("abcd", *details.PasswordHash))
	assert.True(t, hasher.Verify("abcd", *second.PasswordHash), "verification of the same password is stable")
}

func TestDirectory_CreateRoom_ExistingID(t *testing.T) {
	dir, _ := newDirectory(t)
	ctx := context.Background()

	_, err := dir.CreateRoom(ctx, models.User{ID: "u1"}, rooms.CreateRoomRequest{ID: "general", Name: "General"})
	require.NoError(t, err)

	_, err = dir.CreateRoom(ctx, models.User{ID: "u2"}, rooms.CreateRoomRequest{ID: "general", Name: "Hijack"})
	assert.ErrorIs(t, err, models.ErrRoomExists)

	room, err := dir.GetRoomDetails(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)
	assert.Equal(t, "u1", room.CreatorID)
}

func TestDirectory_GetRoomDetails_NotFound(t *testing.T) {
	dir, _ := newDirectory(t)

	_, err := dir.GetRoomDetails(context.Background(), "nope")

	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestDirectory_ListRooms_BackendUnavailable(t *testing.T) {
	storageMock := new(storagetest.MockStorage)
	storageMock.On("ListRooms", mock.Anything).Return(nil, models.ErrBackendUnavailable)
	dir := rooms.NewDirectory(storageMock, rooms.NewPasswordHasher(bcrypt.MinCost))

	_, err := dir.ListRooms(context.Background())

	assert.ErrorIs(t, err, models.ErrBackendUnavailable)
	storageMock.AssertExpectations(t)
}

func TestDirectory_CreateRoom_CreatorRecordFailureIsNotFatal(t *testing.T) {
	storageMock := new(storagetest.MockStorage)
	storageMock.On("CreateRoomIfAbsent", mock.Anything, mock.AnythingOfType("*models.ChatRoom")).Return(true, nil)
	storageMock.On("SaveUserIfNotExists", mock.Anything, mock.AnythingOfType("*models.User")).Return(errors.New("boom"))
	dir := rooms.NewDirectory(storageMock, rooms.NewPasswordHasher(bcrypt.MinCost))

	room, err := dir.CreateRoom(context.Background(), models.User{ID: "u1"}, rooms.CreateRoomRequest{Name: "Room"})

	require.NoError(t, err)
	assert.Equal(t, "Room", room.Name)
	storageMock.AssertNotCalled(t, "AddUserJoinedRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestDirectory_SeedInitialRooms(t *testing.T) {
	dir, store := newDirectory(t)
	ctx := context.Background()

	require.NoError(t, dir.SeedInitialRooms(ctx))
	require.NoError(t, dir.SeedInitialRooms(ctx), "seeding is idempotent")

	listed, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, len(config.SeedRooms))
	for _, seed := range config.SeedRooms {
		room, err := store.GetRoomByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.False(t, room.IsPrivate)
		assert.Empty(t, room.Members)
	}
}

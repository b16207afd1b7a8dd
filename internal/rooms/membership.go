package rooms

import (
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"fmt"
)

// Ledger records who joined which room and guards private rooms.
type Ledger struct {
	storage storage.Storage
	hasher  *PasswordHasher
}

func NewLedger(s storage.Storage, hasher *PasswordHasher) *Ledger {
	return &Ledger{storage: s, hasher: hasher}
}

// JoinRoom adds user to the room's members and the room to the user's
// joined set. Both are set unions, so joining twice is a no-op. A rejected
// password never touches either set.
func (l *Ledger) JoinRoom(ctx context.Context, user models.User, roomID, password string) error {
	room, err := l.storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	if err := l.checkPassword(room, password); err != nil {
		return err
	}
	return l.join(ctx, user, roomID)
}

// UserJoinedRooms returns the ids of rooms the user joined; empty for
// users that never joined anything.
func (l *Ledger) UserJoinedRooms(ctx context.Context, userID string) ([]string, error) {
	ids, err := l.storage.GetUserJoinedRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("joined rooms of %s: %w", userID, err)
	}
	return ids, nil
}

// Authorize decides whether user may enter the room, joining on their behalf
// when needed. Guests view and write public rooms without joining; private
// rooms require a join from everyone; current members re-enter freely.
// joined reports whether a join was performed.
func (l *Ledger) Authorize(ctx context.Context, user models.User, roomID, password string) (joined bool, err error) {
	room, err := l.storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("open room %s: %w", roomID, err)
	}

	if room.HasMember(user.ID) {
		return false, nil
	}
	if !room.IsPrivate && user.IsGuest {
		return false, nil
	}
	if err := l.checkPassword(room, password); err != nil {
		return false, err
	}
	if err := l.join(ctx, user, roomID); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) checkPassword(room *models.ChatRoom, password string) error {
	if !room.IsPrivate {
		return nil
	}
	if password == "" {
		return models.ErrMissingPassword
	}
	if room.PasswordHash == nil || !l.hasher.Verify(password, *room.PasswordHash) {
		return models.ErrIncorrectPassword
	}
	return nil
}

func (l *Ledger) join(ctx context.Context, user models.User, roomID string) error {
	if err := l.storage.AddRoomMember(ctx, roomID, user.ID); err != nil {
		return fmt.Errorf("add member %s to %s: %w", user.ID, roomID, err)
	}
	// Членство в кімнаті і список кімнат користувача оновлюються окремо, без транзакції.
	if err := l.storage.SaveUserIfNotExists(ctx, &user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if err := l.storage.AddUserJoinedRoom(ctx, user.ID, roomID); err != nil {
		return fmt.Errorf("record room %s for %s: %w", roomID, user.ID, err)
	}
	return nil
}

// Package rooms implements the room directory and the membership ledger
// on top of storage.Storage.
package rooms

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRoomRequest carries the user's input from the create-room form.
type CreateRoomRequest struct {
	ID        string `json:"chatRoom_ID"`
	Name      string `json:"chatRoomName" binding:"required"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password"`
}

type Directory struct {
	storage storage.Storage
	hasher  *PasswordHasher
}

func NewDirectory(s storage.Storage, hasher *PasswordHasher) *Directory {
	return &Directory{storage: s, hasher: hasher}
}

// ListRooms returns every room, newest-created first.
func (d *Directory) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rooms, err := d.storage.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoomDetails returns models.ErrRoomNotFound for an unknown id.
func (d *Directory) GetRoomDetails(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	room, err := d.storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

// CreateRoom creates the room only if its id is free. The creator becomes
// the sole member and the room starts with a welcome preview.
func (d *Directory) CreateRoom(ctx context.Context, creator models.User, req CreateRoomRequest) (*models.ChatRoom, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.ErrInvalidRoom
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	room := &models.ChatRoom{
		RoomID:    id,
		Name:      name,
		CreatorID: creator.ID,
		IsPrivate: req.IsPrivate,
		Members:   []string{creator.ID},
		LastMessage: models.LastMessage{
			ID:         uuid.New().String(),
			SenderID:   config.SystemSenderID,
			SenderName: config.SystemSenderName,
			Text:       config.WelcomeMessageText,
			Timestamp:  time.Now().UTC(),
		},
	}

	if req.IsPrivate {
		if req.Password == "" {
			return nil, models.ErrMissingPassword
		}
		if len([]rune(req.Password)) < config.MinRoomPasswordLength {
			return nil, models.ErrPasswordTooShort
		}
		hash, err := d.hasher.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		room.PasswordHash = &hash
	}

	created, err := d.storage.CreateRoomIfAbsent(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", id, err)
	}
	if !created {
		return nil, fmt.Errorf("create room %s: %w", id, models.ErrRoomExists)
	}

	// Кімната вже створена; помилки запису профілю творця не відкочують її.
	if err := d.storage.SaveUserIfNotExists(ctx, &creator); err != nil {
		log.Printf("WARNING: Room %s created but creator %s was not saved: %v", id, creator.ID, err)
	} else if err := d.storage.AddUserJoinedRoom(ctx, creator.ID, id); err != nil {
		log.Printf("WARNING: Room %s created but not recorded for creator %s: %v", id, creator.ID, err)
	}

	log.Printf("INFO: Room %s (%q, private: %t) created by %s", id, name, room.IsPrivate, creator.ID)
	return room, nil
}

// SeedInitialRooms creates the default public rooms that do not exist yet.
func (d *Directory) SeedInitialRooms(ctx context.Context) error {
	for _, seed := range config.SeedRooms {
		created, err := d.storage.CreateRoomIfAbsent(ctx, &models.ChatRoom{
			RoomID:    seed.ID,
			Name:      seed.Name,
			CreatorID: config.SystemSenderID,
			Members:   []string{},
		})
		if err != nil {
			return fmt.Errorf("seed room %s: %w", seed.ID, err)
		}
		if created {
			log.Printf("INFO: Room Created: %s", seed.Name)
		} else {
			log.Printf("INFO: Room Already Exists: %s", seed.Name)
		}
	}
	return nil
}

package storage

import (
	"circleup/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the durable document store plus its change feed.
type Storage interface {
	CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error)
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	AddRoomMember(ctx context.Context, roomID, userID string) error
	UpdateRoomLastMessage(ctx context.Context, roomID string, last models.LastMessage) error

	SaveUserIfNotExists(ctx context.Context, user *models.User) error
	AddUserJoinedRoom(ctx context.Context, userID, roomID string) error
	GetUserJoinedRooms(ctx context.Context, userID string) ([]string, error)
	SaveUserMessage(ctx context.Context, entry *models.UserMessage) error

	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, roomID string) ([]models.Message, error)
	ToggleReaction(ctx context.Context, roomID, messageID, token string) ([]string, error)
	InsertReply(ctx context.Context, reply *models.Reply) error
	GetReplies(ctx context.Context, roomID, messageID string) ([]models.Reply, error)

	PublishRoomChange(ctx context.Context, roomID string) error
	SubscribeRoomChanges(ctx context.Context, roomID string) (Subscription, error)
}

// Subscription delivers a signal whenever a room's messages, reactions or
// replies change. Signals carry no payload; bursts may be merged into one.
type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// RoomChannel is the Redis Pub/Sub channel carrying change signals for a room.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// CreateRoomIfAbsent вставляє кімнату лише якщо такого RoomID ще немає.
// created=false означає, що кімната вже існувала, і room не змінюється.
func (s *Service) CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error) {
	if err := room.Validate(); err != nil {
		return false, err
	}

	result := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, DoNothing: true}).
		Create(room)
	if result.Error != nil {
		log.Printf("ERROR: Failed to create room %s: %v", room.RoomID, result.Error)
		return false, classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListRooms повертає всі кімнати, найновіші першими.
func (s *Service) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&rooms).Error; err != nil {
		log.Printf("ERROR: Failed to list rooms: %v", err)
		return nil, classify(err)
	}
	return rooms, nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, classify(err)
	}
	return &room, nil
}

// AddRoomMember додає userID до members як до множини: повторний виклик нічого не змінює.
func (s *Service) AddRoomMember(ctx context.Context, roomID, userID string) error {
	db := s.DB.WithContext(ctx)
	result := db.Model(&models.ChatRoom{}).
		Where("room_id = ? AND NOT (? = ANY(members))", roomID, userID).
		Update("members", gorm.Expr("array_append(members, ?)", userID))
	if result.Error != nil {
		log.Printf("ERROR: Failed to add user %s to room %s: %v", userID, roomID, result.Error)
		return classify(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Нуль рядків: або вже учасник, або кімнати не існує.
	var count int64
	if err := db.Model(&models.ChatRoom{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return classify(err)
	}
	if count == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

func (s *Service) UpdateRoomLastMessage(ctx context.Context, roomID string, last models.LastMessage) error {
	result := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message_id":          last.ID,
			"last_message_sender_id":   last.SenderID,
			"last_message_sender_name": last.SenderName,
			"last_message_text":        last.Text,
			"last_message_timestamp":   last.Timestamp,
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

// SaveUserIfNotExists створює запис користувача при першому вході в кімнату.
func (s *Service) SaveUserIfNotExists(ctx context.Context, user *models.User) error {
	result := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(user)

	if result.Error != nil {
		log.Printf("ERROR: Failed to save user %s on first contact: %v", user.ID, result.Error)
		return classify(result.Error)
	}

	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %s saved to database (guest: %t).", user.ID, user.IsGuest)
	}

	return nil
}

func (s *Service) AddUserJoinedRoom(ctx context.Context, userID, roomID string) error {
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND NOT (? = ANY(joined_rooms))", userID, roomID).
		Update("joined_rooms", gorm.Expr("array_append(joined_rooms, ?)", roomID)).Error
	if err != nil {
		log.Printf("ERROR: Failed to record room %s for user %s: %v", roomID, userID, err)
		return classify(err)
	}
	return nil
}

// GetUserJoinedRooms повертає порожній список для невідомого користувача.
func (s *Service) GetUserJoinedRooms(ctx context.Context, userID string) ([]string, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Select("joined_rooms").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return append([]string{}, user.JoinedRooms...), nil
}

func (s *Service) SaveUserMessage(ctx context.Context, entry *models.UserMessage) error {
	return classify(s.DB.WithContext(ctx).Create(entry).Error)
}

// InsertMessage ніколи не перезаписує існуючий документ.
// created_at і seq заповнює база (RETURNING).
func (s *Service) InsertMessage(ctx context.Context, msg *models.Message) error {
	err := s.DB.WithContext(ctx).Create(msg).Error
	if isPgDuplicateKeyError(err) {
		return fmt.Errorf("message %s in room %s: %w", msg.ID, msg.RoomID, models.ErrMessageExists)
	}
	if err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return classify(err)
	}
	return nil
}

// GetMessages повертає повідомлення кімнати, найновіші першими.
// Для однакового created_at порядок визначає seq.
func (s *Service) GetMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at desc, seq desc").
		Find(&messages).Error
	if err != nil {
		log.Printf("ERROR: Failed to get messages for room %s: %v", roomID, err)
		return nil, classify(err)
	}
	return messages, nil
}

// ToggleReaction атомарно додає або прибирає token з likedBy.
func (s *Service) ToggleReaction(ctx context.Context, roomID, messageID, token string) ([]string, error) {
	var likedBy []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "room_id", "liked_by").
			Where("room_id = ? AND id = ?", roomID, messageID).
			First(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		likedBy = models.ToggleToken(msg.LikedBy, token)
		return tx.Model(&models.Message{}).
			Where("room_id = ? AND id = ?", roomID, messageID).
			Update("liked_by", pq.StringArray(likedBy)).Error
	})
	if errors.Is(err, models.ErrMessageNotFound) {
		return nil, err
	}
	if err != nil {
		log.Printf("ERROR: Failed to toggle reaction on %s/%s: %v", roomID, messageID, err)
		return nil, classify(err)
	}
	return likedBy, nil
}

// InsertReply зберігає відповідь під батьківським повідомленням.
func (s *Service) InsertReply(ctx context.Context, reply *models.Reply) error {
	db := s.DB.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Message{}).
		Where("room_id = ? AND id = ?", reply.RoomID, reply.MessageID).
		Count(&count).Error; err != nil {
		return classify(err)
	}
	if count == 0 {
		return models.ErrMessageNotFound
	}

	if err := db.Create(reply).Error; err != nil {
		log.Printf("ERROR: Failed to save reply to %s: %v", reply.MessageID, err)
		return classify(err)
	}
	return nil
}

// GetReplies повертає відповіді у хронологічному порядку.
func (s *Service) GetReplies(ctx context.Context, roomID, messageID string) ([]models.Reply, error) {
	var replies []models.Reply
	err := s.DB.WithContext(ctx).
		Where("room_id = ? AND message_id = ?", roomID, messageID).
		Order("created_at asc").
		Find(&replies).Error
	if err != nil {
		return nil, classify(err)
	}
	return replies, nil
}

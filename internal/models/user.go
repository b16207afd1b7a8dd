package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is an identity produced by the auth provider (account or guest).
// Only accounts and guests that joined a room are persisted; the core treats
// the value as immutable for the lifetime of a session.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:text;not null;default:''" json:"name"`
	Email       *string        `gorm:"type:text" json:"email,omitempty"`
	Avatar      *string        `gorm:"type:text" json:"avatar,omitempty"`
	IsGuest     bool           `gorm:"not null;default:false" json:"isGuest"`
	JoinedRooms pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"chatRoomsJoined"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// BeforeCreate generates a UUID for the user if ID is not yet set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// DisplayName falls back to "Guest" the same way the chat screen does.
func (u User) DisplayName() string {
	if u.Name == "" {
		return "Guest"
	}
	return u.Name
}

// Sender returns the denormalised snapshot stored on messages and replies.
func (u User) Sender() Sender {
	return Sender{
		ID:     u.ID,
		Name:   u.DisplayName(),
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}

// Sender is a copy of the author's profile taken at send time.
// It is not a live reference: later profile edits do not rewrite history.
type Sender struct {
	ID     string  `gorm:"type:text;not null" json:"_id"`
	Name   string  `gorm:"type:text" json:"name"`
	Email  *string `gorm:"type:text" json:"email,omitempty"`
	Avatar *string `gorm:"type:text" json:"avatar,omitempty"`
}

// UserMessage is the per-user history entry written after each send.
type UserMessage struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      string    `gorm:"type:text;not null;index" json:"-"`
	MessageID   string    `gorm:"type:text;not null" json:"messageID"`
	RoomID      string    `gorm:"type:text;not null" json:"chatRoom_ID"`
	Text        string    `gorm:"type:text" json:"text"`
	HasImage    bool      `json:"hasImage"`
	HasLocation bool      `json:"hasLocation"`
	SentAt      time.Time `json:"sentAt"`
}

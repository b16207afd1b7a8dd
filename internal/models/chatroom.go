package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

// ChatRoom is a named channel with a membership set and an optional password gate.
// Rooms are never deleted.
type ChatRoom struct {
	// RoomID is human-chosen (seed rooms) or a generated UUID.
	RoomID string `gorm:"primaryKey" json:"chatRoom_ID"`
	// Name is the display name shown in the directory.
	Name string `gorm:"type:text;not null" json:"chatRoomName"`
	// CreatedAt is assigned by the database clock.
	CreatedAt time.Time `gorm:"autoCreateTime:false;default:now();index" json:"createdAt"`
	// CreatorID is the id of the user that created the room.
	CreatorID string `gorm:"type:text" json:"creator_ID"`
	// IsPrivate rooms require the password to join.
	IsPrivate bool `gorm:"not null;default:false" json:"isPrivate"`
	// PasswordHash is a one-way hash, never the raw password. It is not sent to clients.
	PasswordHash *string `gorm:"type:text" json:"-"`
	// Members is the set of user ids that joined the room.
	Members pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"members"`
	// LastMessage is the denormalised preview used by the directory listing.
	LastMessage LastMessage `gorm:"embedded;embeddedPrefix:last_message_" json:"lastMessage"`
}

// LastMessage is the preview of the most recent message in a room.
type LastMessage struct {
	ID         string    `gorm:"type:text" json:"_id"`
	SenderID   string    `gorm:"type:text" json:"senderID"`
	SenderName string    `gorm:"type:text" json:"senderName"`
	Text       string    `gorm:"type:text" json:"text"`
	Timestamp  time.Time `json:"createdAt"`
}

// Validate checks the private room invariant.
func (r *ChatRoom) Validate() error {
	if r.IsPrivate && (r.PasswordHash == nil || *r.PasswordHash == "") {
		return ErrMissingPassword
	}
	return nil
}

// HasMember reports whether userID is in the room's member set.
func (r *ChatRoom) HasMember(userID string) bool {
	return slices.Contains(r.Members, userID)
}

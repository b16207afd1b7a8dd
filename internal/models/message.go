package models

import (
	"time"

	"github.com/lib/pq"
)

// Message is one entry of a room's ordered log.
// It is immutable after creation except for LikedBy.
type Message struct {
	// ID is generated by the sending client and used as the document key.
	ID string `gorm:"primaryKey;type:text" json:"_id"`
	// RoomID is the storage path of the message.
	RoomID string `gorm:"primaryKey;type:text;index:idx_room_created,priority:1" json:"-"`
	// Seq is the insertion order, used to break createdAt ties.
	Seq int64 `gorm:"autoIncrement;not null" json:"-"`

	Text     string    `gorm:"type:text" json:"text"`
	Image    string    `gorm:"type:text" json:"image,omitempty"`
	Location *Location `gorm:"serializer:json;type:jsonb" json:"location,omitempty"`

	// CreatedAt is assigned by the database clock and is authoritative for ordering.
	CreatedAt time.Time      `gorm:"autoCreateTime:false;default:now();index:idx_room_created,priority:2,sort:desc" json:"createdAt"`
	User      Sender         `gorm:"embedded;embeddedPrefix:user_" json:"user"`
	LikedBy   pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"likedBy"`
	ReplyTo   *string        `gorm:"type:text" json:"replyTo,omitempty"`

	// Replies are joined onto the message by the live listener.
	Replies []Reply `gorm:"-" json:"replies"`
	// Pending marks an optimistic local entry not yet confirmed by the store.
	Pending bool `gorm:"-" json:"pending,omitempty"`
}

// Content returns the variant payload carried by the message.
func (m *Message) Content() Content {
	c := Content{Text: m.Text, Image: m.Image}
	if m.Location != nil {
		loc := *m.Location
		c.Location = &loc
	}
	return c
}

// Reply is stored under its parent message and never appears in the
// top-level ordered list.
type Reply struct {
	ID        string    `gorm:"primaryKey;type:text" json:"_id"`
	RoomID    string    `gorm:"type:text;not null;index:idx_reply_parent,priority:1" json:"-"`
	MessageID string    `gorm:"type:text;not null;index:idx_reply_parent,priority:2" json:"replyTo"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;default:now()" json:"createdAt"`
	User      Sender    `gorm:"embedded;embeddedPrefix:user_" json:"user"`
}

// Summary builds the directory preview for this message.
func (m *Message) Summary() LastMessage {
	text := m.Text
	switch {
	case text != "":
	case m.Image != "":
		text = "📷 Image"
	case m.Location != nil:
		text = "📍 Location"
	}
	return LastMessage{
		ID:         m.ID,
		SenderID:   m.User.ID,
		SenderName: m.User.Name,
		Text:       text,
		Timestamp:  m.CreatedAt,
	}
}

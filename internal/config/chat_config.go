package config

import "time"

const (
	// Rooms
	MinRoomPasswordLength = 4
	WelcomeMessageText    = "Welcome to the room! Say hi 👋"
	SystemSenderID        = "system"
	SystemSenderName      = "CircleUp"

	// Local cache
	CacheKeyPrefix = "cachedMessages"

	// Attachments
	DefaultUploadTimeout      = 30 * time.Second
	DefaultMaxAttachmentBytes = 10 << 20

	// Message writes
	DefaultWriteRetries    = 3
	DefaultWriteRetryDelay = 200 * time.Millisecond

	// Live sync
	DefaultReplyFetchConcurrency = 8

	// WebSocket pumps
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 64 << 10
	SendBuffer     = 32
)

// ReactionPalette is the fixed set of reaction tokens offered to users.
var ReactionPalette = []string{"👍", "❤️", "😂", "🔥", "😮"}

// SeedRoom describes a public room created on first start.
type SeedRoom struct {
	ID   string
	Name string
}

// SeedRooms are created if absent when SEED_ROOMS is enabled.
var SeedRooms = []SeedRoom{
	{ID: "general", Name: "General Chat"},
	{ID: "sports", Name: "Sports Talk"},
	{ID: "music", Name: "Music Lounge"},
}

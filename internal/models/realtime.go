package models

// Command types accepted from a connected device.
const (
	CommandOpen           = "open"
	CommandSend           = "send"
	CommandLocation       = "location"
	CommandSelect         = "select"
	CommandClearSelection = "clear_selection"
	CommandReact          = "react"
	CommandReply          = "reply"
	CommandClose          = "close"
)

// Event types pushed to a connected device.
const (
	EventView    = "view"
	EventPalette = "palette"
	EventAlert   = "alert"
)

// ClientCommand is one inbound WebSocket frame.
type ClientCommand struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	Password  string    `json:"password,omitempty"`
	Text      string    `json:"text,omitempty"`
	Image     string    `json:"image,omitempty"`
	Location  *Location `json:"location,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
}

// Content extracts the send payload of the command.
func (c ClientCommand) Content() Content {
	return Content{Text: c.Text, Image: c.Image, Location: c.Location}
}

// ServerEvent is one outbound WebSocket frame.
type ServerEvent struct {
	Type      string    `json:"type"`
	State     string    `json:"state,omitempty"`
	RoomID    string    `json:"roomId,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Selected  string    `json:"selected,omitempty"`
	Reactions []string  `json:"reactions,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

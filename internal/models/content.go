package models

import "strings"

// ContentKind is a bit set of the variants present in a Content.
type ContentKind uint8

const (
	KindText ContentKind = 1 << iota
	KindImage
	KindLocation
)

// Has reports whether k includes every bit of other.
func (k ContentKind) Has(other ContentKind) bool { return k&other == other }

// Location is a shared coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within range.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Content is the message payload. Text may accompany an image; at least
// one variant must be present.
type Content struct {
	Text     string    `json:"text,omitempty"`
	Image    string    `json:"image,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// TextContent builds a text message payload.
func TextContent(text string) Content {
	return Content{Text: text}
}

// ImageContent builds an image payload with an optional caption.
func ImageContent(url, caption string) Content {
	return Content{Image: url, Text: caption}
}

// LocationContent builds a location share payload.
func LocationContent(latitude, longitude float64) Content {
	return Content{Location: &Location{Latitude: latitude, Longitude: longitude}}
}

// Kind returns which variants are present.
func (c Content) Kind() ContentKind {
	var k ContentKind
	if strings.TrimSpace(c.Text) != "" {
		k |= KindText
	}
	if c.Image != "" {
		k |= KindImage
	}
	if c.Location != nil {
		k |= KindLocation
	}
	return k
}

// Validate rejects empty payloads and out of range coordinates.
func (c Content) Validate() error {
	if c.Kind() == 0 {
		return ErrEmptyContent
	}
	if c.Location != nil && !c.Location.Valid() {
		return ErrInvalidLocation
	}
	return nil
}

package chathub

import "circleup/backend/internal/models"

// Client is one connected device. The hub only tracks and closes clients;
// everything room related lives in the client's chat session.
type Client interface {
	// GetConnID returns the unique id of this connection. One user may hold
	// several connections.
	GetConnID() string
	// GetUserID returns the identity the connection authenticated as.
	GetUserID() string

	// GetSendChannel returns the channel the client's write pump drains.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close leaves the current room and stops both pumps. It is idempotent.
	Close()
}

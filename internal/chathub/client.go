package chathub

import "rallymatch/backend/internal/models"

// Client is one live connection attached to a chat session. The hub only
// depends on this interface, so transports other than WebSocket can plug in.
type Client interface {
	// GetUserID returns the identity of the connected user.
	GetUserID() string
	// GetSessionID returns the chat session the connection is attached to.
	GetSessionID() string

	// Deliver queues an event for the connection without blocking. It returns
	// false when the client is closed or cannot keep up.
	Deliver(models.Event) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the outgoing side down. It is safe to call more than once.
	Close()
}

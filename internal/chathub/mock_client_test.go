package chathub_test

import (
	"sync"

	"rallymatch/backend/internal/models"
)

type MockClient struct {
	userID    string
	sessionID string

	RecvChannel chan models.Event

	mu     sync.Mutex
	closed bool
	full   bool
}

func newMockClient(userID, sessionID string) *MockClient {
	return &MockClient{
		userID:      userID,
		sessionID:   sessionID,
		RecvChannel: make(chan models.Event, 64),
	}
}

func (c *MockClient) GetUserID() string    { return c.userID }
func (c *MockClient) GetSessionID() string { return c.sessionID }

func (c *MockClient) Deliver(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	select {
	case c.RecvChannel <- ev:
		return true
	default:
		return false
	}
}

// Stall makes every further delivery fail as if the client fell behind.
func (c *MockClient) Stall() {
	c.mu.Lock()
	c.full = true
	c.mu.Unlock()
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

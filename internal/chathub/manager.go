// Package chathub attaches live connections to chat sessions: every attached
// client receives the session's messages in order and may append new ones.
package chathub

import (
	"context"
	"errors"
	"sync"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/models"
)

// Messenger is the slice of the message coordinator the hub uses.
type Messenger interface {
	Append(ctx context.Context, in messaging.AppendInput) (*models.Message, error)
	Subscribe(ctx context.Context, sessionID string) (*messaging.Subscription, error)
}

// ManagerService owns the set of connected clients. Registration and removal
// go through channels consumed by Run, so the client map has one writer.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client

	Messenger Messenger
	Log       logging.Logger

	mu      sync.RWMutex
	clients map[Client]*messaging.Subscription

	done chan struct{}
}

func NewManagerService(messenger Messenger, log logging.Logger) *ManagerService {
	if log == nil {
		log = logging.Nop()
	}
	return &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Messenger:    messenger,
		Log:          log,
		clients:      make(map[Client]*messaging.Subscription),
		done:         make(chan struct{}),
	}
}

// Run serves registrations until ctx ends, then detaches every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case c := <-m.RegisterCh:
			m.register(ctx, c)
		case c := <-m.UnregisterCh:
			m.unregister(c)
		case <-ctx.Done():
			m.mu.RLock()
			all := make([]Client, 0, len(m.clients))
			for c := range m.clients {
				all = append(all, c)
			}
			m.mu.RUnlock()
			for _, c := range all {
				m.unregister(c)
			}
			m.Log.Info(context.Background(), "chat hub stopped", "detached", len(all))
			return
		}
	}
}

// Register hands c to Run. It returns false if the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister detaches c. Unknown or already detached clients are ignored.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// ClientCount reports how many clients are attached.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *ManagerService) register(ctx context.Context, c Client) {
	sub, err := m.Messenger.Subscribe(ctx, c.GetSessionID())
	if err != nil {
		m.Log.Warn(ctx, "subscribe failed", "user", c.GetUserID(), "session", c.GetSessionID(), "error", err)
		c.Deliver(errorEvent(err))
		c.Close()
		return
	}

	m.mu.Lock()
	m.clients[c] = sub
	m.mu.Unlock()
	m.Log.Debug(ctx, "client attached", "user", c.GetUserID(), "session", c.GetSessionID())

	go m.forward(c, sub)
}

func (m *ManagerService) unregister(c Client) {
	m.mu.Lock()
	sub, ok := m.clients[c]
	delete(m.clients, c)
	m.mu.Unlock()
	if !ok {
		return
	}
	sub.Close()
	c.Close()
	m.Log.Debug(context.Background(), "client detached", "user", c.GetUserID(), "session", c.GetSessionID())
}

// forward copies the subscription into the client until either side ends.
func (m *ManagerService) forward(c Client, sub *messaging.Subscription) {
	for msg := range sub.Messages() {
		if !c.Deliver(models.Event{Type: models.EventMessage, Message: &msg}) {
			m.Log.Warn(context.Background(), "client too slow, dropping", "user", c.GetUserID(), "session", c.GetSessionID())
			m.Unregister(c)
			return
		}
	}
	if err := sub.Err(); err != nil {
		c.Deliver(errorEvent(err))
		m.Unregister(c)
	}
}

// HandleIncoming appends text sent by c to its session. Failures are reported
// back to c as error events; the new message itself reaches c through its
// subscription like everybody else's.
func (m *ManagerService) HandleIncoming(ctx context.Context, c Client, in models.OutgoingText) error {
	_, err := m.Messenger.Append(ctx, messaging.AppendInput{
		SessionID:   c.GetSessionID(),
		SenderID:    c.GetUserID(),
		Text:        in.Text,
		ClientToken: in.ClientToken,
	})
	if err != nil {
		m.Log.Debug(ctx, "append rejected", "user", c.GetUserID(), "session", c.GetSessionID(), "error", err)
		c.Deliver(errorEvent(err))
	}
	return err
}

// errorEvent keeps internal details out of what the client sees.
func errorEvent(err error) models.Event {
	msg := "internal error"
	switch {
	case errors.Is(err, common.ErrEmptyMessage):
		msg = "message is empty"
	case errors.Is(err, common.ErrInvalidSender):
		msg = "not a participant of this chat"
	case errors.Is(err, common.ErrInvalidArgument):
		msg = "invalid message"
	case errors.Is(err, common.ErrNotFound):
		msg = "chat not found"
	case errors.Is(err, common.ErrStoreUnavailable):
		msg = "temporarily unavailable, try again"
	}
	return models.Event{Type: models.EventError, Error: msg}
}

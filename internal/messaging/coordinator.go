// Package messaging appends messages to chat sessions and streams them to
// subscribers in sequence order.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/storage"
)

// Store is what the coordinator needs from persistence.
type Store interface {
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	storage.MessageStore
}

type Option func(*Coordinator)

func WithLogger(log logging.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMaxLength caps message text, in runes, after trimming.
func WithMaxLength(n int) Option {
	return func(c *Coordinator) { c.maxLength = n }
}

// WithPageSize sets how many messages one backfill read fetches.
func WithPageSize(n int) Option {
	return func(c *Coordinator) { c.pageSize = n }
}

type Coordinator struct {
	store     Store
	log       logging.Logger
	maxLength int
	pageSize  int
}

func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		log:       logging.Nop(),
		maxLength: config.MaxMessageLength,
		pageSize:  config.HistoryPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageSize <= 0 {
		c.pageSize = config.HistoryPageSize
	}
	return c
}

// AppendInput is one send request. ClientToken is optional; a repeated token
// returns the message stored the first time.
type AppendInput struct {
	SessionID   string
	SenderID    string
	Text        string
	ClientToken string
}

// Append validates and stores a message. The store assigns Seq and CreatedAt.
func (c *Coordinator) Append(ctx context.Context, in AppendInput) (*models.Message, error) {
	cs, err := c.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if !cs.HasParticipant(in.SenderID) {
		return nil, fmt.Errorf("append to %s: %w", cs.ID, common.ErrInvalidSender)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, common.ErrEmptyMessage
	}
	if c.maxLength > 0 && utf8.RuneCountInString(text) > c.maxLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", common.ErrInvalidArgument, c.maxLength)
	}

	msg := &models.Message{
		SessionID: cs.ID,
		SenderID:  in.SenderID,
		Text:      text,
	}
	if tok := strings.TrimSpace(in.ClientToken); tok != "" {
		msg.ClientToken = &tok
	}

	stored, created, err := c.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if created {
		c.log.Debug(ctx, "message appended", "session", cs.ID, "seq", stored.Seq, "sender", in.SenderID)
	} else {
		c.log.Debug(ctx, "duplicate client token", "session", cs.ID, "seq", stored.Seq)
	}
	return stored, nil
}

// History returns up to one page of messages with Seq greater than afterSeq,
// in Seq order.
func (c *Coordinator) History(ctx context.Context, sessionID string, afterSeq int64) ([]models.Message, error) {
	if _, err := c.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return c.store.ListMessages(ctx, sessionID, afterSeq, c.pageSize)
}

// Subscribe streams every message of the session, history first, then live
// commits, each exactly once and in Seq order. The stream ends when ctx ends,
// when Close is called or when the store fails.
func (c *Coordinator) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	if _, err := c.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	// Watch before reading history: a commit landing in between shows up in
	// both and is dropped as a duplicate, instead of being lost.
	watch, err := c.store.WatchMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(sessionID)
	go sub.run(ctx, c, watch)
	return sub, nil
}

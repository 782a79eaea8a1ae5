package messaging

import (
	"context"
	"errors"
	"sync"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/storage"
)

var errFeedClosed = errors.New("message feed closed")

// Subscription is one live stream of a session's messages.
type Subscription struct {
	sessionID string
	out       chan models.Message
	stop      chan struct{}
	finished  chan struct{}
	once      sync.Once

	// last is the Seq of the newest delivered message; run owns it.
	last int64

	mu  sync.Mutex
	err error
}

func newSubscription(sessionID string) *Subscription {
	return &Subscription{
		sessionID: sessionID,
		out:       make(chan models.Message, config.SubscriptionBuffer),
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Messages is closed when the subscription ends.
func (s *Subscription) Messages() <-chan models.Message {
	return s.out
}

// Close stops delivery and releases the store watch. It never fails and may be
// called any number of times.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.finished
}

// Err reports why the stream ended on its own. It is nil while the stream is
// live and after Close or context cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context, c *Coordinator, watch *storage.Watch) {
	defer close(s.finished)
	defer close(s.out)
	defer watch.Close()

	if !s.catchUp(ctx, c) {
		return
	}

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case m, ok := <-watch.C:
			if !ok {
				if ctx.Err() == nil {
					s.fail(common.Unavailable("subscribe "+s.sessionID, errFeedClosed))
				}
				return
			}
			if m.Seq <= s.last {
				continue
			}
			if m.Seq > s.last+1 {
				// Something between last and m was missed or is still in
				// flight. The store has it.
				if !s.catchUp(ctx, c) {
					return
				}
				continue
			}
			if !s.deliver(ctx, m) {
				return
			}
		}
	}
}

// catchUp delivers everything the store holds after the last delivered Seq.
func (s *Subscription) catchUp(ctx context.Context, c *Coordinator) bool {
	for {
		page, err := c.store.ListMessages(ctx, s.sessionID, s.last, c.pageSize)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn(ctx, "subscription backfill failed", "session", s.sessionID, "error", err)
				s.fail(err)
			}
			return false
		}
		for _, m := range page {
			if m.Seq <= s.last {
				continue
			}
			if !s.deliver(ctx, m) {
				return false
			}
		}
		if len(page) < c.pageSize {
			return true
		}
	}
}

func (s *Subscription) deliver(ctx context.Context, m models.Message) bool {
	select {
	case s.out <- m:
		s.last = m.Seq
		return true
	case <-s.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// Package swipe walks a viewer through their ranked candidates and opens a
// chat session for every accepted one.
package swipe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/session"

	"github.com/sethvargo/go-retry"
)

type Direction int

const (
	Reject Direction = iota
	Accept
)

func (d Direction) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// ParseDirection accepts "accept"/"like"/"right" and "reject"/"skip"/"left".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "accept", "like", "right":
		return Accept, nil
	case "reject", "skip", "left":
		return Reject, nil
	}
	return Reject, fmt.Errorf("%w: unknown direction %q", common.ErrInvalidArgument, s)
}

// Resolver opens the chat session of a pair.
type Resolver interface {
	Resolve(ctx context.Context, a, b string) (*models.ChatSession, error)
}

// AcceptPolicy bounds the background resolution started by an accept.
// Only store outages are retried.
type AcceptPolicy struct {
	Retries uint64
	Backoff time.Duration
	Timeout time.Duration
}

func DefaultAcceptPolicy() AcceptPolicy {
	return AcceptPolicy{
		Retries: config.AcceptResolveRetries,
		Backoff: config.AcceptResolveBackoff,
		Timeout: config.AcceptResolveTimeout,
	}
}

// FailureFunc learns about accepts whose session could not be opened.
type FailureFunc func(ctx context.Context, viewerID, candidateID string, err error)

type Option func(*Controller)

func WithPolicy(p AcceptPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

func WithOnResolveFailure(fn FailureFunc) Option {
	return func(c *Controller) { c.onFailure = fn }
}

func WithLogger(log logging.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Decision is the outcome of one swipe.
type Decision struct {
	Candidate models.RankedCandidate
	Direction Direction
	// Advanced is false when there was nothing left to decide on.
	Advanced bool
	// Resolution is set for accepts only.
	Resolution *session.Resolution
}

// Controller is the cursor of one viewer over their ranked feed.
type Controller struct {
	viewerID  string
	resolver  Resolver
	policy    AcceptPolicy
	onFailure FailureFunc
	log       logging.Logger

	mu     sync.Mutex
	ranked []models.RankedCandidate
	cursor int
}

func NewController(viewerID string, resolver Resolver, opts ...Option) *Controller {
	c := &Controller{
		viewerID: viewerID,
		resolver: resolver,
		policy:   DefaultAcceptPolicy(),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ViewerID() string { return c.viewerID }

// Refresh replaces the candidate sequence and starts over from its head.
func (c *Controller) Refresh(ranked []models.RankedCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranked = append([]models.RankedCandidate(nil), ranked...)
	c.cursor = 0
}

// Current is the candidate on screen; false once the feed is exhausted.
func (c *Controller) Current() (models.RankedCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor >= len(c.ranked) {
		return models.RankedCandidate{}, false
	}
	return c.ranked[c.cursor], true
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ranked) - c.cursor
}

func (c *Controller) Exhausted() bool {
	return c.Remaining() == 0
}

// Decide records a swipe on the current candidate and moves to the next one.
// The cursor moves whatever happens to the session resolution an accept
// starts; that resolution runs in the background and outlives ctx.
func (c *Controller) Decide(ctx context.Context, dir Direction) Decision {
	c.mu.Lock()
	if c.cursor >= len(c.ranked) {
		c.mu.Unlock()
		return Decision{Direction: dir}
	}
	cand := c.ranked[c.cursor]
	c.cursor++
	c.mu.Unlock()

	d := Decision{Candidate: cand, Direction: dir, Advanced: true}
	c.log.Debug(ctx, "swipe", "viewer", c.viewerID, "candidate", cand.Profile.ID, "direction", dir.String())
	if dir == Accept {
		d.Resolution = c.startResolve(context.WithoutCancel(ctx), cand.Profile.ID)
	}
	return d
}

func (c *Controller) startResolve(ctx context.Context, candidateID string) *session.Resolution {
	policy := c.policy
	return session.Async(func() (*models.ChatSession, error) {
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}

		base := policy.Backoff
		if base <= 0 {
			base = time.Millisecond
		}
		var cs *models.ChatSession
		backoff := retry.WithMaxRetries(policy.Retries, retry.NewExponential(base))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			got, err := c.resolver.Resolve(ctx, c.viewerID, candidateID)
			if err != nil {
				if common.Retryable(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			cs = got
			return nil
		})
		if err != nil {
			c.log.Error(ctx, "accept did not open a session", "viewer", c.viewerID, "candidate", candidateID, "error", err)
			if c.onFailure != nil {
				c.onFailure(ctx, c.viewerID, candidateID, err)
			}
			return nil, err
		}
		return cs, nil
	})
}

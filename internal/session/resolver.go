// Package session resolves the single chat session shared by a pair of users.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Store is what the resolver needs from persistence.
type Store interface {
	storage.SessionStore
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	LastMessage(ctx context.Context, sessionID string) (*models.Message, error)
}

// CreatedFunc is called once, by the caller whose write created the session.
type CreatedFunc func(ctx context.Context, cs models.ChatSession)

type Option func(*Resolver)

func WithLogger(log logging.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithTimeout bounds one shared resolution, independent of the callers
// waiting on it.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithOnCreated registers a hook fired after a new session is stored.
func WithOnCreated(fn CreatedFunc) Option {
	return func(r *Resolver) { r.onCreated = fn }
}

// Resolver maps an unordered pair of identities to their one chat session.
// Uniqueness comes from the store's conditional create on the pair key; the
// singleflight group only saves round trips for callers in this process.
type Resolver struct {
	store     Store
	log       logging.Logger
	onCreated CreatedFunc
	timeout   time.Duration
	group     singleflight.Group
}

func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, log: logging.Nop(), timeout: config.AcceptResolveTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the session for {a, b}, creating it if needed. Argument
// order does not matter. Concurrent callers, in this process or in others
// sharing the store, all get the same session.
func (r *Resolver) Resolve(ctx context.Context, a, b string) (*models.ChatSession, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, fmt.Errorf("resolve session: %w: empty identity", common.ErrInvalidArgument)
	}
	if a == b {
		return nil, fmt.Errorf("resolve session: %w: cannot chat with yourself", common.ErrInvalidArgument)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	key := models.PairKey(a, b)
	// The shared call must not die with whichever caller happened to start it,
	// but a hung store must not keep it alive for later callers either.
	ch := r.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolve(fctx, a, b, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		cs := *res.Val.(*models.ChatSession)
		return &cs, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve session: %w", ctx.Err())
	}
}

func (r *Resolver) resolve(ctx context.Context, a, b, key string) (*models.ChatSession, error) {
	existing, err := r.store.FindSessionByPairKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	lo, hi := models.SortPair(a, b)
	cs := &models.ChatSession{
		ID:      uuid.New().String(),
		PairKey: key,
		User1ID: lo,
		User2ID: hi,
	}
	created, err := r.store.CreateSessionIfAbsent(ctx, cs)
	if err != nil {
		return nil, err
	}

	if !created {
		// Someone else won the conditional create.
		existing, err = r.store.FindSessionByPairKey(ctx, key)
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Unavailable("resolve session", err)
		}
		if err != nil {
			return nil, err
		}
		r.log.Debug(ctx, "session already existed", "session", existing.ID)
		return existing, nil
	}

	r.log.Info(ctx, "session created", "session", cs.ID, "user1", cs.User1ID, "user2", cs.User2ID)
	if r.onCreated != nil {
		r.onCreated(ctx, *cs)
	}
	return cs, nil
}

// ListForUser returns the user's chats, newest session first, with the peer's
// public details and the latest message text.
func (r *Resolver) ListForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	sessions, err := r.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]string, 0, len(sessions))
	for i := range sessions {
		peerIDs = append(peerIDs, sessions[i].OtherParticipant(userID))
	}
	peers, err := r.store.GetProfiles(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Profile, len(peers))
	for _, p := range peers {
		byID[p.ID] = p
	}

	out := make([]models.ChatSummary, 0, len(sessions))
	for i := range sessions {
		cs := &sessions[i]
		sum := models.ChatSummary{
			SessionID: cs.ID,
			PeerID:    cs.OtherParticipant(userID),
			CreatedAt: cs.CreatedAt,
		}
		if p, ok := byID[sum.PeerID]; ok {
			sum.PeerName = p.Name
			sum.PeerAvatar = p.AvatarURL
		}

		last, err := r.store.LastMessage(ctx, cs.ID)
		switch {
		case err == nil:
			sum.LastMessage = last.Text
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

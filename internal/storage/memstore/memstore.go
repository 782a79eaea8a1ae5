// Package memstore is an in-memory implementation of storage.Storage. The
// server uses it when STORE_DRIVER=memory; the core packages test against it.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/storage"

	"github.com/google/uuid"
)

type sessionState struct {
	session  models.ChatSession
	messages []models.Message
	tokens   map[string]int // client token -> index into messages
	watchers map[*watcher]struct{}
}

type watcher struct {
	ch   chan models.Message
	done chan struct{}
}

// Store keeps every record in maps guarded by one mutex. The mutex plays the
// part of the database's uniqueness constraint and row lock.
type Store struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	order    []string // profile ids in creation order
	sessions map[string]*sessionState
	byPair   map[string]string // pair key -> session id

	// Now is the store clock; tests may replace it.
	Now func() time.Time
	// Unavailable, when set, makes every call fail with common.ErrStoreUnavailable.
	Unavailable func() bool
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{
		profiles: make(map[string]models.Profile),
		sessions: make(map[string]*sessionState),
		byPair:   make(map[string]string),
		Now:      time.Now,
	}
}

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.Unavailable != nil && s.Unavailable() {
		return common.Unavailable(op, fmt.Errorf("memstore offline"))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.check(ctx, "ping")
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if err := s.check(ctx, "get profile"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("get profile: %w", common.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if err := s.check(ctx, "get profiles"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if err := s.check(ctx, "create profile"); err != nil {
		return err
	}
	if err := p.BeforeCreate(nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return fmt.Errorf("create profile: %w", common.ErrAlreadyExists)
	}
	now := s.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.profiles[p.ID] = *p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	if err := s.check(ctx, "save profile"); err != nil {
		return err
	}
	if err := p.BeforeCreate(nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	if old, exists := s.profiles[p.ID]; exists {
		p.CreatedAt = old.CreatedAt
	} else {
		p.CreatedAt = now
		s.order = append(s.order, p.ID)
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = *p
	return nil
}

func (s *Store) ListProfilesByLevels(ctx context.Context, levels []string) ([]models.Profile, error) {
	if err := s.check(ctx, "list profiles"); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		want[l] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Profile, 0)
	for _, id := range s.order {
		p := s.profiles[id]
		if _, ok := want[string(p.Level)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Sessions

func (s *Store) FindSessionByPairKey(ctx context.Context, pairKey string) (*models.ChatSession, error) {
	if err := s.check(ctx, "find session"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pairKey]
	if !ok {
		return nil, fmt.Errorf("find session: %w", common.ErrNotFound)
	}
	cs := s.sessions[id].session
	return &cs, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	if err := s.check(ctx, "get session"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session: %w", common.ErrNotFound)
	}
	cs := st.session
	return &cs, nil
}

func (s *Store) CreateSessionIfAbsent(ctx context.Context, cs *models.ChatSession) (bool, error) {
	if err := s.check(ctx, "create session"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPair[cs.PairKey]; exists {
		return false, nil
	}
	if _, exists := s.sessions[cs.ID]; exists {
		return false, fmt.Errorf("create session: %w", common.ErrAlreadyExists)
	}
	cs.CreatedAt = s.Now()
	cs.MessageSeq = 0
	s.sessions[cs.ID] = &sessionState{
		session:  *cs,
		tokens:   make(map[string]int),
		watchers: make(map[*watcher]struct{}),
	}
	s.byPair[cs.PairKey] = cs.ID
	return true, nil
}

func (s *Store) ListSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	if err := s.check(ctx, "list sessions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatSession, 0)
	for _, st := range s.sessions {
		if st.session.HasParticipant(userID) {
			out = append(out, st.session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Messages

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	if err := s.check(ctx, "append message"); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	st, ok := s.sessions[msg.SessionID]
	if !ok {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("append message: %w", common.ErrNotFound)
	}
	if msg.ClientToken != nil {
		if idx, dup := st.tokens[*msg.ClientToken]; dup {
			existing := st.messages[idx]
			s.mu.Unlock()
			return &existing, false, nil
		}
	}

	st.session.MessageSeq++
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Seq = st.session.MessageSeq
	stored.CreatedAt = s.Now()
	st.messages = append(st.messages, stored)
	if stored.ClientToken != nil {
		st.tokens[*stored.ClientToken] = len(st.messages) - 1
	}

	watchers := make([]*watcher, 0, len(st.watchers))
	for w := range st.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	// Delivery happens outside the lock, so concurrent appends may notify out
	// of order. A watcher with a full buffer misses the message; consumers
	// order by Seq and re-read gaps from the store.
	for _, w := range watchers {
		select {
		case w.ch <- stored:
		case <-w.done:
		default:
		}
	}
	return &stored, true, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]models.Message, error) {
	if err := s.check(ctx, "list messages"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0)
	st, ok := s.sessions[sessionID]
	if !ok {
		return out, nil
	}
	// messages are stored in Seq order, Seq n lives at index n-1
	start := afterSeq
	if start < 0 {
		start = 0
	}
	for i := start; i < int64(len(st.messages)); i++ {
		out = append(out, st.messages[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	if err := s.check(ctx, "last message"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok || len(st.messages) == 0 {
		return nil, fmt.Errorf("last message: %w", common.ErrNotFound)
	}
	m := st.messages[len(st.messages)-1]
	return &m, nil
}

func (s *Store) WatchMessages(ctx context.Context, sessionID string) (*storage.Watch, error) {
	if err := s.check(ctx, "watch messages"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("watch messages: %w", common.ErrNotFound)
	}
	w := &watcher{
		ch:   make(chan models.Message, config.SubscriptionBuffer),
		done: make(chan struct{}),
	}
	st.watchers[w] = struct{}{}

	return storage.NewWatch(w.ch, func() {
		s.mu.Lock()
		delete(st.watchers, w)
		s.mu.Unlock()
		close(w.done)
	}), nil
}

// WatcherCount reports how many live watches a session has.
func (s *Store) WatcherCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		return len(st.watchers)
	}
	return 0
}

// SessionCount reports how many sessions exist.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Package storage is the document-store adapter of the matching core: keyed
// profile, session and message records, a conditional create-if-absent
// primitive and live message watches.
package storage

import (
	"context"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProfileStore gives typed access to profile records.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	// CreateProfile fails with common.ErrAlreadyExists if the identity is taken.
	CreateProfile(ctx context.Context, p *models.Profile) error
	SaveProfile(ctx context.Context, p *models.Profile) error
	// ListProfilesByLevels returns profiles whose level is one of levels, in
	// stable creation order.
	ListProfilesByLevels(ctx context.Context, levels []string) ([]models.Profile, error)
}

// SessionStore gives typed access to chat sessions.
type SessionStore interface {
	FindSessionByPairKey(ctx context.Context, pairKey string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	// CreateSessionIfAbsent inserts s unless a session with the same PairKey
	// exists. It reports whether this call created the record.
	CreateSessionIfAbsent(ctx context.Context, s *models.ChatSession) (bool, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error)
}

// MessageStore gives typed access to the messages of a session.
type MessageStore interface {
	// AppendMessage assigns the next sequence number of the session and stores
	// msg. A ClientToken already used in the session returns the stored message
	// and created == false.
	AppendMessage(ctx context.Context, msg *models.Message) (stored *models.Message, created bool, err error)
	// ListMessages returns up to limit messages with Seq > afterSeq in Seq order.
	// limit <= 0 means no limit.
	ListMessages(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]models.Message, error)
	LastMessage(ctx context.Context, sessionID string) (*models.Message, error)
	// WatchMessages delivers messages committed after the watch is established.
	// Delivery may be duplicated or out of order; consumers order by Seq.
	WatchMessages(ctx context.Context, sessionID string) (*Watch, error)
}

type Storage interface {
	ProfileStore
	SessionStore
	MessageStore
	Ping(ctx context.Context) error
}

// Service is the PostgreSQL + Redis implementation of Storage.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Log   logging.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		DB:    db,
		Redis: rdb,
		Log:   log,
	}
}

// Ping checks both backends.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return common.Unavailable("ping postgres", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return common.Unavailable("ping postgres", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return common.Unavailable("ping redis", err)
		}
	}
	return nil
}

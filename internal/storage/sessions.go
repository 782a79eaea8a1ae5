package storage

import (
	"context"

	"rallymatch/backend/internal/models"

	"gorm.io/gorm/clause"
)

// FindSessionByPairKey looks a session up by its uniqueness key.
func (s *Service) FindSessionByPairKey(ctx context.Context, pairKey string) (*models.ChatSession, error) {
	var cs models.ChatSession
	if err := s.DB.WithContext(ctx).Where("pair_key = ?", pairKey).First(&cs).Error; err != nil {
		return nil, mapErr("find session", err)
	}
	return &cs, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var cs models.ChatSession
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&cs).Error; err != nil {
		return nil, mapErr("get session", err)
	}
	return &cs, nil
}

// CreateSessionIfAbsent relies on the unique pair_key index:
// INSERT ... ON CONFLICT (pair_key) DO NOTHING affects zero rows when another
// writer got there first.
func (s *Service) CreateSessionIfAbsent(ctx context.Context, cs *models.ChatSession) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(cs)
	if res.Error != nil {
		return false, mapErr("create session", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListSessionsForUser returns the sessions id takes part in, newest first.
func (s *Service) ListSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var out []models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, mapErr("list sessions", err)
	}
	return out, nil
}

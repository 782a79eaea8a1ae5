package storage

import (
	"context"

	"rallymatch/backend/internal/models"
)

// GetProfile loads one profile by identity.
func (s *Service) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, mapErr("get profile", err)
	}
	return &p, nil
}

// GetProfiles loads the profiles of ids; unknown ids are skipped.
func (s *Service) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	if len(ids) == 0 {
		return out, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, mapErr("get profiles", err)
	}
	return out, nil
}

// CreateProfile inserts a new profile.
func (s *Service) CreateProfile(ctx context.Context, p *models.Profile) error {
	return mapErr("create profile", s.DB.WithContext(ctx).Create(p).Error)
}

// SaveProfile upserts the profile.
func (s *Service) SaveProfile(ctx context.Context, p *models.Profile) error {
	return mapErr("save profile", s.DB.WithContext(ctx).Save(p).Error)
}

// ListProfilesByLevels is the candidate query of the discovery feed.
func (s *Service) ListProfilesByLevels(ctx context.Context, levels []string) ([]models.Profile, error) {
	var out []models.Profile
	if len(levels) == 0 {
		return out, nil
	}
	err := s.DB.WithContext(ctx).
		Where("level IN ?", levels).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	if err != nil {
		return nil, mapErr("list profiles", err)
	}
	return out, nil
}

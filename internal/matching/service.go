package matching

import (
	"context"
	"fmt"

	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/models"
)

// ProfileSource is the slice of the profile store the feed needs.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfilesByLevels(ctx context.Context, levels []string) ([]models.Profile, error)
}

// Service loads the viewer and the candidate pool from the store and ranks them.
type Service struct {
	Profiles ProfileSource
	Options  RankOptions
	Log      logging.Logger
}

func NewService(profiles ProfileSource, opts RankOptions, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{Profiles: profiles, Options: opts, Log: log}
}

// Feed returns the ranked candidates for viewerID.
func (s *Service) Feed(ctx context.Context, viewerID string) ([]models.RankedCandidate, error) {
	self, err := s.Profiles.GetProfile(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}

	// The level query narrows the pool; Rank still applies the full filter.
	pool, err := s.Profiles.ListProfilesByLevels(ctx, self.AcceptedLevels)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	ranked := RankWith(*self, pool, s.Options)
	s.Log.Debug(ctx, "feed ranked", "viewer", viewerID, "pool", len(pool), "ranked", len(ranked))
	return ranked, nil
}

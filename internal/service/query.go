package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/repository"
)

// QueryService is the read surface for the presentation layer.
type QueryService struct {
	matches     repository.MatchStore
	predictions repository.PredictionStore
	logger      zerolog.Logger

	Now func() time.Time
}

func NewQueryService(matches repository.MatchStore, predictions repository.PredictionStore, logger zerolog.Logger) *QueryService {
	return &QueryService{
		matches:     matches,
		predictions: predictions,
		logger:      logger,
		Now:         time.Now,
	}
}

// ListMatches returns canonical matches filtered by lifecycle state, sport
// and last-updated time. Stale records are excluded; they belong to neither
// the live nor the completed view.
func (s *QueryService) ListMatches(ctx context.Context, state domain.Lifecycle, sportKey string, since time.Time) ([]domain.CanonicalMatch, error) {
	matches, err := s.matches.List(ctx, repository.MatchFilter{
		State:        state,
		SportKey:     sportKey,
		UpdatedSince: since,
	})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// GetPrediction returns the prediction for a match, or nil when none exists.
func (s *QueryService) GetPrediction(ctx context.Context, matchID string) (*domain.Prediction, error) {
	p, err := s.predictions.Get(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return p, nil
}

// AccuracyStats tallies verified predictions over a trailing window.
func (s *QueryService) AccuracyStats(ctx context.Context, window time.Duration) (domain.AccuracyStats, error) {
	since := time.Time{}
	if window > 0 {
		since = s.Now().Add(-window)
	}
	stats, err := s.predictions.AccuracyStats(ctx, since)
	if err != nil {
		return domain.AccuracyStats{}, fmt.Errorf("accuracy stats: %w", err)
	}
	return stats, nil
}

package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/repository"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

// Service drives the periodic prediction pass. Predictions may be
// re-evaluated while the match has not completed (pre-match odds still move);
// once a match completes, or a prediction is verified, it is left alone.
type Service struct {
	matches       repository.MatchStore
	predictions   repository.PredictionStore
	catalog       *sports.Catalog
	minBookmakers int
	metrics       *metrics.PipelineMetrics
	logger        zerolog.Logger

	Now func() time.Time
}

func NewService(
	matches repository.MatchStore,
	predictions repository.PredictionStore,
	catalog *sports.Catalog,
	minBookmakers int,
	pm *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		matches:       matches,
		predictions:   predictions,
		catalog:       catalog,
		minBookmakers: minBookmakers,
		metrics:       pm,
		logger:        logger,
		Now:           time.Now,
	}
}

// Run evaluates every not-yet-completed match with enough bookmaker coverage.
func (s *Service) Run(ctx context.Context) error {
	for _, state := range []domain.Lifecycle{domain.LifecycleScheduled, domain.LifecycleLive} {
		matches, err := s.matches.List(ctx, repository.MatchFilter{State: state})
		if err != nil {
			return fmt.Errorf("list %s matches: %w", state, err)
		}
		for i := range matches {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.evaluateOne(ctx, &matches[i])
		}
	}
	return nil
}

func (s *Service) evaluateOne(ctx context.Context, m *domain.CanonicalMatch) {
	existing, err := s.predictions.Get(ctx, m.MatchID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("prediction lookup failed")
		return
	}
	if existing != nil && existing.Verification != nil {
		return
	}

	drawsAllowed := s.catalog.Get(m.SportKey).DrawsAllowed
	now := s.Now()

	p, err := Evaluate(m, s.minBookmakers, drawsAllowed, now)
	if errors.Is(err, ErrInsufficientOdds) {
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("prediction evaluation failed")
		return
	}

	if existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := s.predictions.Upsert(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("prediction write failed")
		return
	}

	s.metrics.PredictionsEvaluated.Inc()
	s.logger.Debug().
		Str("match_id", m.MatchID).
		Str("predicted_winner", string(p.PredictedWinner)).
		Float64("prob_home", p.ProbHome).
		Float64("prob_draw", p.ProbDraw).
		Float64("prob_away", p.ProbAway).
		Msg("prediction evaluated")
}

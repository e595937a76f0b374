package verification

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

// Verifier compares stored predictions against finalized results and writes
// the verdict exactly once per prediction. A verification attempt must never
// record a verdict it cannot prove: malformed scores defer the pair to the
// next cycle instead of defaulting to incorrect.
type Verifier struct {
	matches        repository.MatchStore
	predictions    repository.PredictionStore
	catalog        *sports.Catalog
	scanWindow     time.Duration
	backfillWindow time.Duration
	metrics        *metrics.PipelineMetrics
	logger         zerolog.Logger

	Now func() time.Time
}

func New(
	matches repository.MatchStore,
	predictions repository.PredictionStore,
	catalog *sports.Catalog,
	scanWindow, backfillWindow time.Duration,
	pm *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *Verifier {
	return &Verifier{
		matches:        matches,
		predictions:    predictions,
		catalog:        catalog,
		scanWindow:     scanWindow,
		backfillWindow: backfillWindow,
		metrics:        pm,
		logger:         logger,
		Now:            time.Now,
	}
}

// Run scans recently completed matches. Bounding the scan to a recency
// window keeps the frequent pass cheap; Backfill covers the rest.
func (v *Verifier) Run(ctx context.Context) error {
	return v.sweep(ctx, v.Now().Add(-v.scanWindow))
}

// Backfill is the low-frequency wide pass that catches pairs that completed
// outside the regular scan window but were never verified.
func (v *Verifier) Backfill(ctx context.Context) error {
	return v.sweep(ctx, v.Now().Add(-v.backfillWindow))
}

func (v *Verifier) sweep(ctx context.Context, since time.Time) error {
	completed, err := v.matches.List(ctx, repository.MatchFilter{
		State:        domain.LifecycleCompleted,
		UpdatedSince: since,
	})
	if err != nil {
		return fmt.Errorf("list completed matches: %w", err)
	}

	for i := range completed {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.verifyOne(ctx, &completed[i])
	}
	return nil
}

func (v *Verifier) verifyOne(ctx context.Context, m *domain.CanonicalMatch) {
	pred, err := v.predictions.Get(ctx, m.MatchID)
	if errors.Is(err, repository.ErrNotFound) {
		return // no prediction was ever made for this match
	}
	if err != nil {
		v.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("prediction lookup failed")
		return
	}
	if pred.Verification != nil {
		return // re-running verification is a no-op
	}

	home, away, ok := m.FinalResult()
	if !ok {
		v.metrics.VerificationsSkipped.WithLabelValues("unparseable_scores").Inc()
		v.logger.Warn().
			Str("match_id", m.MatchID).
			Interface("final_scores", m.FinalScores).
			Msg("verification deferred: final scores missing or unparseable")
		return
	}

	actual, err := v.actualWinner(m, home, away)
	if err != nil {
		v.metrics.VerificationsSkipped.WithLabelValues("invalid_result").Inc()
		v.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("verification deferred")
		return
	}

	now := v.Now()
	pred.Verification = &domain.Verification{
		ActualWinner: actual,
		IsCorrect:    actual == pred.PredictedWinner,
		VerifiedAt:   now,
	}
	pred.UpdatedAt = now

	if err := v.predictions.Upsert(ctx, pred); err != nil {
		v.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("verification write failed")
		return
	}

	result := "incorrect"
	if pred.Verification.IsCorrect {
		result = "correct"
	}
	v.metrics.VerificationsTotal.WithLabelValues(result).Inc()
	v.logger.Info().
		Str("match_id", m.MatchID).
		Str("predicted_winner", string(pred.PredictedWinner)).
		Str("actual_winner", string(actual)).
		Bool("is_correct", pred.Verification.IsCorrect).
		Msg("prediction verified")
}

func (v *Verifier) actualWinner(m *domain.CanonicalMatch, home, away int) (domain.Outcome, error) {
	switch {
	case home > away:
		return domain.OutcomeHome, nil
	case away > home:
		return domain.OutcomeAway, nil
	default:
		if !v.catalog.Get(m.SportKey).DrawsAllowed {
			return domain.OutcomeNone, fmt.Errorf("tied final score %d-%d in a sport without draws", home, away)
		}
		return domain.OutcomeDraw, nil
	}
}

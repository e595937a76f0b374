package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/constants"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/identity"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/reconcile"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/repository"
)

// IngestService is the single write path for canonical live/odds/lifecycle
// fields. Merges for the same matchId serialize through the store's
// conditional write; merges for different matchIds run fully in parallel.
type IngestService struct {
	resolver *identity.Resolver
	engine   *reconcile.Engine
	matches  repository.MatchStore
	metrics  *metrics.PipelineMetrics
	logger   zerolog.Logger

	Now func() time.Time
}

func NewIngestService(
	resolver *identity.Resolver,
	engine *reconcile.Engine,
	matches repository.MatchStore,
	pm *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		resolver: resolver,
		engine:   engine,
		matches:  matches,
		metrics:  pm,
		logger:   logger,
		Now:      time.Now,
	}
}

// SubmitFragment routes one provider fragment through identity resolution and
// reconciliation. A fragment that cannot be resolved or merged is dropped
// with a data-quality log; it never fails the pipeline.
func (s *IngestService) SubmitFragment(ctx context.Context, f domain.MatchFragment) error {
	if strings.TrimSpace(f.HomeTeam) == "" || strings.TrimSpace(f.AwayTeam) == "" {
		s.metrics.FragmentsRejected.WithLabelValues("malformed").Inc()
		s.logger.Warn().
			Str("provider", f.Provider).
			Str("external_id", f.ExternalID).
			Msg("fragment rejected: missing team names")
		return nil
	}

	matchID, err := s.resolver.Resolve(f)
	if err != nil {
		s.metrics.FragmentsRejected.WithLabelValues("identity").Inc()
		s.logger.Warn().Err(err).
			Str("provider", f.Provider).
			Str("external_id", f.ExternalID).
			Msg("fragment rejected: identity unresolvable")
		return nil
	}

	for attempt := 0; attempt < constants.MergeRetries; attempt++ {
		current, err := s.matches.Get(ctx, matchID)
		if errors.Is(err, repository.ErrNotFound) {
			fresh := s.resolver.NewCanonical(matchID, f, s.Now())
			merged, _ := s.engine.Merge(fresh, f)
			if err := s.matches.Insert(ctx, merged); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					// Lost the insert race to another provider's fragment.
					s.metrics.MergeConflicts.Inc()
					continue
				}
				return fmt.Errorf("insert canonical match %s: %w", matchID, err)
			}
			s.recordMerge(f, domain.LifecycleScheduled, merged.State, true)
			s.logger.Info().
				Str("match_id", matchID).
				Str("provider", f.Provider).
				Str("sport_key", f.SportKey).
				Msg("canonical match created")
			return nil
		}
		if err != nil {
			return fmt.Errorf("load canonical match %s: %w", matchID, err)
		}

		merged, changed := s.engine.Merge(current, f)
		if !changed {
			s.metrics.FragmentsIngested.WithLabelValues(f.Provider).Inc()
			return nil
		}
		if err := s.matches.Update(ctx, merged); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				s.metrics.MergeConflicts.Inc()
				continue
			}
			return fmt.Errorf("update canonical match %s: %w", matchID, err)
		}
		s.recordMerge(f, current.State, merged.State, true)
		return nil
	}

	s.metrics.FragmentsRejected.WithLabelValues("contention").Inc()
	s.logger.Warn().
		Str("match_id", matchID).
		Str("provider", f.Provider).
		Msg("fragment dropped after repeated merge conflicts, provider will resend next cycle")
	return nil
}

// SubmitAll feeds a polled batch through SubmitFragment one record at a time
// so a cancellation between records never leaves a partial merge.
func (s *IngestService) SubmitAll(ctx context.Context, fragments []domain.MatchFragment) error {
	for _, f := range fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SubmitFragment(ctx, f); err != nil {
			s.logger.Error().Err(err).
				Str("provider", f.Provider).
				Str("external_id", f.ExternalID).
				Msg("fragment ingest failed, skipping")
		}
	}
	return nil
}

func (s *IngestService) recordMerge(f domain.MatchFragment, from, to domain.Lifecycle, merged bool) {
	s.metrics.FragmentsIngested.WithLabelValues(f.Provider).Inc()
	if merged {
		s.metrics.MergesApplied.Inc()
	}
	if from != to {
		s.metrics.LifecycleTransitions.WithLabelValues(string(to)).Inc()
	}
}

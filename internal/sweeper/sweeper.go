package sweeper

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

// Sweeper demotes live matches whose live signal can no longer be trusted.
// Providers sometimes stop sending updates without ever sending a terminal
// status; silence must not read as "still live forever".
type Sweeper struct {
	matches         repository.MatchStore
	catalog         *sports.Catalog
	freshnessWindow time.Duration
	metrics         *metrics.PipelineMetrics
	logger          zerolog.Logger

	Now func() time.Time
}

func New(
	matches repository.MatchStore,
	catalog *sports.Catalog,
	freshnessWindow time.Duration,
	pm *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		matches:         matches,
		catalog:         catalog,
		freshnessWindow: freshnessWindow,
		metrics:         pm,
		logger:          logger,
		Now:             time.Now,
	}
}

// Run performs one sweep over all live matches. A record is acted on only
// when both conditions hold: the match has outlived its sport's live ceiling
// AND nothing has refreshed it within the freshness window. With scores on
// the board it is force-completed; with no scores at all it is flagged stale
// and leaves both the live and completed views, because fabricating a result
// would be worse than admitting data loss.
func (s *Sweeper) Run(ctx context.Context) error {
	live, err := s.matches.List(ctx, repository.MatchFilter{State: domain.LifecycleLive})
	if err != nil {
		return fmt.Errorf("list live matches: %w", err)
	}

	now := s.Now()
	swept := 0
	for i := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := &live[i]

		ceiling := s.catalog.Get(m.SportKey).LiveCeiling
		if now.Sub(m.CommenceTime) <= ceiling {
			continue
		}
		if now.Sub(m.LastUpdated) <= s.freshnessWindow {
			continue
		}

		if s.evict(ctx, m, now) {
			swept++
		}
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("staleness sweep evicted matches from live view")
	}
	return nil
}

func (s *Sweeper) evict(ctx context.Context, m *domain.CanonicalMatch, now time.Time) bool {
	next := m.Clone()

	home, away, scored := liveScores(next)
	if scored {
		next.State = domain.LifecycleCompleted
		next.FinalScores = []domain.TeamScore{
			{Team: next.HomeTeam, Score: home},
			{Team: next.AwayTeam, Score: away},
		}
		next.LiveScore.Completed = true
		next.LiveScore.IsLive = false
	} else {
		next.Stale = true
	}
	next.LastUpdated = now

	if err := s.matches.Update(ctx, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A fresh fragment won the race; whatever it wrote supersedes
			// this eviction. Re-evaluated next cycle if still silent.
			return false
		}
		s.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("stale eviction write failed")
		return false
	}

	s.metrics.StaleEvictions.Inc()
	if scored {
		s.metrics.LifecycleTransitions.WithLabelValues(string(domain.LifecycleCompleted)).Inc()
	}
	s.logger.Warn().
		Str("match_id", m.MatchID).
		Str("sport_key", m.SportKey).
		Bool("force_completed", scored).
		Time("commence_time", m.CommenceTime).
		Time("last_updated", m.LastUpdated).
		Msg("live signal expired, match evicted from live view")
	return true
}

func liveScores(m *domain.CanonicalMatch) (home, away string, ok bool) {
	if m.LiveScore == nil {
		return "", "", false
	}
	hs := domain.TeamScore{Score: m.LiveScore.HomeScore}
	as := domain.TeamScore{Score: m.LiveScore.AwayScore}
	if _, hok := hs.Parse(); !hok {
		return "", "", false
	}
	if _, aok := as.Parse(); !aok {
		return "", "", false
	}
	return m.LiveScore.HomeScore, m.LiveScore.AwayScore, true
}

package reconcile

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/identity"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

// Engine merges provider fragments into canonical match records. Merge is
// pure with respect to its inputs and total: a bad field rejects that field,
// never the whole fragment, and never fails the pipeline.
type Engine struct {
	catalog    *sports.Catalog
	normalizer *identity.Normalizer
	logger     zerolog.Logger

	// Now is replaceable in tests.
	Now func() time.Time
}

func NewEngine(catalog *sports.Catalog, normalizer *identity.Normalizer, logger zerolog.Logger) *Engine {
	return &Engine{
		catalog:    catalog,
		normalizer: normalizer,
		logger:     logger,
		Now:        time.Now,
	}
}

// Merge applies a fragment to a canonical match and returns the merged record
// plus whether anything actually changed. The input match is not mutated.
func (e *Engine) Merge(current *domain.CanonicalMatch, f domain.MatchFragment) (*domain.CanonicalMatch, bool) {
	merged := current.Clone()
	changed := false

	if e.mergeOdds(merged, f) {
		changed = true
	}
	if e.mergeLiveScore(merged, current, f) {
		// A fresh scoreboard is a live signal again; the record returns
		// to the default views.
		merged.Stale = false
		changed = true
	}
	if e.applyLifecycle(merged, f) {
		changed = true
	}

	if changed {
		if f.ObservedAt.After(merged.LastUpdated) {
			merged.LastUpdated = f.ObservedAt
		}
	}
	return merged, changed
}

// mergeOdds is a union per bookmaker: a fragment's entry replaces the stored
// one only when observed at least as recently, and never touches other
// bookmakers. Replays of the same observation are no-ops.
func (e *Engine) mergeOdds(merged *domain.CanonicalMatch, f domain.MatchFragment) bool {
	if len(f.Odds) == 0 {
		return false
	}
	if merged.Odds == nil {
		merged.Odds = make(map[string]domain.BookmakerPrices, len(f.Odds))
	}

	changed := false
	for book, prices := range f.Odds {
		existing, ok := merged.Odds[book]
		if ok && f.ObservedAt.Before(existing.ObservedAt) {
			continue
		}
		if ok && existing.ObservedAt.Equal(f.ObservedAt) && pricesEqual(existing.Prices, prices) {
			continue
		}
		merged.Odds[book] = domain.BookmakerPrices{
			Prices:     clonePrices(prices),
			ObservedAt: f.ObservedAt,
		}
		changed = true
	}
	return changed
}

// mergeLiveScore replaces the scoreboard wholesale when the fragment is
// fresher than the last successful merge. Scoreboards are reported atomically
// per provider; stitching home and away scores from different providers is
// how records used to go visibly wrong.
func (e *Engine) mergeLiveScore(merged, current *domain.CanonicalMatch, f domain.MatchFragment) bool {
	if len(f.Scores) == 0 && f.MatchStatus == "" && !f.IsLive && !f.Completed {
		return false
	}
	if current.State == domain.LifecycleCompleted {
		return false
	}
	if !f.ObservedAt.After(current.LastUpdated) && current.LiveScore != nil {
		return false
	}

	next := &domain.LiveScore{
		IsLive:      f.IsLive && !f.Completed,
		Completed:   f.Completed || e.catalog.IsTerminalStatus(f.MatchStatus),
		MatchStatus: f.MatchStatus,
		LastUpdated: f.ObservedAt,
	}
	if hs, ok := e.fragmentScore(merged, f, true); ok {
		next.HomeScore = hs.Score
	}
	if as, ok := e.fragmentScore(merged, f, false); ok {
		next.AwayScore = as.Score
	}

	if current.LiveScore != nil && *current.LiveScore == *next {
		return false
	}
	merged.LiveScore = next
	return true
}

// applyLifecycle moves state forward only. Completed is absorbing: stale or
// late-arriving fragments cannot reopen a finished match, and a fragment
// claiming completion without parseable scores is rejected for that
// transition with a data-quality warning.
func (e *Engine) applyLifecycle(merged *domain.CanonicalMatch, f domain.MatchFragment) bool {
	if merged.State == domain.LifecycleCompleted {
		return false
	}

	terminal := f.Completed || e.catalog.IsTerminalStatus(f.MatchStatus)
	if terminal {
		home, homeOK := e.parsedScore(merged, f, true)
		away, awayOK := e.parsedScore(merged, f, false)
		if !homeOK || !awayOK {
			e.logger.Warn().
				Str("match_id", merged.MatchID).
				Str("provider", f.Provider).
				Str("match_status", f.MatchStatus).
				Msg("completion rejected: final scores missing or unparseable")
			return false
		}

		merged.State = domain.LifecycleCompleted
		merged.Stale = false
		merged.FinalScores = []domain.TeamScore{
			{Team: merged.HomeTeam, Score: home.Score},
			{Team: merged.AwayTeam, Score: away.Score},
		}
		if merged.LiveScore == nil {
			merged.LiveScore = &domain.LiveScore{LastUpdated: f.ObservedAt}
		}
		merged.LiveScore.Completed = true
		merged.LiveScore.IsLive = false
		if merged.LiveScore.HomeScore == "" {
			merged.LiveScore.HomeScore = home.Score
		}
		if merged.LiveScore.AwayScore == "" {
			merged.LiveScore.AwayScore = away.Score
		}
		return true
	}

	if merged.State == domain.LifecycleScheduled && f.IsLive && !merged.CommenceTime.After(e.Now()) {
		merged.State = domain.LifecycleLive
		merged.Stale = false
		return true
	}
	return false
}

func (e *Engine) fragmentScore(m *domain.CanonicalMatch, f domain.MatchFragment, home bool) (domain.TeamScore, bool) {
	team := m.AwayTeam
	position := 1
	if home {
		team = m.HomeTeam
		position = 0
	}
	for _, s := range f.Scores {
		if e.normalizer.SameTeam(s.Team, team) {
			return s, true
		}
	}
	return f.ScoreFor(team, position)
}

func (e *Engine) parsedScore(m *domain.CanonicalMatch, f domain.MatchFragment, home bool) (domain.TeamScore, bool) {
	s, ok := e.fragmentScore(m, f, home)
	if !ok {
		return domain.TeamScore{}, false
	}
	if _, numeric := s.Parse(); !numeric {
		return domain.TeamScore{}, false
	}
	return s, true
}

func clonePrices(prices map[domain.Outcome]decimal.Decimal) map[domain.Outcome]decimal.Decimal {
	out := make(map[domain.Outcome]decimal.Decimal, len(prices))
	for o, p := range prices {
		out[o] = p
	}
	return out
}

func pricesEqual(a, b map[domain.Outcome]decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for o, pa := range a {
		pb, ok := b[o]
		if !ok || !pa.Equal(pb) {
			return false
		}
	}
	return true
}

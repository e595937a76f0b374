package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle is the canonical match state. Transitions only move forward:
// scheduled -> live -> completed.
type Lifecycle string

const (
	LifecycleScheduled Lifecycle = "scheduled"
	LifecycleLive      Lifecycle = "live"
	LifecycleCompleted Lifecycle = "completed"
)

// Outcome identifies one side of a match result.
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "away"
	OutcomeNone Outcome = "none"
)

// TeamScore is one provider-reported score line. Score stays a string until a
// lifecycle transition actually needs a number; providers send things like
// "2", "2.0" and occasionally garbage.
type TeamScore struct {
	Team  string `json:"team"`
	Score string `json:"score"`
}

// Parse returns the numeric value of the score line.
func (s TeamScore) Parse() (int, bool) {
	if v, err := strconv.Atoi(s.Score); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(s.Score, 64); err == nil && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// MatchFragment is one provider's partial view of a match at one point in
// time. Fragments are inputs to reconciliation and are never mutated.
type MatchFragment struct {
	Provider     string                                 `json:"provider"`
	ExternalID   string                                 `json:"external_id"`
	SportKey     string                                 `json:"sport_key"`
	HomeTeam     string                                 `json:"home_team"`
	AwayTeam     string                                 `json:"away_team"`
	CommenceTime time.Time                              `json:"commence_time"`
	Scores       []TeamScore                            `json:"scores,omitempty"`
	MatchStatus  string                                 `json:"match_status,omitempty"`
	IsLive       bool                                   `json:"is_live"`
	Completed    bool                                   `json:"completed"`
	Odds         map[string]map[Outcome]decimal.Decimal `json:"odds,omitempty"` // bookmaker -> outcome -> decimal price
	ObservedAt   time.Time                              `json:"observed_at"`
}

// ScoreFor returns the fragment score line for the given team name, falling
// back to positional order when team names do not line up.
func (f MatchFragment) ScoreFor(team string, position int) (TeamScore, bool) {
	for _, s := range f.Scores {
		if s.Team == team {
			return s, true
		}
	}
	if position >= 0 && position < len(f.Scores) {
		return f.Scores[position], true
	}
	return TeamScore{}, false
}

// LiveScore is the scoreboard block of a canonical match. It is overwritten
// wholesale by whichever provider reported most recently; cross-provider
// field-by-field scoreboard merges produced contradictory boards in the past.
type LiveScore struct {
	HomeScore   string    `json:"home_score"`
	AwayScore   string    `json:"away_score"`
	IsLive      bool      `json:"is_live"`
	Completed   bool      `json:"completed"`
	MatchStatus string    `json:"match_status"`
	LastUpdated time.Time `json:"last_updated"`
}

// BookmakerPrices holds one bookmaker's current prices and when they were
// observed. Entries are replaced per bookmaker, last writer wins.
type BookmakerPrices struct {
	Prices     map[Outcome]decimal.Decimal `json:"prices"`
	ObservedAt time.Time                   `json:"observed_at"`
}

// CanonicalMatch is the merged, authoritative record for one real-world
// match. Created on the first fragment for an unseen identity key and never
// deleted, only transitioned.
type CanonicalMatch struct {
	MatchID      string                     `json:"match_id"`
	SportKey     string                     `json:"sport_key"`
	HomeTeam     string                     `json:"home_team"`
	AwayTeam     string                     `json:"away_team"`
	CommenceTime time.Time                  `json:"commence_time"`
	State        Lifecycle                  `json:"state"`
	Stale        bool                       `json:"stale,omitempty"` // live signal lost, excluded from live and completed views
	LiveScore    *LiveScore                 `json:"live_score,omitempty"`
	FinalScores  []TeamScore                `json:"final_scores,omitempty"`
	Odds         map[string]BookmakerPrices `json:"bookmaker_odds,omitempty"`
	Version      int64                      `json:"version"`
	LastUpdated  time.Time                  `json:"last_updated"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// FinalResult parses the stored final scores into (home, away) points.
func (m *CanonicalMatch) FinalResult() (home, away int, ok bool) {
	if len(m.FinalScores) < 2 {
		return 0, 0, false
	}
	var hs, as *TeamScore
	for i := range m.FinalScores {
		s := &m.FinalScores[i]
		switch s.Team {
		case m.HomeTeam:
			hs = s
		case m.AwayTeam:
			as = s
		}
	}
	if hs == nil || as == nil {
		hs, as = &m.FinalScores[0], &m.FinalScores[1]
	}
	h, hok := hs.Parse()
	a, aok := as.Parse()
	if !hok || !aok {
		return 0, 0, false
	}
	return h, a, true
}

// Clone returns a deep copy so a merge can be computed without touching the
// record read from the store.
func (m *CanonicalMatch) Clone() *CanonicalMatch {
	out := *m
	if m.LiveScore != nil {
		ls := *m.LiveScore
		out.LiveScore = &ls
	}
	if m.FinalScores != nil {
		out.FinalScores = make([]TeamScore, len(m.FinalScores))
		copy(out.FinalScores, m.FinalScores)
	}
	if m.Odds != nil {
		out.Odds = make(map[string]BookmakerPrices, len(m.Odds))
		for book, bp := range m.Odds {
			prices := make(map[Outcome]decimal.Decimal, len(bp.Prices))
			for o, p := range bp.Prices {
				prices[o] = p
			}
			out.Odds[book] = BookmakerPrices{Prices: prices, ObservedAt: bp.ObservedAt}
		}
	}
	return &out
}

// Verification is the audit block written exactly once per prediction.
type Verification struct {
	ActualWinner Outcome   `json:"actual_winner"`
	IsCorrect    bool      `json:"is_correct"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// Prediction is one outcome estimate for a canonical match. It may be
// re-evaluated while odds still move pre-match; once verified it is frozen.
type Prediction struct {
	ID              string                     `json:"id"`
	MatchID         string                     `json:"match_id"`
	PredictedWinner Outcome                    `json:"predicted_winner"`
	ProbHome        float64                    `json:"prob_home"`
	ProbDraw        float64                    `json:"prob_draw,omitempty"` // absent for sports without draws
	ProbAway        float64                    `json:"prob_away"`
	EvaluatedAt     time.Time                  `json:"evaluated_at"`
	OddsSnapshot    map[string]BookmakerPrices `json:"odds_snapshot,omitempty"`
	Verification    *Verification              `json:"verification,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// AccuracyStats is the rolling verification tally for a time window.
type AccuracyStats struct {
	VerifiedCount int     `json:"verified_count"`
	CorrectCount  int     `json:"correct_count"`
	Accuracy      float64 `json:"accuracy"`
}

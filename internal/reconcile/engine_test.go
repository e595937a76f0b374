package reconcile

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/identity"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

var (
	baseTime     = time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC)
	commenceTime = time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	catalog, err := sports.Load("", zerolog.Nop())
	require.NoError(t, err)
	e := NewEngine(catalog, identity.NewNormalizer(catalog), zerolog.Nop())
	e.Now = func() time.Time { return baseTime }
	return e
}

func newMatch() *domain.CanonicalMatch {
	return &domain.CanonicalMatch{
		MatchID:      "soccer_epl:chelsea:barcelona:2026011019",
		SportKey:     "soccer_epl",
		HomeTeam:     "chelsea",
		AwayTeam:     "barcelona",
		CommenceTime: commenceTime,
		State:        domain.LifecycleScheduled,
		LastUpdated:  commenceTime,
	}
}

func oddsFragment(book string, home, draw, away float64, observed time.Time) domain.MatchFragment {
	return domain.MatchFragment{
		Provider:     "odds-provider",
		SportKey:     "soccer_epl",
		HomeTeam:     "Chelsea",
		AwayTeam:     "Barcelona",
		CommenceTime: commenceTime,
		ObservedAt:   observed,
		Odds: map[string]map[domain.Outcome]decimal.Decimal{
			book: {
				domain.OutcomeHome: decimal.NewFromFloat(home),
				domain.OutcomeDraw: decimal.NewFromFloat(draw),
				domain.OutcomeAway: decimal.NewFromFloat(away),
			},
		},
	}
}

func scoreFragment(home, away, status string, isLive, completed bool, observed time.Time) domain.MatchFragment {
	return domain.MatchFragment{
		Provider:     "score-provider",
		SportKey:     "soccer_epl",
		HomeTeam:     "Chelsea",
		AwayTeam:     "Barcelona",
		CommenceTime: commenceTime,
		MatchStatus:  status,
		IsLive:       isLive,
		Completed:    completed,
		ObservedAt:   observed,
		Scores: []domain.TeamScore{
			{Team: "Chelsea", Score: home},
			{Team: "Barcelona", Score: away},
		},
	}
}

func TestMerge_OddsUnionAcrossBookmakers(t *testing.T) {
	e := newEngine(t)
	m := newMatch()

	m1, changed := e.Merge(m, oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime))
	assert.True(t, changed)
	m2, changed := e.Merge(m1, oddsFragment("bet365", 2.0, 3.5, 3.8, baseTime.Add(time.Second)))
	assert.True(t, changed)

	require.Len(t, m2.Odds, 2)
	assert.True(t, m2.Odds["pinnacle"].Prices[domain.OutcomeHome].Equal(decimal.NewFromFloat(2.1)))
	assert.True(t, m2.Odds["bet365"].Prices[domain.OutcomeHome].Equal(decimal.NewFromFloat(2.0)))
}

func TestMerge_StaleOddsDoNotOverwrite(t *testing.T) {
	e := newEngine(t)
	m := newMatch()

	fresh, _ := e.Merge(m, oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime))
	merged, changed := e.Merge(fresh, oddsFragment("pinnacle", 9.9, 9.9, 9.9, baseTime.Add(-time.Minute)))

	assert.False(t, changed)
	assert.True(t, merged.Odds["pinnacle"].Prices[domain.OutcomeHome].Equal(decimal.NewFromFloat(2.1)))
}

func TestMerge_OddsArrivalOrderIrrelevant(t *testing.T) {
	e := newEngine(t)

	older := oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime)
	newer := oddsFragment("pinnacle", 2.3, 3.2, 3.5, baseTime.Add(time.Minute))

	ab, _ := e.Merge(newMatch(), older)
	ab, _ = e.Merge(ab, newer)

	ba, _ := e.Merge(newMatch(), newer)
	ba, _ = e.Merge(ba, older)

	assert.True(t, ab.Odds["pinnacle"].Prices[domain.OutcomeHome].Equal(ba.Odds["pinnacle"].Prices[domain.OutcomeHome]))
	assert.Equal(t, ab.Odds["pinnacle"].ObservedAt, ba.Odds["pinnacle"].ObservedAt)
}

func TestMerge_ReplayIsNoOp(t *testing.T) {
	e := newEngine(t)
	f := oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime)

	once, changed := e.Merge(newMatch(), f)
	assert.True(t, changed)

	twice, changed := e.Merge(once, f)
	assert.False(t, changed)
	assert.Equal(t, once.LastUpdated, twice.LastUpdated)
}

func TestMerge_LiveScoreWholesaleReplace(t *testing.T) {
	e := newEngine(t)
	m := newMatch()

	m1, changed := e.Merge(m, scoreFragment("1", "0", "1H", true, false, baseTime))
	assert.True(t, changed)
	require.NotNil(t, m1.LiveScore)
	assert.Equal(t, "1", m1.LiveScore.HomeScore)
	assert.Equal(t, "0", m1.LiveScore.AwayScore)
	assert.True(t, m1.LiveScore.IsLive)

	m2, changed := e.Merge(m1, scoreFragment("2", "0", "2H", true, false, baseTime.Add(10*time.Minute)))
	assert.True(t, changed)
	assert.Equal(t, "2", m2.LiveScore.HomeScore)
	assert.Equal(t, "2H", m2.LiveScore.MatchStatus)
}

func TestMerge_StaleScoreboardIgnored(t *testing.T) {
	e := newEngine(t)

	m1, _ := e.Merge(newMatch(), scoreFragment("2", "0", "2H", true, false, baseTime))
	m2, changed := e.Merge(m1, scoreFragment("1", "0", "1H", true, false, baseTime.Add(-5*time.Minute)))

	assert.False(t, changed)
	assert.Equal(t, "2", m2.LiveScore.HomeScore)
}

func TestMerge_ScheduledToLive(t *testing.T) {
	e := newEngine(t)

	m, changed := e.Merge(newMatch(), scoreFragment("0", "0", "1H", true, false, baseTime))
	assert.True(t, changed)
	assert.Equal(t, domain.LifecycleLive, m.State)
}

func TestMerge_NoLiveBeforeCommence(t *testing.T) {
	e := newEngine(t)
	m := newMatch()
	m.CommenceTime = baseTime.Add(2 * time.Hour)

	merged, _ := e.Merge(m, scoreFragment("0", "0", "1H", true, false, baseTime))
	assert.Equal(t, domain.LifecycleScheduled, merged.State)
}

func TestMerge_CompletionWithScores(t *testing.T) {
	e := newEngine(t)

	m, changed := e.Merge(newMatch(), scoreFragment("3", "0", "FT", false, true, baseTime))
	assert.True(t, changed)
	assert.Equal(t, domain.LifecycleCompleted, m.State)
	require.Len(t, m.FinalScores, 2)
	assert.Equal(t, domain.TeamScore{Team: "chelsea", Score: "3"}, m.FinalScores[0])
	assert.Equal(t, domain.TeamScore{Team: "barcelona", Score: "0"}, m.FinalScores[1])
	require.NotNil(t, m.LiveScore)
	assert.True(t, m.LiveScore.Completed)
	assert.False(t, m.LiveScore.IsLive)
}

func TestMerge_CompletionRejectedWithoutParseableScores(t *testing.T) {
	e := newEngine(t)

	live, _ := e.Merge(newMatch(), scoreFragment("1", "0", "1H", true, false, baseTime))

	bad := scoreFragment("abandoned", "-", "FT", false, true, baseTime.Add(time.Hour))
	m, _ := e.Merge(live, bad)
	assert.Equal(t, domain.LifecycleLive, m.State)
	assert.Empty(t, m.FinalScores)

	empty := domain.MatchFragment{
		Provider:     "score-provider",
		SportKey:     "soccer_epl",
		HomeTeam:     "Chelsea",
		AwayTeam:     "Barcelona",
		CommenceTime: commenceTime,
		MatchStatus:  "FT",
		Completed:    true,
		ObservedAt:   baseTime.Add(time.Hour),
	}
	m, _ = e.Merge(live, empty)
	assert.NotEqual(t, domain.LifecycleCompleted, m.State)
}

func TestMerge_CompletedIsAbsorbing(t *testing.T) {
	e := newEngine(t)

	done, _ := e.Merge(newMatch(), scoreFragment("3", "0", "FT", false, true, baseTime))
	require.Equal(t, domain.LifecycleCompleted, done.State)

	late, changed := e.Merge(done, scoreFragment("2", "0", "2H", true, false, baseTime.Add(time.Minute)))
	assert.False(t, changed)
	assert.Equal(t, domain.LifecycleCompleted, late.State)
	assert.Equal(t, done.FinalScores, late.FinalScores)
	assert.False(t, late.LiveScore.IsLive)
}

func TestMerge_ScoreLinesMatchedByTeamAlias(t *testing.T) {
	e := newEngine(t)
	m := newMatch()
	m.HomeTeam = "manchester united"
	m.AwayTeam = "tottenham hotspur"

	f := domain.MatchFragment{
		Provider:     "score-provider",
		SportKey:     "soccer_epl",
		HomeTeam:     "Man Utd",
		AwayTeam:     "Spurs",
		CommenceTime: commenceTime,
		MatchStatus:  "FT",
		Completed:    true,
		ObservedAt:   baseTime,
		Scores: []domain.TeamScore{
			// reversed order on purpose; the name match must win over position
			{Team: "Spurs", Score: "1"},
			{Team: "Man Utd", Score: "2"},
		},
	}

	merged, _ := e.Merge(m, f)
	require.Equal(t, domain.LifecycleCompleted, merged.State)
	home, away, ok := merged.FinalResult()
	require.True(t, ok)
	assert.Equal(t, 2, home)
	assert.Equal(t, 1, away)
}

func TestMerge_FreshScoreboardClearsStaleFlag(t *testing.T) {
	e := newEngine(t)

	m, _ := e.Merge(newMatch(), scoreFragment("1", "0", "1H", true, false, baseTime))
	require.Equal(t, domain.LifecycleLive, m.State)
	m.Stale = true

	resumed, changed := e.Merge(m, scoreFragment("2", "0", "2H", true, false, baseTime.Add(time.Hour)))
	assert.True(t, changed)
	assert.False(t, resumed.Stale)
	assert.Equal(t, domain.LifecycleLive, resumed.State)
	assert.Equal(t, "2", resumed.LiveScore.HomeScore)
}

func TestMerge_OddsOnlyFragmentKeepsStaleFlag(t *testing.T) {
	e := newEngine(t)

	m, _ := e.Merge(newMatch(), scoreFragment("1", "0", "1H", true, false, baseTime))
	m.Stale = true

	merged, changed := e.Merge(m, oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime.Add(time.Hour)))
	assert.True(t, changed)
	// Odds movement says nothing about the live signal.
	assert.True(t, merged.Stale)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	e := newEngine(t)
	m := newMatch()

	_, _ = e.Merge(m, oddsFragment("pinnacle", 2.1, 3.4, 3.6, baseTime))
	assert.Nil(t, m.Odds)
	assert.Equal(t, domain.LifecycleScheduled, m.State)
}

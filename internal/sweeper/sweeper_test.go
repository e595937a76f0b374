package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/repository"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

var sweepTime = time.Date(2026, 1, 10, 21, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T, store repository.MatchStore) *Sweeper {
	t.Helper()
	catalog, err := sports.Load("", zerolog.Nop())
	require.NoError(t, err)
	s := New(store, catalog, 30*time.Minute, metrics.New(), zerolog.Nop())
	s.Now = func() time.Time { return sweepTime }
	return s
}

func liveMatch(id string, commence, lastUpdated time.Time, board *domain.LiveScore) *domain.CanonicalMatch {
	return &domain.CanonicalMatch{
		MatchID:      id,
		SportKey:     "soccer_epl",
		HomeTeam:     "alpha",
		AwayTeam:     "beta",
		CommenceTime: commence,
		State:        domain.LifecycleLive,
		LiveScore:    board,
		LastUpdated:  lastUpdated,
	}
}

func TestRun_StuckLiveMatchForceCompleted(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	// Kicked off six hours ago in a sport with a 3h live ceiling, last
	// update two hours ago, scores on the board.
	board := &domain.LiveScore{HomeScore: "2", AwayScore: "1", IsLive: true, MatchStatus: "1H"}
	m := liveMatch("m1", sweepTime.Add(-6*time.Hour), sweepTime.Add(-2*time.Hour), board)
	require.NoError(t, store.Insert(context.Background(), m))

	require.NoError(t, s.Run(context.Background()))

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleCompleted, got.State)
	assert.False(t, got.Stale)
	require.Len(t, got.FinalScores, 2)
	assert.Equal(t, "2", got.FinalScores[0].Score)
	assert.Equal(t, "1", got.FinalScores[1].Score)
	assert.True(t, got.LiveScore.Completed)
	assert.False(t, got.LiveScore.IsLive)
	assert.Equal(t, sweepTime, got.LastUpdated)
}

func TestRun_NoScoresFlagsStale(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	m := liveMatch("m1", sweepTime.Add(-6*time.Hour), sweepTime.Add(-2*time.Hour), nil)
	require.NoError(t, store.Insert(context.Background(), m))

	require.NoError(t, s.Run(context.Background()))

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleLive, got.State)
	assert.True(t, got.Stale)
	assert.Empty(t, got.FinalScores)

	// Stale records leave the default views.
	live, err := store.List(context.Background(), repository.MatchFilter{State: domain.LifecycleLive})
	require.NoError(t, err)
	assert.Empty(t, live)
	completed, err := store.List(context.Background(), repository.MatchFilter{State: domain.LifecycleCompleted})
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestRun_UnparseableBoardFlagsStale(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	board := &domain.LiveScore{HomeScore: "2", AwayScore: "postponed", IsLive: true}
	m := liveMatch("m1", sweepTime.Add(-6*time.Hour), sweepTime.Add(-2*time.Hour), board)
	require.NoError(t, store.Insert(context.Background(), m))

	require.NoError(t, s.Run(context.Background()))

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.Equal(t, domain.LifecycleLive, got.State)
}

func TestRun_WithinCeilingUntouched(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	m := liveMatch("m1", sweepTime.Add(-2*time.Hour), sweepTime.Add(-90*time.Minute), nil)
	require.NoError(t, store.Insert(context.Background(), m))

	require.NoError(t, s.Run(context.Background()))

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleLive, got.State)
	assert.False(t, got.Stale)
}

func TestRun_RecentUpdateUntouched(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	// Past the ceiling but a provider refreshed it ten minutes ago, so the
	// live signal is still trusted.
	m := liveMatch("m1", sweepTime.Add(-6*time.Hour), sweepTime.Add(-10*time.Minute), nil)
	require.NoError(t, store.Insert(context.Background(), m))

	require.NoError(t, s.Run(context.Background()))

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleLive, got.State)
	assert.False(t, got.Stale)
}

func TestRun_CeilingIsPerSport(t *testing.T) {
	store := repository.NewMemoryMatchStore()
	s := newSweeper(t, store)

	// 3h30m after commence: past soccer's 3h ceiling, inside NBA's 4h one.
	soccer := liveMatch("soccer", sweepTime.Add(-210*time.Minute), sweepTime.Add(-2*time.Hour), nil)
	nba := liveMatch("nba", sweepTime.Add(-210*time.Minute), sweepTime.Add(-2*time.Hour), nil)
	nba.SportKey = "basketball_nba"
	require.NoError(t, store.Insert(context.Background(), soccer))
	require.NoError(t, store.Insert(context.Background(), nba))

	require.NoError(t, s.Run(context.Background()))

	gotSoccer, err := store.Get(context.Background(), "soccer")
	require.NoError(t, err)
	assert.True(t, gotSoccer.Stale)

	gotNBA, err := store.Get(context.Background(), "nba")
	require.NoError(t, err)
	assert.False(t, gotNBA.Stale)
}

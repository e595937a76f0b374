package verification

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

var verifyTime = time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)

type fixture struct {
	verifier    *Verifier
	matches     *repository.MemoryMatchStore
	predictions *repository.MemoryPredictionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := sports.Load("", zerolog.Nop())
	require.NoError(t, err)

	matches := repository.NewMemoryMatchStore()
	predictions := repository.NewMemoryPredictionStore()
	v := New(matches, predictions, catalog, 24*time.Hour, 14*24*time.Hour, metrics.New(), zerolog.Nop())
	v.Now = func() time.Time { return verifyTime }
	return &fixture{verifier: v, matches: matches, predictions: predictions}
}

func (f *fixture) seed(t *testing.T, m *domain.CanonicalMatch, p *domain.Prediction) {
	t.Helper()
	require.NoError(t, f.matches.Insert(context.Background(), m))
	if p != nil {
		require.NoError(t, f.predictions.Upsert(context.Background(), p))
	}
}

func completedMatch(id, sport, homeScore, awayScore string) *domain.CanonicalMatch {
	return &domain.CanonicalMatch{
		MatchID:      id,
		SportKey:     sport,
		HomeTeam:     "alpha",
		AwayTeam:     "beta",
		CommenceTime: verifyTime.Add(-3 * time.Hour),
		State:        domain.LifecycleCompleted,
		FinalScores: []domain.TeamScore{
			{Team: "alpha", Score: homeScore},
			{Team: "beta", Score: awayScore},
		},
		LastUpdated: verifyTime.Add(-time.Hour),
	}
}

func prediction(matchID string, winner domain.Outcome) *domain.Prediction {
	return &domain.Prediction{
		ID:              matchID,
		MatchID:         matchID,
		PredictedWinner: winner,
		EvaluatedAt:     verifyTime.Add(-4 * time.Hour),
	}
}

func TestRun_CorrectPrediction(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "soccer_epl", "3", "0"), prediction("m1", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))

	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, p.Verification)
	assert.Equal(t, domain.OutcomeHome, p.Verification.ActualWinner)
	assert.True(t, p.Verification.IsCorrect)
	assert.Equal(t, verifyTime, p.Verification.VerifiedAt)
}

func TestRun_IncorrectPrediction(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "soccer_epl", "0", "2"), prediction("m1", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))

	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, p.Verification)
	assert.Equal(t, domain.OutcomeAway, p.Verification.ActualWinner)
	assert.False(t, p.Verification.IsCorrect)
}

func TestRun_DrawVerdict(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "soccer_epl", "1", "1"), prediction("m1", domain.OutcomeDraw))

	require.NoError(t, f.verifier.Run(context.Background()))

	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, p.Verification)
	assert.Equal(t, domain.OutcomeDraw, p.Verification.ActualWinner)
	assert.True(t, p.Verification.IsCorrect)
}

func TestRun_TieInDrawlessSportDeferred(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "basketball_nba", "101", "101"), prediction("m1", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))

	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, p.Verification)
}

func TestRun_MalformedScoresDeferredThenVerified(t *testing.T) {
	f := newFixture(t)
	bad := completedMatch("m1", "soccer_epl", "??", "0")
	f.seed(t, bad, prediction("m1", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))
	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, p.Verification)

	// A corrected result lands later; the next cycle verifies normally.
	fixed, err := f.matches.Get(context.Background(), "m1")
	require.NoError(t, err)
	fixed.FinalScores[0].Score = "2"
	require.NoError(t, f.matches.Update(context.Background(), fixed))

	require.NoError(t, f.verifier.Run(context.Background()))
	p, err = f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, p.Verification)
	assert.True(t, p.Verification.IsCorrect)
}

func TestRun_AlreadyVerifiedIsNoOp(t *testing.T) {
	f := newFixture(t)
	earlier := verifyTime.Add(-30 * time.Minute)
	p := prediction("m1", domain.OutcomeHome)
	p.Verification = &domain.Verification{
		ActualWinner: domain.OutcomeHome,
		IsCorrect:    true,
		VerifiedAt:   earlier,
	}
	f.seed(t, completedMatch("m1", "soccer_epl", "3", "0"), p)

	require.NoError(t, f.verifier.Run(context.Background()))

	got, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, earlier, got.Verification.VerifiedAt)
}

func TestRun_NoPredictionIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "soccer_epl", "3", "0"), nil)

	require.NoError(t, f.verifier.Run(context.Background()))

	_, err := f.predictions.Get(context.Background(), "m1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBackfill_CatchesOldCompletions(t *testing.T) {
	f := newFixture(t)
	old := completedMatch("m1", "soccer_epl", "2", "1")
	old.LastUpdated = verifyTime.Add(-5 * 24 * time.Hour) // outside the 24h scan window
	f.seed(t, old, prediction("m1", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))
	p, err := f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, p.Verification)

	require.NoError(t, f.verifier.Backfill(context.Background()))
	p, err = f.predictions.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, p.Verification)
	assert.True(t, p.Verification.IsCorrect)
}

func TestAccuracyStats_AfterVerification(t *testing.T) {
	f := newFixture(t)
	f.seed(t, completedMatch("m1", "soccer_epl", "3", "0"), prediction("m1", domain.OutcomeHome))
	f.seed(t, completedMatch("m2", "soccer_epl", "0", "1"), prediction("m2", domain.OutcomeHome))

	require.NoError(t, f.verifier.Run(context.Background()))

	stats, err := f.predictions.AccuracyStats(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.VerifiedCount)
	assert.Equal(t, 1, stats.CorrectCount)
	assert.InDelta(t, 0.5, stats.Accuracy, 1e-9)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

var (
	// ErrNotFound is returned for point lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional write loses: the record
	// changed since it was read (version mismatch) or an insert raced with
	// another insert for the same key. Callers re-read and retry.
	ErrConflict = errors.New("record changed since read")
)

// MatchFilter narrows List. Zero values mean "no constraint". Stale records
// are excluded unless IncludeStale is set; a stale match belongs to neither
// the live nor the completed view.
type MatchFilter struct {
	State        domain.Lifecycle
	SportKey     string
	UpdatedSince time.Time
	IncludeStale bool
}

// MatchStore is the canonical match collection: point lookup by matchId,
// insert-once, and version-conditional update so concurrent merges for the
// same match serialize without a global lock.
type MatchStore interface {
	Get(ctx context.Context, matchID string) (*domain.CanonicalMatch, error)
	Insert(ctx context.Context, m *domain.CanonicalMatch) error
	Update(ctx context.Context, m *domain.CanonicalMatch) error
	List(ctx context.Context, filter MatchFilter) ([]domain.CanonicalMatch, error)
}

// PredictionStore keys predictions by matchId.
type PredictionStore interface {
	Get(ctx context.Context, matchID string) (*domain.Prediction, error)
	Upsert(ctx context.Context, p *domain.Prediction) error
	AccuracyStats(ctx context.Context, since time.Time) (domain.AccuracyStats, error)
}

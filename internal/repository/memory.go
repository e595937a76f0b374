package repository

import (
	"context"
	"sync"
	"time"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// MemoryMatchStore implements MatchStore in memory with the same conditional
// write semantics as the SQLite repository. Used by tests for deterministic
// pipeline runs with a fixed clock.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	matches map[string]*domain.CanonicalMatch
}

func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{matches: make(map[string]*domain.CanonicalMatch)}
}

func (s *MemoryMatchStore) Get(ctx context.Context, matchID string) (*domain.CanonicalMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryMatchStore) Insert(ctx context.Context, m *domain.CanonicalMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[m.MatchID]; exists {
		return ErrConflict
	}
	m.Version = 1
	s.matches[m.MatchID] = m.Clone()
	return nil
}

func (s *MemoryMatchStore) Update(ctx context.Context, m *domain.CanonicalMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.matches[m.MatchID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != m.Version {
		return ErrConflict
	}
	m.Version++
	s.matches[m.MatchID] = m.Clone()
	return nil
}

func (s *MemoryMatchStore) List(ctx context.Context, filter MatchFilter) ([]domain.CanonicalMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CanonicalMatch
	for _, m := range s.matches {
		if filter.State != "" && m.State != filter.State {
			continue
		}
		if filter.SportKey != "" && m.SportKey != filter.SportKey {
			continue
		}
		if !filter.UpdatedSince.IsZero() && m.LastUpdated.Before(filter.UpdatedSince) {
			continue
		}
		if !filter.IncludeStale && m.Stale {
			continue
		}
		out = append(out, *m.Clone())
	}
	sortMatches(out)
	return out, nil
}

func sortMatches(matches []domain.CanonicalMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].CommenceTime.Before(matches[j-1].CommenceTime); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// MemoryPredictionStore implements PredictionStore in memory.
type MemoryPredictionStore struct {
	mu          sync.RWMutex
	predictions map[string]*domain.Prediction
}

func NewMemoryPredictionStore() *MemoryPredictionStore {
	return &MemoryPredictionStore{predictions: make(map[string]*domain.Prediction)}
}

func (s *MemoryPredictionStore) Get(ctx context.Context, matchID string) (*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrediction(p), nil
}

func (s *MemoryPredictionStore) Upsert(ctx context.Context, p *domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = p.MatchID // deterministic in tests
	}
	s.predictions[p.MatchID] = clonePrediction(p)
	return nil
}

func (s *MemoryPredictionStore) AccuracyStats(ctx context.Context, since time.Time) (domain.AccuracyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.AccuracyStats
	for _, p := range s.predictions {
		if p.Verification == nil || p.Verification.VerifiedAt.Before(since) {
			continue
		}
		stats.VerifiedCount++
		if p.Verification.IsCorrect {
			stats.CorrectCount++
		}
	}
	if stats.VerifiedCount > 0 {
		stats.Accuracy = float64(stats.CorrectCount) / float64(stats.VerifiedCount)
	}
	return stats, nil
}

func clonePrediction(p *domain.Prediction) *domain.Prediction {
	out := *p
	if p.Verification != nil {
		v := *p.Verification
		out.Verification = &v
	}
	if p.OddsSnapshot != nil {
		out.OddsSnapshot = make(map[string]domain.BookmakerPrices, len(p.OddsSnapshot))
		for book, bp := range p.OddsSnapshot {
			out.OddsSnapshot[book] = bp
		}
	}
	return &out
}

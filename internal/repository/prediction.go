package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// PredictionRepository is the SQLite-backed PredictionStore. One row per
// match; the verification block lives in nullable columns so the accuracy
// tally stays a single indexed query.
type PredictionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPredictionRepository(db *sql.DB, logger zerolog.Logger) *PredictionRepository {
	return &PredictionRepository{db: db, logger: logger}
}

func (r *PredictionRepository) Get(ctx context.Context, matchID string) (*domain.Prediction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, match_id, predicted_winner, prob_home, prob_draw, prob_away, evaluated_at,
		        odds_snapshot, actual_winner, is_correct, verified_at, created_at, updated_at
		 FROM predictions WHERE match_id = ?`, matchID)

	var (
		p            domain.Prediction
		probDraw     sql.NullFloat64
		snapshot     sql.NullString
		actualWinner sql.NullString
		isCorrect    sql.NullBool
		verifiedAt   sql.NullTime
		evaluatedAt  time.Time
		createdAt    time.Time
		updatedAt    time.Time
	)
	err := row.Scan(&p.ID, &p.MatchID, &p.PredictedWinner, &p.ProbHome, &probDraw, &p.ProbAway,
		&evaluatedAt, &snapshot, &actualWinner, &isCorrect, &verifiedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction %s: %w", matchID, err)
	}

	p.EvaluatedAt = evaluatedAt.UTC()
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	if probDraw.Valid {
		p.ProbDraw = probDraw.Float64
	}
	if snapshot.Valid && snapshot.String != "" {
		if err := json.Unmarshal([]byte(snapshot.String), &p.OddsSnapshot); err != nil {
			return nil, fmt.Errorf("decode odds snapshot: %w", err)
		}
	}
	if actualWinner.Valid && isCorrect.Valid && verifiedAt.Valid {
		p.Verification = &domain.Verification{
			ActualWinner: domain.Outcome(actualWinner.String),
			IsCorrect:    isCorrect.Bool,
			VerifiedAt:   verifiedAt.Time.UTC(),
		}
	}
	return &p, nil
}

func (r *PredictionRepository) Upsert(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("generate prediction id: %w", err)
		}
		p.ID = id
	}

	var snapshot sql.NullString
	if len(p.OddsSnapshot) > 0 {
		data, err := json.Marshal(p.OddsSnapshot)
		if err != nil {
			return fmt.Errorf("encode odds snapshot: %w", err)
		}
		snapshot = sql.NullString{String: string(data), Valid: true}
	}

	var (
		actualWinner sql.NullString
		isCorrect    sql.NullBool
		verifiedAt   sql.NullTime
		probDraw     sql.NullFloat64
	)
	if p.Verification != nil {
		actualWinner = sql.NullString{String: string(p.Verification.ActualWinner), Valid: true}
		isCorrect = sql.NullBool{Bool: p.Verification.IsCorrect, Valid: true}
		verifiedAt = sql.NullTime{Time: p.Verification.VerifiedAt.UTC(), Valid: true}
	}
	if p.ProbDraw != 0 {
		probDraw = sql.NullFloat64{Float64: p.ProbDraw, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO predictions (match_id, id, predicted_winner, prob_home, prob_draw, prob_away,
		                          evaluated_at, odds_snapshot, actual_winner, is_correct, verified_at,
		                          created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_id) DO UPDATE SET
		   predicted_winner = excluded.predicted_winner,
		   prob_home = excluded.prob_home,
		   prob_draw = excluded.prob_draw,
		   prob_away = excluded.prob_away,
		   evaluated_at = excluded.evaluated_at,
		   odds_snapshot = excluded.odds_snapshot,
		   actual_winner = excluded.actual_winner,
		   is_correct = excluded.is_correct,
		   verified_at = excluded.verified_at,
		   updated_at = excluded.updated_at`,
		p.MatchID, p.ID, p.PredictedWinner, p.ProbHome, probDraw, p.ProbAway,
		p.EvaluatedAt.UTC(), snapshot, actualWinner, isCorrect, verifiedAt,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert prediction %s: %w", p.MatchID, err)
	}
	return nil
}

func (r *PredictionRepository) AccuracyStats(ctx context.Context, since time.Time) (domain.AccuracyStats, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_correct), 0)
		 FROM predictions
		 WHERE verified_at IS NOT NULL AND verified_at >= ?`, since.UTC())

	var stats domain.AccuracyStats
	if err := row.Scan(&stats.VerifiedCount, &stats.CorrectCount); err != nil {
		return stats, fmt.Errorf("accuracy stats: %w", err)
	}
	if stats.VerifiedCount > 0 {
		stats.Accuracy = float64(stats.CorrectCount) / float64(stats.VerifiedCount)
	}
	return stats, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// MatchRepository is the SQLite-backed MatchStore. Nested blocks (scoreboard,
// final scores, bookmaker odds) are stored as JSON columns; the version
// column carries the compare-and-swap discipline.
type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(db *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: db, logger: logger}
}

const matchColumns = `match_id, sport_key, home_team, away_team, commence_time, state, stale,
	live_score, final_scores, bookmaker_odds, version, last_updated, created_at`

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.CanonicalMatch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", matchID, err)
	}
	return m, nil
}

func (r *MatchRepository) Insert(ctx context.Context, m *domain.CanonicalMatch) error {
	liveScore, finalScores, odds, err := marshalMatchBlobs(m)
	if err != nil {
		return err
	}

	m.Version = 1
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO matches (`+matchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MatchID, m.SportKey, m.HomeTeam, m.AwayTeam, m.CommenceTime.UTC(), m.State, m.Stale,
		liveScore, finalScores, odds, m.Version, m.LastUpdated.UTC(), m.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert match %s: %w", m.MatchID, err)
	}
	return nil
}

func (r *MatchRepository) Update(ctx context.Context, m *domain.CanonicalMatch) error {
	liveScore, finalScores, odds, err := marshalMatchBlobs(m)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE matches
		 SET state = ?, stale = ?, live_score = ?, final_scores = ?, bookmaker_odds = ?,
		     version = version + 1, last_updated = ?
		 WHERE match_id = ? AND version = ?`,
		m.State, m.Stale, liveScore, finalScores, odds,
		m.LastUpdated.UTC(), m.MatchID, m.Version)
	if err != nil {
		return fmt.Errorf("update match %s: %w", m.MatchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match %s: %w", m.MatchID, err)
	}
	if affected == 0 {
		return ErrConflict
	}
	m.Version++
	return nil
}

func (r *MatchRepository) List(ctx context.Context, filter MatchFilter) ([]domain.CanonicalMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM matches`
	var conds []string
	var args []any

	if filter.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, filter.State)
	}
	if filter.SportKey != "" {
		conds = append(conds, "sport_key = ?")
		args = append(args, filter.SportKey)
	}
	if !filter.UpdatedSince.IsZero() {
		conds = append(conds, "last_updated >= ?")
		args = append(args, filter.UpdatedSince.UTC())
	}
	if !filter.IncludeStale {
		conds = append(conds, "stale = 0")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY commence_time"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []domain.CanonicalMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*domain.CanonicalMatch, error) {
	var (
		m           domain.CanonicalMatch
		liveScore   sql.NullString
		finalScores sql.NullString
		odds        sql.NullString
		commence    time.Time
		lastUpdated time.Time
		createdAt   time.Time
	)
	err := row.Scan(&m.MatchID, &m.SportKey, &m.HomeTeam, &m.AwayTeam, &commence, &m.State, &m.Stale,
		&liveScore, &finalScores, &odds, &m.Version, &lastUpdated, &createdAt)
	if err != nil {
		return nil, err
	}
	m.CommenceTime = commence.UTC()
	m.LastUpdated = lastUpdated.UTC()
	m.CreatedAt = createdAt.UTC()

	if liveScore.Valid && liveScore.String != "" {
		m.LiveScore = &domain.LiveScore{}
		if err := json.Unmarshal([]byte(liveScore.String), m.LiveScore); err != nil {
			return nil, fmt.Errorf("decode live score: %w", err)
		}
	}
	if finalScores.Valid && finalScores.String != "" {
		if err := json.Unmarshal([]byte(finalScores.String), &m.FinalScores); err != nil {
			return nil, fmt.Errorf("decode final scores: %w", err)
		}
	}
	if odds.Valid && odds.String != "" {
		if err := json.Unmarshal([]byte(odds.String), &m.Odds); err != nil {
			return nil, fmt.Errorf("decode bookmaker odds: %w", err)
		}
	}
	return &m, nil
}

func marshalMatchBlobs(m *domain.CanonicalMatch) (liveScore, finalScores, odds sql.NullString, err error) {
	if m.LiveScore != nil {
		data, jerr := json.Marshal(m.LiveScore)
		if jerr != nil {
			return liveScore, finalScores, odds, fmt.Errorf("encode live score: %w", jerr)
		}
		liveScore = sql.NullString{String: string(data), Valid: true}
	}
	if len(m.FinalScores) > 0 {
		data, jerr := json.Marshal(m.FinalScores)
		if jerr != nil {
			return liveScore, finalScores, odds, fmt.Errorf("encode final scores: %w", jerr)
		}
		finalScores = sql.NullString{String: string(data), Valid: true}
	}
	if len(m.Odds) > 0 {
		data, jerr := json.Marshal(m.Odds)
		if jerr != nil {
			return liveScore, finalScores, odds, fmt.Errorf("encode bookmaker odds: %w", jerr)
		}
		odds = sql.NullString{String: string(data), Valid: true}
	}
	return liveScore, finalScores, odds, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

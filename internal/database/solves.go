package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/shop-compare/internal/captcha"
)

const schema = `
CREATE TABLE IF NOT EXISTS captcha_solves (
	id          UUID PRIMARY KEY,
	site        TEXT NOT NULL,
	state       TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	submitted   TEXT[] NOT NULL DEFAULT '{}',
	error       TEXT,
	duration_ms BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const siteIndex = `CREATE INDEX IF NOT EXISTS idx_captcha_solves_site_created ON captcha_solves (site, created_at DESC)`

// Execer is the part of DB the repository needs (for testing)
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SolveStats aggregates the stored solves of one site.
type SolveStats struct {
	Site         string     `json:"site"`
	Total        int64      `json:"total"`
	Cleared      int64      `json:"cleared"`
	AvgAttempts  float64    `json:"avg_attempts"`
	LastSolvedAt *time.Time `json:"last_solved_at,omitempty"`
}

// SolveRepository stores one row per finished captcha solve.
type SolveRepository struct {
	db     Execer
	logger *slog.Logger
}

func NewSolveRepository(db Execer, logger *slog.Logger) *SolveRepository {
	return &SolveRepository{
		db:     db,
		logger: logger.With("component", "solve_repository"),
	}
}

func (r *SolveRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schema, siteIndex} {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create captcha_solves schema: %w", err)
		}
	}
	return nil
}

// RecordSolve implements captcha.Recorder.
func (r *SolveRepository) RecordSolve(ctx context.Context, rec captcha.Record) error {
	query := `
		INSERT INTO captcha_solves (id, site, state, attempts, submitted, error, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var errText *string
	if rec.Err != nil {
		msg := rec.Err.Error()
		errText = &msg
	}

	submitted := rec.Submitted
	if submitted == nil {
		submitted = []string{}
	}

	id := uuid.New()
	if _, err := r.db.Exec(ctx, query,
		id,
		rec.Site,
		rec.State.String(),
		rec.Attempts,
		submitted,
		errText,
		rec.Duration.Milliseconds(),
		rec.StartedAt,
	); err != nil {
		return fmt.Errorf("failed to insert captcha solve: %w", err)
	}

	r.logger.Debug("solve recorded", "id", id, "site", rec.Site, "state", rec.State.String())
	return nil
}

// Stats summarizes the stored solves of site. A site without rows yields
// zero totals.
func (r *SolveRepository) Stats(ctx context.Context, site string) (*SolveStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE state = $2),
		       COALESCE(AVG(attempts), 0),
		       MAX(created_at)
		FROM captcha_solves
		WHERE site = $1`

	stats := &SolveStats{Site: site}
	err := r.db.QueryRow(ctx, query, site, captcha.StateCleared.String()).
		Scan(&stats.Total, &stats.Cleared, &stats.AvgAttempts, &stats.LastSolvedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query solve stats: %w", err)
	}

	return stats, nil
}

// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// SQLiteStore persists reviews in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens dsn with the modernc driver and ensures the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to open ledger database", err).WithContext("dsn", dsn)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed store over db and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeConfig, "db is nil", nil)
	}
	if err := ensureSchema(db); err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create ledger schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, r Review) error {
	if r.ID == "" {
		return errors.New(errors.CodeInvalidInput, "review id is required", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reviews (
			id, variant, thread_id, orchestrator_id, run_id, status, answer, risk_level, complexity,
			error_text, agents_created, agents_released, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Variant,
		r.ThreadID,
		r.OrchestratorID,
		r.RunID,
		r.Status,
		r.Answer,
		r.RiskLevel,
		r.Complexity,
		r.Error,
		r.AgentsCreated,
		r.AgentsReleased,
		normalizeTime(r.StartedAt),
		normalizeTime(r.FinishedAt),
	)
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to record review", err).WithContext("review_id", r.ID)
	}
	return nil
}

const selectReviews = `
	SELECT id, variant, thread_id, orchestrator_id, run_id, status, answer, risk_level, complexity,
		error_text, agents_created, agents_released, started_at, finished_at
	FROM reviews
`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Review, error) {
	row := s.db.QueryRowContext(ctx, selectReviews+" WHERE id = ?", id)
	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, errors.New(errors.CodeNotFound, "review not found", nil).WithContext("review_id", id)
	}
	if err != nil {
		return Review{}, errors.New(errors.CodeInternal, "failed to read review", err)
	}
	return r, nil
}

// List implements Store. Most recent reviews come first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Review, error) {
	query := selectReviews
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	if filter.Variant != "" {
		addFilter("variant = ?", filter.Variant)
	}
	query += where + " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to list reviews", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, errors.New(errors.CodeInternal, "failed to scan review", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to list reviews", err)
	}
	return out, nil
}

// Close closes the database when OpenSQLite opened it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (Review, error) {
	var (
		r        Review
		started  sql.NullTime
		finished sql.NullTime
	)
	if err := row.Scan(
		&r.ID,
		&r.Variant,
		&r.ThreadID,
		&r.OrchestratorID,
		&r.RunID,
		&r.Status,
		&r.Answer,
		&r.RiskLevel,
		&r.Complexity,
		&r.Error,
		&r.AgentsCreated,
		&r.AgentsReleased,
		&started,
		&finished,
	); err != nil {
		return Review{}, err
	}
	if started.Valid {
		r.StartedAt = started.Time
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			thread_id TEXT NOT NULL DEFAULT '',
			orchestrator_id TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			risk_level TEXT NOT NULL DEFAULT '',
			complexity TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			agents_created INTEGER NOT NULL DEFAULT 0,
			agents_released INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status);
		CREATE INDEX IF NOT EXISTS idx_reviews_started ON reviews(started_at);
	`)
	return err
}

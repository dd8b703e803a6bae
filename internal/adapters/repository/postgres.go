package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clouddev/leaderboard/internal/domain/model"
	"github.com/clouddev/leaderboard/pkg/metrics"
)

// PostgresStore implements Store on a relational table scanned with
// ORDER BY for top-N and a COUNT subquery for rank. Per-key atomicity
// comes from versioned conditional writes, not application locks.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// uniqueViolation is the class 23 code pq reports on a duplicate key.
const uniqueViolation = "23505"

// Schema holds the DDL for the backing table. Applied on open so a fresh
// database is usable without a separate migration step.
const Schema = `
CREATE TABLE IF NOT EXISTS leaderboard_entries (
    user_id            TEXT PRIMARY KEY,
    score              DOUBLE PRECISION NOT NULL,
    streak_count       BIGINT NOT NULL,
    last_activity_date DATE NOT NULL,
    version            BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS leaderboard_entries_score_idx
    ON leaderboard_entries (score DESC, user_id ASC);
`

// OpenPostgres connects to dsn, verifies the connection and ensures the
// schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// entryRow mirrors the leaderboard_entries table.
type entryRow struct {
	UserID       string    `db:"user_id"`
	Score        float64   `db:"score"`
	StreakCount  int64     `db:"streak_count"`
	LastActivity time.Time `db:"last_activity_date"`
	Version      int64     `db:"version"`
}

func (r entryRow) entry() model.Entry {
	return model.Entry{
		UserID:       r.UserID,
		Score:        r.Score,
		StreakCount:  r.StreakCount,
		LastActivity: model.DateOf(r.LastActivity),
		Version:      r.Version,
	}
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, userID string) (model.Entry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, score, streak_count, last_activity_date, version
		FROM leaderboard_entries
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, ErrNotFound
	}
	if err != nil {
		return model.Entry{}, storeErr("get entry", err)
	}
	return row.entry(), nil
}

// Upsert implements Store.Upsert. Version 0 inserts a fresh row and maps
// a duplicate-key violation to ErrConflict; any other version issues a
// conditional update where zero affected rows means the version moved.
func (s *PostgresStore) Upsert(ctx context.Context, entry model.Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if entry.Version == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO leaderboard_entries (user_id, score, streak_count, last_activity_date, version)
			VALUES ($1, $2, $3, $4, 1)
		`, entry.UserID, entry.Score, entry.StreakCount, model.DateOf(entry.LastActivity))
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrConflict
		}
		if err != nil {
			return storeErr("insert entry", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leaderboard_entries
		SET score = $2, streak_count = $3, last_activity_date = $4, version = version + 1
		WHERE user_id = $1 AND version = $5
	`, entry.UserID, entry.Score, entry.StreakCount, model.DateOf(entry.LastActivity), entry.Version)
	if err != nil {
		return storeErr("update entry", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storeErr("update entry", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

// TopN implements Store.TopN with an ordered, bounded scan.
func (s *PostgresStore) TopN(ctx context.Context, n int) ([]model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, score, streak_count, last_activity_date, version
		FROM leaderboard_entries
		ORDER BY score DESC, user_id ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, storeErr("top-n scan", err)
	}

	out := make([]model.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// CountGreaterThan implements Store.CountGreaterThan.
func (s *PostgresStore) CountGreaterThan(ctx context.Context, score float64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM leaderboard_entries WHERE score > $1
	`, score)
	if err != nil {
		return 0, storeErr("count greater", err)
	}
	return count, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM leaderboard_entries`)
	if err != nil {
		return 0, storeErr("count entries", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// storeErr wraps driver failures as ErrUnavailable so callers see one
// retryable kind regardless of backend.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}

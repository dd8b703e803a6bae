// Package repository defines the score store interface and its adapters.
package repository

import (
	"context"

	"github.com/clouddev/leaderboard/internal/domain/model"
)

// Store provides durable access to per-user leaderboard entries.
//
// Implementations must give read-after-write consistency per key: a Get
// issued after a completed Upsert observes the new value from any caller.
// Cross-key reads (TopN, CountGreaterThan) are snapshot reads of whatever
// state is committed and never block writers.
type Store interface {
	// Get returns the entry for userID.
	// Returns ErrNotFound if the user has no leaderboard presence.
	Get(ctx context.Context, userID string) (model.Entry, error)

	// Upsert atomically creates or replaces the entry for entry.UserID.
	// The write is conditional on entry.Version matching the stored
	// version (0 means the entry must not exist yet); a mismatch returns
	// ErrConflict and leaves the store unchanged.
	Upsert(ctx context.Context, entry model.Entry) error

	// TopN returns up to n entries ordered by score descending, ties
	// broken by userID ascending so repeated calls against an unchanged
	// store return the same order.
	TopN(ctx context.Context, n int) ([]model.Entry, error)

	// CountGreaterThan returns the number of entries with a score
	// strictly greater than score. A 1-based rank for a score is
	// CountGreaterThan(score) + 1.
	CountGreaterThan(ctx context.Context, score float64) (int, error)

	// Count returns the number of entries tracked.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

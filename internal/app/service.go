// Package app provides the leaderboard service that orchestrates score
// updates and ranking queries over a score store.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clouddev/leaderboard/internal/adapters/directory"
	"github.com/clouddev/leaderboard/internal/adapters/repository"
	"github.com/clouddev/leaderboard/internal/domain/model"
	"github.com/clouddev/leaderboard/internal/domain/streak"
	"github.com/clouddev/leaderboard/internal/domain/types"
	"github.com/clouddev/leaderboard/pkg/logger"
	"github.com/clouddev/leaderboard/pkg/metrics"
)

// defaultStoreTimeout bounds a single store operation.
const defaultStoreTimeout = 2 * time.Second

// Service owns the transaction boundary around score updates and serves
// ranking reads. The store is the only shared mutable state and is only
// mutated through UpdateScore.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	directory directory.Client
	log       logger.Logger

	now          func() time.Time
	storeTimeout time.Duration

	started bool
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDirectory sets the display-name enrichment client.
func WithDirectory(client directory.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.directory = client
		}
	}
}

// WithNow sets the clock used to derive activity dates. Tests inject a
// fixed clock to exercise streak transitions deterministically.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreTimeout bounds each individual store operation.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.storeTimeout = timeout
		}
	}
}

// New constructs a Service over the given store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		directory:    directory.Noop{},
		log:          logger.Nop(),
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service ready. The store and directory client are
// constructed and injected by the caller, so there is nothing to spin up
// beyond sanity logging.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.log.Info(ctx, "leaderboard service started")
	return nil
}

// Stop releases the backing store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn(context.Background(), "store close failed", logger.Error(err))
	}
	s.started = false
	s.log.Info(context.Background(), "leaderboard service stopped")
}

// UpdateScore applies a signed delta to the user's cumulative score and
// rolls the activity streak forward. The read-modify-write cycle uses the
// store's versioned conditional upsert and retries on conflict, so two
// concurrent deltas for the same user both land.
func (s *Service) UpdateScore(ctx context.Context, userID string, delta float64) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("update abandoned: %v: %w", err, repository.ErrUnavailable)
		}

		entry, err := s.getEntry(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordScoreUpdateError()
			return err
		}

		today := model.DateOf(s.now())
		next := model.Entry{
			UserID:       userID,
			Score:        entry.Score + delta,
			StreakCount:  streak.Next(entry.StreakCount, entry.LastActivity, today),
			LastActivity: today,
			Version:      entry.Version,
		}

		err = s.upsertEntry(ctx, next)
		if errors.Is(err, repository.ErrConflict) {
			// Another writer moved the version between read and write;
			// re-read and recompute on the fresh state.
			metrics.RecordUpsertConflict()
			continue
		}
		if err != nil {
			metrics.RecordScoreUpdateError()
			return err
		}

		metrics.RecordScoreUpdate()
		s.log.Debug(ctx, "score updated",
			logger.String("userId", userID),
			logger.Float64("delta", delta),
			logger.Float64("score", next.Score),
			logger.Int64("streak", next.StreakCount),
		)
		return nil
	}
}

// TopN returns the top n entries with positional 1-based ranks. Ties are
// not deduplicated: equal scores at adjacent positions receive distinct
// ranks. A non-positive n yields an empty result without a store access.
func (s *Service) TopN(ctx context.Context, n int) ([]types.RankedEntry, error) {
	if n <= 0 {
		return []types.RankedEntry{}, nil
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	entries, err := s.store.TopN(opCtx, n)
	if err != nil {
		return nil, timeoutErr(opCtx, err)
	}

	ranked := make([]types.RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = types.RankedEntry{
			Rank:   int64(i) + 1,
			UserID: e.UserID,
			Score:  e.Score,
			Streak: e.StreakCount,
		}
	}
	s.decorate(ctx, ranked)
	return ranked, nil
}

// RankOf returns the user's entry with its 1-based rank, computed as the
// number of strictly higher scores plus one. Returns
// repository.ErrNotFound for a user with no leaderboard presence.
func (s *Service) RankOf(ctx context.Context, userID string) (types.RankedEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return types.RankedEntry{}, ErrInvalidUserID
	}

	entry, err := s.getEntry(ctx, userID)
	if err != nil {
		return types.RankedEntry{}, err
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	higher, err := s.store.CountGreaterThan(opCtx, entry.Score)
	if err != nil {
		return types.RankedEntry{}, timeoutErr(opCtx, err)
	}

	ranked := []types.RankedEntry{{
		Rank:   int64(higher) + 1,
		UserID: entry.UserID,
		Score:  entry.Score,
		Streak: entry.StreakCount,
	}}
	s.decorate(ctx, ranked)
	return ranked[0], nil
}

// StreakOf returns the user's current streak count, or 0 for a user that
// has never recorded an update. Absence is a valid empty result here,
// not an error.
func (s *Service) StreakOf(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrInvalidUserID
	}

	entry, err := s.getEntry(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.StreakCount, nil
}

// Count returns the number of tracked entries, for the stats endpoint.
func (s *Service) Count(ctx context.Context) (int, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	count, err := s.store.Count(opCtx)
	if err != nil {
		return 0, timeoutErr(opCtx, err)
	}
	return count, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"storeTimeoutMs": s.storeTimeout.Milliseconds(),
	}
	if count, err := s.Count(context.Background()); err == nil {
		stats["totalEntries"] = count
		metrics.UpdateStoreEntriesTotal(count)
	}
	return stats
}

// decorate fills display names from the user directory. The lookup is
// best effort and isolated: on failure the entries keep their raw ids and
// the ranking result is returned unchanged and undelayed beyond the
// directory client's own timeout.
func (s *Service) decorate(ctx context.Context, entries []types.RankedEntry) {
	if len(entries) == 0 {
		return
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}

	names, err := s.directory.DisplayNames(ctx, ids)
	if err != nil {
		metrics.RecordEnrichmentFailure()
		s.log.Warn(ctx, "display name enrichment degraded", logger.Error(err))
		names = map[string]string{}
	}

	for i := range entries {
		if name, ok := names[entries[i].UserID]; ok && name != "" {
			entries[i].DisplayName = name
		} else {
			entries[i].DisplayName = entries[i].UserID
		}
	}
}

func (s *Service) getEntry(ctx context.Context, userID string) (model.Entry, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	entry, err := s.store.Get(opCtx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Entry{}, timeoutErr(opCtx, err)
	}
	return entry, err
}

func (s *Service) upsertEntry(ctx context.Context, entry model.Entry) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.store.Upsert(opCtx, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return err
		}
		return timeoutErr(opCtx, err)
	}
	return nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// timeoutErr folds a deadline expiry into the unavailable kind so the
// caller sees one retryable failure mode; no partial write is visible.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, repository.ErrUnavailable) {
		return fmt.Errorf("store deadline exceeded: %v: %w", err, repository.ErrUnavailable)
	}
	return err
}

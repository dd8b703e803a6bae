package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clouddev/leaderboard/internal/adapters/repository"
	"github.com/clouddev/leaderboard/internal/app"
	"github.com/clouddev/leaderboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// countingStore wraps a Store and records how often it is touched.
type countingStore struct {
	repository.Store
	mu    sync.Mutex
	calls int
}

func (c *countingStore) TopN(ctx context.Context, n int) ([]model.Entry, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Store.TopN(ctx, n)
}

// failingStore returns a fixed error from every operation.
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) (model.Entry, error) { return model.Entry{}, f.err }
func (f failingStore) Upsert(context.Context, model.Entry) error       { return f.err }
func (f failingStore) TopN(context.Context, int) ([]model.Entry, error) {
	return nil, f.err
}
func (f failingStore) CountGreaterThan(context.Context, float64) (int, error) { return 0, f.err }
func (f failingStore) Count(context.Context) (int, error)                     { return 0, f.err }
func (f failingStore) Close() error                                           { return nil }

// fixedDirectory resolves display names from a static map.
type fixedDirectory struct {
	names map[string]string
	err   error
}

func (d fixedDirectory) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUpdateScore(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given a leaderboard service over a fresh store", t, func() {
		store := repository.NewMemoryStore()
		svc := app.New(store, app.WithNow(fixedClock(day1)))

		Convey("The first update creates an entry with streak 1", func() {
			So(svc.UpdateScore(ctx, "alice", 10), ShouldBeNil)

			got, err := store.Get(ctx, "alice")
			So(err, ShouldBeNil)
			So(got.Score, ShouldEqual, 10)
			So(got.StreakCount, ShouldEqual, 1)
			So(got.LastActivity, ShouldResemble, model.DateOf(day1))
		})

		Convey("Deltas accumulate and may be negative", func() {
			So(svc.UpdateScore(ctx, "alice", 10), ShouldBeNil)
			So(svc.UpdateScore(ctx, "alice", -3.5), ShouldBeNil)

			got, _ := store.Get(ctx, "alice")
			So(got.Score, ShouldEqual, 6.5)
		})

		Convey("A second update the same day leaves the streak at 1", func() {
			So(svc.UpdateScore(ctx, "alice", 10), ShouldBeNil)
			So(svc.UpdateScore(ctx, "alice", 5), ShouldBeNil)

			got, _ := store.Get(ctx, "alice")
			So(got.StreakCount, ShouldEqual, 1)
		})

		Convey("An update the next day increments the streak", func() {
			So(svc.UpdateScore(ctx, "alice", 10), ShouldBeNil)

			later := app.New(store, app.WithNow(fixedClock(day1.AddDate(0, 0, 1))))
			So(later.UpdateScore(ctx, "alice", 1), ShouldBeNil)

			got, _ := store.Get(ctx, "alice")
			So(got.StreakCount, ShouldEqual, 2)
		})

		Convey("An update after a gap resets the streak to 1", func() {
			So(svc.UpdateScore(ctx, "alice", 10), ShouldBeNil)

			next := app.New(store, app.WithNow(fixedClock(day1.AddDate(0, 0, 1))))
			So(next.UpdateScore(ctx, "alice", 1), ShouldBeNil)

			afterGap := app.New(store, app.WithNow(fixedClock(day1.AddDate(0, 0, 4))))
			So(afterGap.UpdateScore(ctx, "alice", 1), ShouldBeNil)

			got, _ := store.Get(ctx, "alice")
			So(got.StreakCount, ShouldEqual, 1)
		})

		Convey("A blank user id is rejected before touching the store", func() {
			So(errors.Is(svc.UpdateScore(ctx, "   ", 1), app.ErrInvalidUserID), ShouldBeTrue)
			n, _ := store.Count(ctx)
			So(n, ShouldEqual, 0)
		})

		Convey("Store failures surface as unavailable", func() {
			broken := app.New(failingStore{err: repository.ErrUnavailable})
			So(errors.Is(broken.UpdateScore(ctx, "alice", 1), repository.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestUpdateScoreConcurrent(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given concurrent deltas for one user", t, func() {
		store := repository.NewMemoryStore()
		svc := app.New(store, app.WithNow(fixedClock(day)))

		const writers = 10
		const perWriter = 20

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					if err := svc.UpdateScore(ctx, "shared", 1); err != nil {
						t.Error(err)
						return
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every delta lands exactly once", func() {
			got, err := store.Get(ctx, "shared")
			So(err, ShouldBeNil)
			So(got.Score, ShouldEqual, float64(writers*perWriter))
		})
	})
}

func TestTopN(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given a populated leaderboard", t, func() {
		store := repository.NewMemoryStore()
		svc := app.New(store, app.WithNow(fixedClock(day)))
		So(svc.UpdateScore(ctx, "alice", 50), ShouldBeNil)
		So(svc.UpdateScore(ctx, "bob", 40), ShouldBeNil)
		So(svc.UpdateScore(ctx, "carol", 40), ShouldBeNil)
		So(svc.UpdateScore(ctx, "dave", 10), ShouldBeNil)

		Convey("TopN assigns positional 1-based ranks", func() {
			got, err := svc.TopN(ctx, 3)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 3)
			So(got[0].Rank, ShouldEqual, 1)
			So(got[0].UserID, ShouldEqual, "alice")
			So(got[1].Rank, ShouldEqual, 2)
			So(got[2].Rank, ShouldEqual, 3)
		})

		Convey("Equal scores get distinct ranks, ordered by user id", func() {
			got, err := svc.TopN(ctx, 4)
			So(err, ShouldBeNil)
			So(got[1].UserID, ShouldEqual, "bob")
			So(got[2].UserID, ShouldEqual, "carol")
			So(got[1].Rank, ShouldNotEqual, got[2].Rank)
		})

		Convey("Asking for more than the population returns everyone", func() {
			got, err := svc.TopN(ctx, 100)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 4)
		})

		Convey("Without a directory the display name falls back to the id", func() {
			got, err := svc.TopN(ctx, 1)
			So(err, ShouldBeNil)
			So(got[0].DisplayName, ShouldEqual, "alice")
		})
	})

	Convey("Given a non-positive limit", t, func() {
		counting := &countingStore{Store: repository.NewMemoryStore()}
		svc := app.New(counting)

		Convey("TopN answers empty without a store access", func() {
			for _, n := range []int{0, -1, -100} {
				got, err := svc.TopN(ctx, n)
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			}
			So(counting.calls, ShouldEqual, 0)
		})
	})
}

func TestRankOf(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given a populated leaderboard", t, func() {
		store := repository.NewMemoryStore()
		svc := app.New(store, app.WithNow(fixedClock(day)))
		So(svc.UpdateScore(ctx, "alice", 50), ShouldBeNil)
		So(svc.UpdateScore(ctx, "bob", 40), ShouldBeNil)
		So(svc.UpdateScore(ctx, "carol", 40), ShouldBeNil)
		So(svc.UpdateScore(ctx, "dave", 10), ShouldBeNil)

		Convey("The leader has rank 1", func() {
			got, err := svc.RankOf(ctx, "alice")
			So(err, ShouldBeNil)
			So(got.Rank, ShouldEqual, 1)
			So(got.Score, ShouldEqual, 50)
		})

		Convey("Tied users share the count-based rank", func() {
			bob, err := svc.RankOf(ctx, "bob")
			So(err, ShouldBeNil)
			carol, err := svc.RankOf(ctx, "carol")
			So(err, ShouldBeNil)
			So(bob.Rank, ShouldEqual, 2)
			So(carol.Rank, ShouldEqual, 2)
		})

		Convey("Rank follows strictly higher scores plus one", func() {
			got, err := svc.RankOf(ctx, "dave")
			So(err, ShouldBeNil)
			So(got.Rank, ShouldEqual, 4)
		})

		Convey("An unknown user maps to ErrNotFound", func() {
			_, err := svc.RankOf(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("A blank user id is invalid", func() {
			_, err := svc.RankOf(ctx, "")
			So(errors.Is(err, app.ErrInvalidUserID), ShouldBeTrue)
		})
	})
}

func TestStreakOf(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given a leaderboard service", t, func() {
		store := repository.NewMemoryStore()
		svc := app.New(store, app.WithNow(fixedClock(day)))

		Convey("An absent user has streak 0, not an error", func() {
			got, err := svc.StreakOf(ctx, "nobody")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, 0)
		})

		Convey("An active user reports the stored streak", func() {
			So(svc.UpdateScore(ctx, "alice", 1), ShouldBeNil)
			got, err := svc.StreakOf(ctx, "alice")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, 1)
		})

		Convey("A blank user id is invalid", func() {
			_, err := svc.StreakOf(ctx, " ")
			So(errors.Is(err, app.ErrInvalidUserID), ShouldBeTrue)
		})
	})
}

func TestDisplayNameEnrichment(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	Convey("Given a directory that knows some users", t, func() {
		store := repository.NewMemoryStore()
		dir := fixedDirectory{names: map[string]string{"alice": "Alice Smith"}}
		svc := app.New(store, app.WithNow(fixedClock(day)), app.WithDirectory(dir))
		So(svc.UpdateScore(ctx, "alice", 50), ShouldBeNil)
		So(svc.UpdateScore(ctx, "bob", 40), ShouldBeNil)

		Convey("Known users get their display name, others keep the id", func() {
			got, err := svc.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(got[0].DisplayName, ShouldEqual, "Alice Smith")
			So(got[1].DisplayName, ShouldEqual, "bob")
		})

		Convey("RankOf is enriched the same way", func() {
			got, err := svc.RankOf(ctx, "alice")
			So(err, ShouldBeNil)
			So(got.DisplayName, ShouldEqual, "Alice Smith")
		})
	})

	Convey("Given a directory that is down", t, func() {
		store := repository.NewMemoryStore()
		dir := fixedDirectory{err: fmt.Errorf("directory unreachable")}
		svc := app.New(store, app.WithNow(fixedClock(day)), app.WithDirectory(dir))
		So(svc.UpdateScore(ctx, "alice", 50), ShouldBeNil)

		Convey("Rank queries still succeed with ids as display names", func() {
			got, err := svc.TopN(ctx, 1)
			So(err, ShouldBeNil)
			So(got[0].DisplayName, ShouldEqual, "alice")
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := app.New(repository.NewMemoryStore())

		Convey("Start is idempotent and Stop after Start is clean", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()
			svc.Stop()
		})

		Convey("GetStats exposes the entry count", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.UpdateScore(ctx, "alice", 1), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["totalEntries"], ShouldEqual, 1)
		})
	})
}

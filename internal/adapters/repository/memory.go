package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/clouddev/leaderboard/internal/domain/model"
	"github.com/clouddev/leaderboard/pkg/metrics"
)

// Treap-backed, in-memory Store implementation.
//
// Ordering: score DESC, then userID ASC (deterministic). The BST
// comparator treats "less" as "ranks earlier", so an in-order traversal
// yields the leaderboard from best to worst. Subtree sizes give
// CountGreaterThan in O(log n) without a full scan.

// scoreScale controls fixed-point scaling from float64 so that score
// comparisons inside the tree are exact.
const scoreScale = 1_000_000_000 // 9 decimal places

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * scoreScale
	if scaled >= float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record holds the stored state for one user.
type record struct {
	score        scoreFP
	streak       int64
	lastActivity time.Time
	version      int64
}

// treap node
type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks earlier than (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit ids in rank order (best first).
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// countGreater returns the number of nodes whose score is strictly
// greater than x, using subtree sizes.
func countGreater(n *node, x scoreFP) int {
	if n == nil {
		return 0
	}
	if n.score > x {
		// The whole left subtree ranks earlier than n, so every node in
		// it scores at least n.score.
		return nsize(n.left) + 1 + countGreater(n.right, x)
	}
	return countGreater(n.left, x)
}

// MemoryStore implements Store with an in-process treap. It backs the
// sorted-set ranking strategy without an external dependency and doubles
// as the store used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	root     *node
	byID     map[string]record
	nextPrio uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[string]record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store.Get in O(1).
func (s *MemoryStore) Get(ctx context.Context, userID string) (model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[userID]
	if !ok {
		return model.Entry{}, ErrNotFound
	}
	return entryFromRecord(userID, rec), nil
}

// Upsert implements Store.Upsert with O(log n) expected time. The version
// check and tree mutation happen under one lock, so concurrent writers
// for the same user serialize through ErrConflict retries.
func (s *MemoryStore) Upsert(ctx context.Context, entry model.Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	ns := toFixedPoint(entry.Score)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.byID[entry.UserID]
	switch {
	case !exists && entry.Version != 0:
		return ErrConflict
	case exists && entry.Version != old.version:
		return ErrConflict
	}

	if exists {
		s.root = deleteNode(s.root, entry.UserID, old.score)
	}
	s.nextPrio++
	s.byID[entry.UserID] = record{
		score:        ns,
		streak:       entry.StreakCount,
		lastActivity: model.DateOf(entry.LastActivity),
		version:      entry.Version + 1,
	}
	s.root = insert(s.root, entry.UserID, ns, splitmix(s.nextPrio))

	metrics.UpdateStoreEntriesTotal(len(s.byID))
	return nil
}

// TopN implements Store.TopN in O(log n + k).
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &ids)

	out := make([]model.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, entryFromRecord(id, s.byID[id]))
	}
	return out, nil
}

// CountGreaterThan implements Store.CountGreaterThan in O(log n).
func (s *MemoryStore) CountGreaterThan(ctx context.Context, score float64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countGreater(s.root, toFixedPoint(score)), nil
}

// Count returns the total number of entries.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close implements Store.Close; the memory store holds no resources.
func (s *MemoryStore) Close() error {
	return nil
}

func entryFromRecord(id string, rec record) model.Entry {
	return model.Entry{
		UserID:       id,
		Score:        toFloat(rec.score),
		StreakCount:  rec.streak,
		LastActivity: rec.lastActivity,
		Version:      rec.version,
	}
}

// splitmix mixes a counter into a treap priority. Insertion order must
// not correlate with tree shape or the treap degenerates.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

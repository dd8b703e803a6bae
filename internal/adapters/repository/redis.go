package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/clouddev/leaderboard/internal/domain/model"
	"github.com/clouddev/leaderboard/pkg/metrics"
)

// RedisStore implements Store on a Redis sorted set plus one hash per
// user. The sorted set ranks by score; the hash carries streak state and
// the version that guards conditional writes. A Lua script applies the
// version check, hash write and ZADD as one atomic unit on the server,
// so no application lock spans the network call.
type RedisStore struct {
	client *redis.Client
	board  string
	prefix string
}

var _ Store = (*RedisStore)(nil)

const (
	defaultBoardKey    = "leaderboard:board"
	defaultEntryPrefix = "leaderboard:entry:"
	dateLayout         = "2006-01-02"
)

// upsertScript checks the stored version, then writes the entry hash and
// the sorted-set member together. Returns 1 on success, 0 on a version
// mismatch.
var upsertScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1],
    'score', ARGV[2], 'streak', ARGV[3], 'last_activity', ARGV[4], 'version', ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[6])
return 1
`)

// OpenRedis connects to addr/db and verifies the connection.
func OpenRedis(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client), nil
}

// NewRedisStore wraps an existing client using the default key layout.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		board:  defaultBoardKey,
		prefix: defaultEntryPrefix,
	}
}

func (s *RedisStore) entryKey(userID string) string {
	return s.prefix + userID
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, userID string) (model.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.entryKey(userID)).Result()
	if err != nil {
		return model.Entry{}, storeErr("get entry", err)
	}
	if len(fields) == 0 {
		return model.Entry{}, ErrNotFound
	}
	return parseEntry(userID, fields)
}

// Upsert implements Store.Upsert via the server-side script.
func (s *RedisStore) Upsert(ctx context.Context, entry model.Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	keys := []string{s.entryKey(entry.UserID), s.board}
	res, err := upsertScript.Run(ctx, s.client, keys,
		strconv.FormatInt(entry.Version, 10),
		formatScore(entry.Score),
		strconv.FormatInt(entry.StreakCount, 10),
		model.DateOf(entry.LastActivity).Format(dateLayout),
		strconv.FormatInt(entry.Version+1, 10),
		entry.UserID,
	).Int64()
	if err != nil {
		return storeErr("upsert entry", err)
	}
	if res == 0 {
		return ErrConflict
	}
	return nil
}

// TopN implements Store.TopN with a bounded reverse range over the
// sorted set, then a pipelined hash fetch for streak state.
func (s *RedisStore) TopN(ctx context.Context, n int) ([]model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	members, err := s.client.ZRevRangeWithScores(ctx, s.board, 0, int64(n)-1).Result()
	if err != nil {
		return nil, storeErr("top-n range", err)
	}
	if len(members) == 0 {
		return []model.Entry{}, nil
	}

	cmds := make([]*redis.StringStringMapCmd, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(m.Member.(string)))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("top-n fetch", err)
	}

	out := make([]model.Entry, 0, len(members))
	for i, m := range members {
		id := m.Member.(string)
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			// Member without a hash: surface what the sorted set knows.
			out = append(out, model.Entry{UserID: id, Score: m.Score, StreakCount: 1})
			continue
		}
		entry, perr := parseEntry(id, fields)
		if perr != nil {
			return nil, perr
		}
		out = append(out, entry)
	}

	// ZREVRANGE breaks score ties by reverse lexical member order; flip
	// ties to userID ascending to match the other adapters.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// CountGreaterThan implements Store.CountGreaterThan with ZCOUNT over an
// exclusive lower bound.
func (s *RedisStore) CountGreaterThan(ctx context.Context, score float64) (int, error) {
	count, err := s.client.ZCount(ctx, s.board, "("+formatScore(score), "+inf").Result()
	if err != nil {
		return 0, storeErr("count greater", err)
	}
	return int(count), nil
}

// Count implements Store.Count.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.ZCard(ctx, s.board).Result()
	if err != nil {
		return 0, storeErr("count entries", err)
	}
	return int(count), nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseEntry(userID string, fields map[string]string) (model.Entry, error) {
	score, err := strconv.ParseFloat(fields["score"], 64)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parse score for %s: %w", userID, err)
	}
	streak, err := strconv.ParseInt(fields["streak"], 10, 64)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parse streak for %s: %w", userID, err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parse version for %s: %w", userID, err)
	}
	last, err := time.ParseInLocation(dateLayout, fields["last_activity"], time.UTC)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parse activity date for %s: %w", userID, err)
	}
	return model.Entry{
		UserID:       userID,
		Score:        score,
		StreakCount:  streak,
		LastActivity: last,
		Version:      version,
	}, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

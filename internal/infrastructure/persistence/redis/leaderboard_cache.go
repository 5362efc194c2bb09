package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
)

// ErrStudentIDEmpty is returned when an entry has no student id.
var ErrStudentIDEmpty = errors.New("leaderboard_cache: student id cannot be empty")

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps one leaderboard per class:
//   - sorted set "classquest:leaderboard:class:{classID}", student id scored by exp
//   - hash "classquest:leaderboard:meta:{classID}", student id to entry JSON
//
// A nil or disabled cache makes every read a miss and every write a no-op.
// Redis calls go through a circuit breaker: after repeated connection
// failures they fail fast with circuitbreaker.ErrCircuitOpen.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewLeaderboardCache creates a new LeaderboardCache instance. onStateChange
// may be nil.
func NewLeaderboardCache(cache *Cache, onStateChange ...func(name string, from, to circuitbreaker.State)) *LeaderboardCache {
	var notify func(string, circuitbreaker.State, circuitbreaker.State)
	if len(onStateChange) > 0 {
		notify = onStateChange[0]
	}
	return &LeaderboardCache{
		cache:   cache,
		breaker: circuitbreaker.CacheBreaker(isConnectionFailure, notify),
	}
}

// isConnectionFailure counts only errors that say Redis itself is unwell.
func isConnectionFailure(err error) bool {
	switch {
	case errors.Is(err, ErrCacheMiss),
		errors.Is(err, ErrCacheSerialization),
		errors.Is(err, ErrStudentIDEmpty),
		errors.Is(err, redis.Nil),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// guard runs fn through the breaker.
func (l *LeaderboardCache) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.breaker.Execute(ctx, fn)
}

// BreakerState reports the state of the Redis circuit breaker.
func (l *LeaderboardCache) BreakerState() circuitbreaker.State {
	if l == nil {
		return circuitbreaker.StateClosed
	}
	return l.breaker.State()
}

// Enabled reports whether a Redis client backs the leaderboard.
func (l *LeaderboardCache) Enabled() bool {
	return l != nil && l.cache.Enabled()
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Upsert updates or adds one entry. It is a no-op when the class board has not
// been built yet, so a partial board is never served as complete.
func (l *LeaderboardCache) Upsert(ctx context.Context, classID string, entry leaderboard.Entry) error {
	if !l.Enabled() {
		return nil
	}
	if entry.StudentID == "" {
		return ErrStudentIDEmpty
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return l.guard(ctx, func(ctx context.Context) error {
		client := l.cache.client
		exists, err := client.Exists(ctx, LeaderboardKey(classID)).Result()
		if err != nil || exists == 0 {
			return err
		}

		pipe := client.TxPipeline()
		pipe.ZAdd(ctx, LeaderboardKey(classID), redis.Z{Score: float64(entry.Exp), Member: entry.StudentID})
		pipe.HSet(ctx, LeaderboardMetaKey(classID), entry.StudentID, data)
		pipe.Expire(ctx, LeaderboardKey(classID), TTLLeaderboard)
		pipe.Expire(ctx, LeaderboardMetaKey(classID), TTLLeaderboard)
		_, err = pipe.Exec(ctx)
		return err
	})
}

// Remove drops a student from the class board.
func (l *LeaderboardCache) Remove(ctx context.Context, classID, studentID string) error {
	if !l.Enabled() {
		return nil
	}
	if studentID == "" {
		return ErrStudentIDEmpty
	}

	return l.guard(ctx, func(ctx context.Context) error {
		pipe := l.cache.client.TxPipeline()
		pipe.ZRem(ctx, LeaderboardKey(classID), studentID)
		pipe.HDel(ctx, LeaderboardMetaKey(classID), studentID)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Replace swaps the whole class board atomically.
func (l *LeaderboardCache) Replace(ctx context.Context, classID string, entries []leaderboard.Entry) error {
	if !l.Enabled() {
		return nil
	}

	members := make([]redis.Z, 0, len(entries))
	fields := make(map[string]any, len(entries))
	for _, e := range entries {
		if e.StudentID == "" {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		members = append(members, redis.Z{Score: float64(e.Exp), Member: e.StudentID})
		fields[e.StudentID] = data
	}

	zKey, metaKey := LeaderboardKey(classID), LeaderboardMetaKey(classID)
	return l.guard(ctx, func(ctx context.Context) error {
		pipe := l.cache.client.TxPipeline()
		pipe.Del(ctx, zKey, metaKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, zKey, members...)
			pipe.HSet(ctx, metaKey, fields)
			pipe.Expire(ctx, zKey, TTLLeaderboard)
			pipe.Expire(ctx, metaKey, TTLLeaderboard)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Invalidate drops the class board; the next read rebuilds it from the store.
func (l *LeaderboardCache) Invalidate(ctx context.Context, classID string) error {
	if !l.Enabled() {
		return nil
	}
	return l.guard(ctx, func(ctx context.Context) error {
		return l.cache.Delete(ctx, LeaderboardKey(classID), LeaderboardMetaKey(classID))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns the best n entries of the class, or all of them when n <= 0.
// Returns ErrCacheMiss when the board has not been built.
func (l *LeaderboardCache) Top(ctx context.Context, classID string, n int) ([]leaderboard.Entry, error) {
	if !l.Enabled() {
		return nil, ErrCacheMiss
	}

	var (
		ids []string
		raw []any
	)
	err := l.guard(ctx, func(ctx context.Context) error {
		client := l.cache.client
		var err error
		if ids, err = client.ZRevRange(ctx, LeaderboardKey(classID), 0, -1).Result(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrCacheMiss
		}
		raw, err = client.HMGet(ctx, LeaderboardMetaKey(classID), ids...).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(ids))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			// Sorted set and hash disagree; treat the board as stale.
			return nil, fmt.Errorf("%w: missing entry for %s", ErrCacheMiss, ids[i])
		}
		var e leaderboard.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entries = append(entries, e)
	}

	leaderboard.Sort(entries)
	return leaderboard.Top(entries, n), nil
}

package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// localIdleTTL is how long an unused per key limiter is kept
const localIdleTTL = 10 * time.Minute

// LocalLimiter is a per key token bucket held in process, used when Redis is
// not configured. Each instance enforces the limit on its own.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perSecond calls per key per second. perSecond <= 0 disables limiting.
func NewLocalLimiter(perSecond int) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*localEntry),
		limit:    rate.Limit(perSecond),
		burst:    perSecond,
		now:      time.Now,
	}
}

// Allow takes one token from key's bucket
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.burst <= 0 {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[key]
	if !ok {
		l.prune(now)
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

// Len returns the number of keys being tracked
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LocalLimiter) prune(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > localIdleTTL {
			delete(l.limiters, k)
		}
	}
}

// counterStore is the subset of the redis client the limiter uses
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed window counter shared by every API instance
type RedisLimiter struct {
	store  counterStore
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit calls per key per window
func NewRedisLimiter(client counterStore, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &RedisLimiter{store: client, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one call for key. A Redis failure returns the error and lets the call through.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(bucket, 10)

	n, err := l.store.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.store.Expire(ctx, redisKey, 2*l.window).Err(); err != nil {
			zap.S().Warnw("failed to set rate limit expiry", "key", redisKey, "error", err)
		}
	}
	return n <= l.limit, nil
}

// NewRedisClient connects to Redis and verifies connectivity
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	zap.S().Infow("Redis client connected", "addr", addr)
	return rdb, nil
}

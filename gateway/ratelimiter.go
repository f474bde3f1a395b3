package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter decides whether a request from key should be allowed, and how
// many requests remain in the current window for client feedback headers.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfterSeconds int)
	Remaining(ctx context.Context, key string) int
}

// RateLimitConfig configures a per-IP limiter.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// InMemoryRateLimiter implements a sliding window using the weighted
// current/previous bucket approximation: rather than the teacher's fixed
// window (which allows a full burst at the window boundary), the estimated
// count blends the previous minute's count, weighted by how much of it
// still falls inside the trailing 60s, with the current minute's count.
type InMemoryRateLimiter struct {
	config RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	currentMinute int64
	currentCount  int
	prevCount     int
}

func NewInMemoryRateLimiter(config RateLimitConfig) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{config: config, buckets: make(map[string]*window)}
}

func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	minute := now.Unix() / 60
	w, ok := l.buckets[key]
	if !ok {
		w = &window{currentMinute: minute}
		l.buckets[key] = w
	}
	l.rollLocked(w, minute)

	elapsedInMinute := float64(now.Unix()%60) / 60.0
	estimated := float64(w.prevCount)*(1-elapsedInMinute) + float64(w.currentCount)

	if estimated >= float64(l.config.RequestsPerMinute) {
		retryAfter := int(60 - now.Unix()%60)
		return false, retryAfter
	}

	w.currentCount++
	return true, 0
}

func (l *InMemoryRateLimiter) Remaining(ctx context.Context, key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok {
		return l.config.RequestsPerMinute
	}
	remaining := l.config.RequestsPerMinute - w.currentCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *InMemoryRateLimiter) rollLocked(w *window, minute int64) {
	switch minute - w.currentMinute {
	case 0:
		return
	case 1:
		w.prevCount = w.currentCount
		w.currentCount = 0
		w.currentMinute = minute
	default:
		w.prevCount = 0
		w.currentCount = 0
		w.currentMinute = minute
	}
}

// RedisRateLimiter implements the same sliding-window semantics using a
// Redis sorted set per key (score = request timestamp), for deployments
// running more than one gateway instance. Grounded on the teacher's
// core/redis_client.go connection idiom, generalized from service
// discovery to rate limiting.
type RedisRateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

func NewRedisRateLimiter(client *redis.Client, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, config: config}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	now := time.Now()
	windowStart := now.Add(-time.Minute).UnixNano()
	zkey := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", itoa(windowStart))
	countCmd := pipe.ZCard(ctx, zkey)
	pipe.ZAdd(ctx, zkey, &redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, zkey, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0 // fail open: Redis unavailability must not block the gateway
	}

	count := int(countCmd.Val())
	if count >= l.config.RequestsPerMinute {
		l.client.ZRem(ctx, zkey, now.UnixNano())
		return false, 60
	}
	return true, 0
}

func (l *RedisRateLimiter) Remaining(ctx context.Context, key string) int {
	zkey := "ratelimit:" + key
	count, err := l.client.ZCard(ctx, zkey).Result()
	if err != nil {
		return l.config.RequestsPerMinute
	}
	remaining := l.config.RequestsPerMinute - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gomind-labs/debate-consensus/core"
)

// RedisStore backs the Fingerprint Cache with Redis so multiple engine
// instances share one cache. Grounded on ui/security/redis_limiter.go's
// go-redis/v8 client wiring, generalized from rate-limit counters to
// JSON-serialized CacheEntry values under a namespaced key.
type RedisStore struct {
	client    *redis.Client
	namespace string
	maxAge    time.Duration

	statsKeyPrefix string
}

func NewRedisStore(client *redis.Client, namespace string, maxAge time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "debate-cache"
	}
	return &RedisStore{client: client, namespace: namespace, maxAge: maxAge, statsKeyPrefix: namespace + ":stats:"}
}

func (s *RedisStore) key(fingerprint string) string {
	return s.namespace + ":entry:" + fingerprint
}

func (s *RedisStore) Probe(ctx context.Context, fingerprint string, pctx ProbeContext) (core.CacheEntry, bool) {
	if pctx.BypassCache || pctx.Fresh {
		return core.CacheEntry{}, false
	}

	raw, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		s.client.Incr(ctx, s.statsKeyPrefix+"misses")
		return core.CacheEntry{}, false
	}

	var entry core.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.client.Incr(ctx, s.statsKeyPrefix+"misses")
		return core.CacheEntry{}, false
	}

	if time.Since(entry.StoredAt) > s.maxAge || entry.Confidence < MinConfidence {
		s.client.Incr(ctx, s.statsKeyPrefix+"misses")
		return core.CacheEntry{}, false
	}
	if pctx.ProjectFingerprint != "" && pctx.ProjectFingerprint != entry.ProjectFingerprint {
		s.client.Incr(ctx, s.statsKeyPrefix+"misses")
		return core.CacheEntry{}, false
	}

	s.client.Incr(ctx, s.statsKeyPrefix+"hits")
	return entry, true
}

func (s *RedisStore) Store(ctx context.Context, entry core.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(entry.Fingerprint), data, s.maxAge).Err(); err != nil {
		return err
	}
	s.client.Incr(ctx, s.statsKeyPrefix+"stores")
	return nil
}

// InvalidateByCategory scans keys under this namespace; acceptable here
// because eviction is an infrequent administrative operation, not a
// per-request path.
func (s *RedisStore) InvalidateByCategory(ctx context.Context, category string) (int, error) {
	return s.invalidateWhere(ctx, func(e core.CacheEntry) bool { return e.Category == category })
}

func (s *RedisStore) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	re, err := compileCachePattern(pattern)
	if err != nil {
		return 0, err
	}
	return s.invalidateWhere(ctx, func(e core.CacheEntry) bool { return re.MatchString(e.Result.Solution) })
}

func (s *RedisStore) InvalidateByFingerprintPrefix(ctx context.Context, fresh string) (int, error) {
	return s.invalidateWhere(ctx, func(e core.CacheEntry) bool {
		return e.ProjectFingerprint != "" && e.ProjectFingerprint != fresh
	})
}

func (s *RedisStore) invalidateWhere(ctx context.Context, match func(core.CacheEntry) bool) (int, error) {
	iter := s.client.Scan(ctx, 0, s.namespace+":entry:*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var entry core.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if match(entry) {
			s.client.Del(ctx, iter.Val())
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return count, err
	}
	s.client.IncrBy(ctx, s.statsKeyPrefix+"invalidations", int64(count))
	return count, nil
}

func (s *RedisStore) Stats(ctx context.Context) Stats {
	hits, _ := s.client.Get(ctx, s.statsKeyPrefix+"hits").Int64()
	misses, _ := s.client.Get(ctx, s.statsKeyPrefix+"misses").Int64()
	stores, _ := s.client.Get(ctx, s.statsKeyPrefix+"stores").Int64()
	invalidations, _ := s.client.Get(ctx, s.statsKeyPrefix+"invalidations").Int64()

	entries, _ := s.client.Keys(ctx, s.namespace+":entry:*").Result()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:       len(entries),
		Hits:          hits,
		Misses:        misses,
		Stores:        stores,
		Invalidations: invalidations,
		HitRate:       hitRate,
	}
}

package cache

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// MinConfidence is the soft-invalidation floor: entries read with a lower
// confidence are treated as misses (spec.md §4.4).
const MinConfidence = 0.7

// ProbeContext carries the caller's current project fingerprint and
// cache-bypass flags for one probe.
type ProbeContext struct {
	ProjectFingerprint string
	BypassCache        bool
	Fresh              bool
}

// Stats mirrors spec.md §4.4's stats() contract.
type Stats struct {
	Entries             int
	Hits                int64
	Misses              int64
	Stores              int64
	Invalidations       int64
	HitRate             float64
	AvgResponseMsCached float64
	AvgResponseMsFresh  float64
	MemoryBytes         int64
}

// Store is the Fingerprint Cache's storage contract, implemented by
// MemoryStore (default) and RedisStore (for multi-instance deployments).
type Store interface {
	Probe(ctx context.Context, fingerprint string, pctx ProbeContext) (core.CacheEntry, bool)
	Store(ctx context.Context, entry core.CacheEntry) error
	InvalidateByCategory(ctx context.Context, category string) (int, error)
	InvalidateByPattern(ctx context.Context, pattern string) (int, error)
	InvalidateByFingerprintPrefix(ctx context.Context, prefix string) (int, error)
	Stats(ctx context.Context) Stats
}

// MemoryStore is the in-process default, grounded on
// orchestration/cache.go's SimpleCache (sha256-keyed map, RWMutex,
// eviction-on-oversize, hit/miss counters), extended with spec.md §4.4's
// confidence soft-invalidation and project-fingerprint mismatch checks.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]core.CacheEntry
	maxAge  time.Duration
	maxSize int

	hits, misses, stores, invalidations int64
	cachedResponseMsTotal, freshResponseMsTotal float64
	cachedResponseCount, freshResponseCount     int64

	persistPath string
}

func NewMemoryStore(maxEntries int, maxAge time.Duration, persistPath string) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	s := &MemoryStore{
		entries:     make(map[string]core.CacheEntry),
		maxAge:      maxAge,
		maxSize:     maxEntries,
		persistPath: persistPath,
	}
	s.loadFromDisk()
	return s
}

func (s *MemoryStore) Probe(ctx context.Context, fingerprint string, pctx ProbeContext) (core.CacheEntry, bool) {
	start := time.Now()
	s.mu.RLock()
	entry, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	miss := func() (core.CacheEntry, bool) {
		s.recordMiss()
		return core.CacheEntry{}, false
	}

	if pctx.BypassCache || pctx.Fresh {
		return miss()
	}
	if !ok {
		return miss()
	}
	if time.Since(entry.StoredAt) > s.maxAge {
		return miss()
	}
	if entry.Confidence < MinConfidence {
		return miss()
	}
	if pctx.ProjectFingerprint != "" && pctx.ProjectFingerprint != entry.ProjectFingerprint {
		return miss()
	}

	s.mu.Lock()
	s.hits++
	s.cachedResponseMsTotal += float64(time.Since(start).Milliseconds())
	s.cachedResponseCount++
	s.mu.Unlock()
	return entry, true
}

func (s *MemoryStore) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

func (s *MemoryStore) Store(ctx context.Context, entry core.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Fingerprint]; !exists && len(s.entries) >= s.maxSize {
		s.evictOldestLocked()
	}
	s.entries[entry.Fingerprint] = entry
	s.stores++
	s.persistLocked()
	return nil
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for k, e := range s.entries {
		if oldestKey == "" || e.StoredAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.StoredAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

func (s *MemoryStore) InvalidateByCategory(ctx context.Context, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for k, e := range s.entries {
		if e.Category == category {
			delete(s.entries, k)
			count++
		}
	}
	s.invalidations += int64(count)
	s.persistLocked()
	return count, nil
}

func (s *MemoryStore) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	re, err := compileCachePattern(pattern)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for k, e := range s.entries {
		if re.MatchString(e.Result.Solution) {
			delete(s.entries, k)
			count++
		}
	}
	s.invalidations += int64(count)
	s.persistLocked()
	return count, nil
}

// InvalidateByFingerprintPrefix recomputes a fresh project fingerprint (the
// caller passes the already-recomputed digest as prefix) and deletes
// entries whose stored ProjectFingerprint no longer matches it.
func (s *MemoryStore) InvalidateByFingerprintPrefix(ctx context.Context, fresh string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for k, e := range s.entries {
		if e.ProjectFingerprint != "" && e.ProjectFingerprint != fresh {
			delete(s.entries, k)
			count++
		}
	}
	s.invalidations += int64(count)
	s.persistLocked()
	return count, nil
}

func (s *MemoryStore) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.hits + s.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.hits) / float64(total)
	}
	var avgCached, avgFresh float64
	if s.cachedResponseCount > 0 {
		avgCached = s.cachedResponseMsTotal / float64(s.cachedResponseCount)
	}
	if s.freshResponseCount > 0 {
		avgFresh = s.freshResponseMsTotal / float64(s.freshResponseCount)
	}

	return Stats{
		Entries:             len(s.entries),
		Hits:                s.hits,
		Misses:              s.misses,
		Stores:              s.stores,
		Invalidations:       s.invalidations,
		HitRate:             hitRate,
		AvgResponseMsCached: avgCached,
		AvgResponseMsFresh:  avgFresh,
		MemoryBytes:         int64(len(s.entries)) * 1024,
	}
}

// RecordFreshResponseTime lets a caller outside this package (the probing
// code path for a cache miss that went on to run a full debate) attribute
// elapsed time to the "fresh" bucket spec.md §4.4's stats separate from
// cached lookups.
func (s *MemoryStore) RecordFreshResponseTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshResponseMsTotal += float64(d.Milliseconds())
	s.freshResponseCount++
}

func (s *MemoryStore) persistLocked() {
	if s.persistPath == "" {
		return
	}
	// Persistence errors never propagate to callers (spec.md §4.4).
	data, err := json.Marshal(s.entries)
	if err != nil {
		return
	}
	_ = writeFileAtomic(s.persistPath, data)
}

func (s *MemoryStore) loadFromDisk() {
	if s.persistPath == "" {
		return
	}
	data, err := readFile(s.persistPath)
	if err != nil {
		return
	}
	var loaded map[string]core.CacheEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return
	}
	for k, e := range loaded {
		if time.Since(e.StoredAt) <= s.maxAge {
			s.entries[k] = e
		}
	}
}

// EstimateTokensAndCost implements spec.md §4.4's token/cost heuristic:
// tokenCount = ceil(len(serialized)/4), cost = tokenCount * 0.00002.
func EstimateTokensAndCost(result core.DebateResult) (int, float64) {
	data, _ := json.Marshal(result)
	tokenCount := int(math.Ceil(float64(len(data)) / 4))
	return tokenCount, float64(tokenCount) * 0.00002
}

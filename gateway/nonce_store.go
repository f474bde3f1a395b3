package gateway

import (
	"regexp"
	"sync"
	"time"
)

// NonceRetention is how long an accepted nonce blocks a replay (spec.md §4.2).
const NonceRetention = 5 * time.Minute

var nonceFormat = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NonceStore tracks which nonces have been seen within the retention
// window. A single writer lock guards both insert+check and the periodic
// sweep, matching spec.md §5's "single writer lock" requirement.
type NonceStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	maxSize   int
	lastSweep time.Time
}

// NewNonceStore builds a store bounded by maxSize entries; when saturated a
// sweep is forced before the next insert.
func NewNonceStore(maxSize int) *NonceStore {
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &NonceStore{
		seen:      make(map[string]time.Time),
		maxSize:   maxSize,
		lastSweep: time.Now(),
	}
}

// ValidFormat reports whether nonce is a 32-hex-digit string.
func ValidFormat(nonce string) bool {
	return nonceFormat.MatchString(nonce)
}

// CheckAndRecord records nonce as seen and returns true, unless it was
// already seen within the retention window (replay), in which case it
// returns false and does not re-record. The invariant spec.md §8 asserts
// ("if CheckAndRecord returned true, the next call with the same nonce
// within the window returns false") holds because the lock is held across
// both the check and the insert.
func (s *NonceStore) CheckAndRecord(nonce string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	if insertedAt, ok := s.seen[nonce]; ok {
		if now.Sub(insertedAt) <= NonceRetention {
			return false
		}
	}

	if len(s.seen) >= s.maxSize {
		s.forceSweepLocked(now)
	}

	s.seen[nonce] = now
	return true
}

func (s *NonceStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.forceSweepLocked(now)
}

func (s *NonceStore) forceSweepLocked(now time.Time) {
	for n, t := range s.seen {
		if now.Sub(t) > NonceRetention {
			delete(s.seen, n)
		}
	}
	s.lastSweep = now
}

// Size reports the current number of tracked nonces (pre-sweep), used by
// tests asserting replay-detection bookkeeping.
func (s *NonceStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

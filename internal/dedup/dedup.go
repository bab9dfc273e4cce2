package dedup

import (
	"sync"
	"time"
)

// SeenSet records trade hashes that already produced an alert. Admit is a
// single synchronized insert-and-check; ids are assumed globally unique
// across coins so one instance serves the whole pipeline.
//
// Entries older than the eviction window are dropped lazily on insert. Only
// hashes inside the classification recency window can ever be re-seen, so a
// window comfortably above it keeps memory bounded without changing which
// alerts fire.
type SeenSet struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	window   time.Duration
	lastScan time.Time
}

// NewSeenSet builds a set that evicts entries older than window. A zero or
// negative window disables eviction.
func NewSeenSet(window time.Duration) *SeenSet {
	return &SeenSet{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

// Admit returns true the first time a hash is offered and false on every
// repeat. The hash is recorded on first sight.
func (s *SeenSet) Admit(hash string) bool {
	return s.AdmitAt(hash, time.Now())
}

// AdmitAt is Admit with an explicit clock for tests.
func (s *SeenSet) AdmitAt(hash string, now time.Time) bool {
	if hash == "" {
		// Nothing to dedup on; let it through rather than suppress
		// every hashless trade after the first.
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeEvict(now)

	if _, ok := s.seen[hash]; ok {
		return false
	}
	s.seen[hash] = now
	return true
}

// maybeEvict drops expired entries at most once per window to keep Admit
// cheap. Caller holds the lock.
func (s *SeenSet) maybeEvict(now time.Time) {
	if s.window <= 0 {
		return
	}
	if now.Sub(s.lastScan) < s.window {
		return
	}
	s.lastScan = now
	for hash, at := range s.seen {
		if now.Sub(at) > s.window {
			delete(s.seen, hash)
		}
	}
}

// Len reports the number of tracked hashes.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

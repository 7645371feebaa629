// Package ratelimit throttles requests per client key with token buckets and
// locks out clients that keep failing to log in.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store hands out one token-bucket limiter per key. Idle keys are swept
// lazily on access, so no janitor goroutine is needed.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*storeEntry
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleTTL sets how long an unused key is kept.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

// WithSweepEvery sets the minimum interval between sweeps.
func WithSweepEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.sweepEvery = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore allows requests per window with the given burst, for example
// 100 per 15 minutes.
func NewStore(requests int, window time.Duration, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:    make(map[string]*storeEntry),
		limit:      rate.Every(window / time.Duration(max(requests, 1))),
		burst:      burst,
		idleTTL:    window,
		sweepEvery: time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// Limit returns the sustained rate in events per second.
func (s *Store) Limit() rate.Limit { return s.limit }

// Burst returns the bucket size.
func (s *Store) Burst() int { return s.burst }

// Get returns the limiter for key, creating it on first use.
func (s *Store) Get(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweepLocked(now)
	}

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.limit, s.burst)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
	s.lastSweep = now
}

// Decide consumes a token for key. When none is available it reports how
// long the client should wait.
func (s *Store) Decide(key string) (bool, time.Duration) {
	now := s.now()
	res := s.Get(key).ReserveN(now, 1)
	if !res.OK() {
		return false, s.idleTTL
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

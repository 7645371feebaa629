package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Login lockout defaults.
const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute
)

// Attempts tracks failed logins per client key. After Max failures inside
// the lockout window the key is locked until the window expires.
type Attempts interface {
	// Locked returns the remaining lock time, or zero when key may try again.
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Fail records a failed attempt and returns the failures so far.
	Fail(ctx context.Context, key string) (int, error)
	// Reset forgets key after a successful login.
	Reset(ctx context.Context, key string) error
}

// MemoryAttempts keeps counters in process. Expired entries are swept
// lazily while recording failures.
type MemoryAttempts struct {
	mu        sync.Mutex
	entries   map[string]*attemptEntry
	max       int
	lockout   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type attemptEntry struct {
	count   int
	expires time.Time
}

// NewMemoryAttempts returns an in-process attempt counter.
func NewMemoryAttempts(max int, lockout time.Duration) *MemoryAttempts {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	return &MemoryAttempts{
		entries: make(map[string]*attemptEntry),
		max:     max,
		lockout: lockout,
		now:     time.Now,
	}
}

// SetClock replaces time.Now.
func (m *MemoryAttempts) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryAttempts) Locked(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ent, ok := m.entries[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(ent.expires) {
		delete(m.entries, key)
		return 0, nil
	}
	if ent.count < m.max {
		return 0, nil
	}
	return ent.expires.Sub(now), nil
}

func (m *MemoryAttempts) Fail(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= m.lockout {
		for k, ent := range m.entries {
			if !now.Before(ent.expires) {
				delete(m.entries, k)
			}
		}
		m.lastSweep = now
	}

	ent, ok := m.entries[key]
	if !ok || !now.Before(ent.expires) {
		ent = &attemptEntry{expires: now.Add(m.lockout)}
		m.entries[key] = ent
	}
	ent.count++
	if ent.count == m.max {
		// The lock runs for a full window from the failure that triggered it.
		ent.expires = now.Add(m.lockout)
	}
	return ent.count, nil
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// RedisAttempts shares counters between instances with INCR and EXPIRE.
type RedisAttempts struct {
	rdb     redis.Cmdable
	prefix  string
	max     int
	lockout time.Duration
}

// NewRedisAttempts returns a Redis-backed attempt counter. Keys are stored
// as "<prefix>:<key>"; a trailing colon on prefix is ignored.
func NewRedisAttempts(rdb redis.Cmdable, prefix string, max int, lockout time.Duration) *RedisAttempts {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "tienda:login"
	}
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	return &RedisAttempts{rdb: rdb, prefix: prefix, max: max, lockout: lockout}
}

func (r *RedisAttempts) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisAttempts) Locked(ctx context.Context, key string) (time.Duration, error) {
	n, err := r.rdb.Get(ctx, r.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read login attempts: %w", err)
	}
	if n < r.max {
		return 0, nil
	}

	ttl, err := r.rdb.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read lockout ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisAttempts) Fail(ctx context.Context, key string) (int, error) {
	k := r.key(key)
	n, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record login attempt: %w", err)
	}
	if n == 1 || n == int64(r.max) {
		if err := r.rdb.Expire(ctx, k, r.lockout).Err(); err != nil {
			return int(n), fmt.Errorf("failed to set lockout ttl: %w", err)
		}
	}
	return int(n), nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

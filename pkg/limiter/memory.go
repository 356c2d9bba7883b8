package limiter

import (
	"context"
	"math"
	"sync"
)

type state struct {
	tokens     float64
	lastRefill int64 // microseconds
	expiresAt  int64 // microseconds
}

// MemoryStore is an in-process BucketStore running the same refill algorithm
// as the Redis script.
//
// It is safe for concurrent use by multiple goroutines, but its state is local
// to the process and is not shared across replicas. Use RedisStore when you
// need a single global limit across multiple instances. Idle buckets are
// evicted lazily once their TTL has passed.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*state
}

// NewMemoryStore constructs a MemoryStore with empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*state),
	}
}

func (m *MemoryStore) Take(ctx context.Context, key string, req TakeRequest) (TakeResult, error) {
	if err := ctx.Err(); err != nil {
		return TakeResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := req.NowMicros
	ttl := ttlSeconds(req.TTL) * 1_000_000

	st, exists := m.buckets[key]
	if exists && now >= st.expiresAt {
		delete(m.buckets, key)
		exists = false
	}

	tokens, lastRefill := float64(req.Capacity), now
	if exists {
		tokens, lastRefill = st.tokens, st.lastRefill
	}
	tokens = refill(tokens, lastRefill, now, req.Capacity, req.RefillRate)

	if req.Requested > req.Capacity {
		if exists {
			st.expiresAt = now + ttl
		}
		return TakeResult{Allowed: false, Tokens: tokens}, nil
	}

	allowed := tokens >= float64(req.Requested)
	if allowed {
		tokens -= float64(req.Requested)
	}

	if !exists {
		st = &state{}
		m.buckets[key] = st
	}
	st.tokens = tokens
	st.lastRefill = max(now, lastRefill)
	st.expiresAt = now + ttl

	return TakeResult{Allowed: allowed, Tokens: tokens}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error { return nil }

// refill applies the continuous refill since lastRefill, capped at capacity.
// Backward clock steps add nothing.
func refill(tokens float64, lastRefill, now, capacity int64, rate float64) float64 {
	elapsed := float64(max(0, now-lastRefill)) / 1e6
	return math.Min(float64(capacity), tokens+elapsed*rate)
}

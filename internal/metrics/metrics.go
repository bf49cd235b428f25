// Package metrics implements the rolling 5-minute per-route request
// counters behind GET /metrics. When a Redis address is configured, counts
// are kept in a sorted set per route (ZADD/ZREMRANGEBYSCORE); otherwise an
// in-process list of request timestamps per route, pruned to the window
// on each Snapshot, is used, following the same Recorder interface
// so the transport layer never knows which backend is active.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const window = 5 * time.Minute

// Recorder tracks per-route request counts over a rolling window.
type Recorder interface {
	Record(ctx context.Context, route string, at time.Time)
	Snapshot(ctx context.Context) map[string]int64
}

// RedisClient abstracts the sorted-set operations Recorder needs, narrowed
// to exactly what's used so tests can satisfy it with a fake.
type RedisClient interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

const keyPrefix = "negotiation:metrics:"

// RedisRecorder is the Redis-backed Recorder.
type RedisRecorder struct {
	client RedisClient
	seq    uint64
	mu     sync.Mutex
}

// NewRedisRecorder creates a Recorder backed by client.
func NewRedisRecorder(client RedisClient) *RedisRecorder {
	return &RedisRecorder{client: client}
}

func (r *RedisRecorder) Record(ctx context.Context, route string, at time.Time) {
	r.mu.Lock()
	r.seq++
	member := fmt.Sprintf("%d-%d", at.UnixNano(), r.seq)
	r.mu.Unlock()

	key := keyPrefix + route
	score := float64(at.UnixMilli())
	_ = r.client.ZAdd(ctx, key, score, member)
	_ = r.client.ZRemRangeByScore(ctx, key, 0, float64(at.Add(-window).UnixMilli()))
}

func (r *RedisRecorder) Snapshot(ctx context.Context) map[string]int64 {
	out := map[string]int64{}
	keys, err := r.client.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return out
	}
	for _, key := range keys {
		count, err := r.client.ZCard(ctx, key)
		if err != nil {
			continue
		}
		out[key[len(keyPrefix):]] = count
	}
	return out
}

// MemoryRecorder is the in-process fallback Recorder, used when no Redis
// address is configured.
type MemoryRecorder struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
}

// NewMemoryRecorder creates an in-process Recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{hits: make(map[string][]time.Time)}
}

func (m *MemoryRecorder) Record(_ context.Context, route string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[route] = append(m.hits[route], at)
}

func (m *MemoryRecorder) Snapshot(_ context.Context) map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-window)
	out := make(map[string]int64, len(m.hits))
	for route, hits := range m.hits {
		kept := hits[:0]
		for _, h := range hits {
			if h.After(cutoff) {
				kept = append(kept, h)
			}
		}
		m.hits[route] = kept
		out[route] = int64(len(kept))
	}
	return out
}

package metrics

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRecorder_CountsWithinWindow(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	now := time.Now()

	rec.Record(ctx, "/sessions", now.Add(-10*time.Minute))
	rec.Record(ctx, "/sessions", now.Add(-1*time.Minute))
	rec.Record(ctx, "/sessions", now)

	snap := rec.Snapshot(ctx)
	if snap["/sessions"] != 2 {
		t.Fatalf("expected 2 requests within the rolling window, got %d (%+v)", snap["/sessions"], snap)
	}
}

func TestMemoryRecorder_SeparatesRoutes(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	now := time.Now()

	rec.Record(ctx, "/sessions", now)
	rec.Record(ctx, "/agents", now)
	rec.Record(ctx, "/agents", now)

	snap := rec.Snapshot(ctx)
	if snap["/sessions"] != 1 || snap["/agents"] != 2 {
		t.Fatalf("unexpected per-route snapshot: %+v", snap)
	}
}

type fakeRedisClient struct {
	scores map[string]map[string]float64
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{scores: map[string]map[string]float64{}}
}

func (f *fakeRedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if f.scores[key] == nil {
		f.scores[key] = map[string]float64{}
	}
	f.scores[key][member] = score
	return nil
}

func (f *fakeRedisClient) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	for member, score := range f.scores[key] {
		if score >= min && score <= max {
			delete(f.scores[key], member)
		}
	}
	return nil
}

func (f *fakeRedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	return int64(len(f.scores[key])), nil
}

func (f *fakeRedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	for k := range f.scores {
		out = append(out, k)
	}
	return out, nil
}

func TestRedisRecorder_PrunesOldEntriesAndCounts(t *testing.T) {
	client := newFakeRedisClient()
	rec := NewRedisRecorder(client)
	ctx := context.Background()
	now := time.Now()

	rec.Record(ctx, "/sessions", now.Add(-10*time.Minute))
	rec.Record(ctx, "/sessions", now)

	snap := rec.Snapshot(ctx)
	if snap["/sessions"] != 1 {
		t.Fatalf("expected stale entry pruned, got %d (%+v)", snap["/sessions"], snap)
	}
}

package metrics

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// goRedisClient adapts *redis.Client to the narrow RedisClient interface
// RedisRecorder depends on.
type goRedisClient struct {
	rdb *redis.Client
}

// NewGoRedisClient dials addr/password/db with go-redis and wraps it as a
// RedisClient for NewRedisRecorder.
func NewGoRedisClient(addr, password string, db int) RedisClient {
	return &goRedisClient{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *goRedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *goRedisClient) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return c.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
}

func (c *goRedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

func (c *goRedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.rdb.Keys(ctx, pattern).Result()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

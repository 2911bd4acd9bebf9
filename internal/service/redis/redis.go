package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}
)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisService) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRange returns members with score in [min, max], "-inf"/"+inf" for open ends.
func (r *RedisService) ZRange(ctx context.Context, key, min, max string, reverse bool) ([]string, error) {
	by := &redis.ZRangeBy{Min: min, Max: max}
	if reverse {
		return r.rdb.ZRevRangeByScore(ctx, key, by).Result()
	}
	return r.rdb.ZRangeByScore(ctx, key, by).Result()
}

func (r *RedisService) ZCard(ctx context.Context, key string) (int64, error) {
	return r.rdb.ZCard(ctx, key).Result()
}

func (r *RedisService) Publish(ctx context.Context, channel string, message any) error {
	return r.rdb.Publish(ctx, channel, message).Err()
}

func (r *RedisService) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.rdb.Subscribe(ctx, channels...)
}

func (r *RedisService) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns ("", nil) when key is absent.
func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

package ordercache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tabsync/tabsync/internal/domain"
)

const redisKeyPrefix = "activeorder:"

// RedisStore shares snapshots across instances, which is what lets any
// instance serve cross-instance recovery after a sibling dies.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		timeout: 2 * time.Second,
	}
}

func (r *RedisStore) Set(key string, snap domain.ActiveOrderSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	return r.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

func (r *RedisStore) Get(key string) (domain.ActiveOrderSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return domain.ActiveOrderSnapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.ActiveOrderSnapshot{}, err
	}

	var snap domain.ActiveOrderSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.ActiveOrderSnapshot{}, err
	}
	return snap, nil
}

func (r *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (r *RedisStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(redisKeyPrefix):])
	}
	return keys, iter.Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

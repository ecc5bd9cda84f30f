package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stormdex:session:"

// RedisStore keeps selections in Redis as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

// Ping verifies the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (Selection, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Selection{}, ErrNotFound
		}
		return Selection{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selection{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return sel, nil
}

func (r *RedisStore) Set(ctx context.Context, sessionID string, sel Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}

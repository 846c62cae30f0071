package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stores keys under "<namespace>:<key>". A non-zero ttl is refreshed
// on every write, so an abandoned namespace expires on its own.
type Redis struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

func NewRedis(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

// NewTab returns a Redis store scoped to a freshly generated tab id.
func NewTab(client *redis.Client, ttl time.Duration) *Redis {
	return NewRedis(client, "tab:"+uuid.NewString(), ttl)
}

func (r *Redis) Namespace() string {
	return r.namespace
}

func (r *Redis) key(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, r.key(key))
	}
	return r.client.Del(ctx, full...).Err()
}

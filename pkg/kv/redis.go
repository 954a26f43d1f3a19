package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/abundantshare/share-backend/pkg/redis"
)

type redisCommands interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LocalKey(prefix, key string) string
}

// Redis keeps each document under a namespaced Redis key with no expiry.
type Redis struct {
	client redisCommands
	prefix string
}

func NewRedis(client *redisclient.Client, prefix string) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.client.LocalKey(r.prefix, key))
	if errors.Is(err, redisclient.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.client.LocalKey(r.prefix, key), string(value), 0)
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.LocalKey(r.prefix, key))
}

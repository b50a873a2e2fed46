package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"masader/internal/errors"
)

// RedisStore keeps the documents as plain redis string keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects lazily to the server described by url, e.g.
// redis://localhost:6379/0.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing redis url %q", url)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, keyNotFound(key)
	} else if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return b, nil
}

// MGet reads every key with a single MGET, which redis executes atomically.
func (s *RedisStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch v := v.(type) {
		case nil:
			return nil, keyNotFound(keys[i])
		case string:
			out[i] = []byte(v)
		default:
			return nil, errors.Errorf("redis mget %q: unexpected reply type %T", keys[i], v)
		}
	}
	return out, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// MSet writes all entries inside a MULTI/EXEC transaction.
func (s *RedisStore) MSet(ctx context.Context, entries ...Entry) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.Key, e.Value, 0)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis mset")
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

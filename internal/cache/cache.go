// Package cache provides the key-value store that holds the serialized
// catalog and tag taxonomy between refreshes.
package cache

import (
	"context"
	"fmt"

	"masader/internal/errors"
)

const (
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Entry is a key and its serialized value.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a key-value store of serialized JSON documents. Get and MGet fail
// with errors.ErrKeyNotFound for a missing key. MSet writes all entries or
// none, and MGet reads all keys from one consistent state where the backend
// allows it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	MSet(ctx context.Context, entries ...Entry) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Backend  string
	RedisURL string
	BoltPath string
}

// Open returns the Store selected by c.Backend.
func Open(c Config) (Store, error) {
	switch c.Backend {
	case BackendRedis, "":
		return NewRedisStore(c.RedisURL)
	case BackendBolt:
		return OpenBoltStore(c.BoltPath)
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
}

func keyNotFound(key string) error {
	return errors.Newf(errors.ErrKeyNotFound, "cache key %q not found", key)
}

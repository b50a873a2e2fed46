package cache

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"

	"masader/internal/errors"
)

var bucketName = []byte("masader")

// BoltStore keeps the documents in a single bucket of a bolt file, for
// deployments without a redis server.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) the bolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt store %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	vals, err := s.MGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

// MGet reads every key in one read transaction.
func (s *BoltStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for i, key := range keys {
			v := b.Get([]byte(key))
			if v == nil {
				return keyNotFound(key)
			}
			// Values are only valid for the life of the transaction.
			out[i] = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	return s.MSet(ctx, Entry{Key: key, Value: value})
}

// MSet writes all entries in one read-write transaction.
func (s *BoltStore) MSet(ctx context.Context, entries ...Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, e := range entries {
			if err := b.Put([]byte(e.Key), e.Value); err != nil {
				return errors.Wrapf(err, "bolt put %q", e.Key)
			}
		}
		return nil
	})
}

func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

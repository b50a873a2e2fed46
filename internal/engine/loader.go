package engine

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"masader/internal/cache"
	"masader/internal/errors"
	"masader/internal/logger"
	"masader/internal/models"
)

const (
	DefaultMasaderKey = "masader"
	DefaultTagsKey    = "tags"
)

// Loader reads the catalog and tag taxonomy from the cache store and builds
// a snapshot from them.
type Loader struct {
	Cache      cache.Store
	MasaderKey string
	TagsKey    string
	// Strict rejects a payload whose records disagree with the schema of
	// the first record. Otherwise mismatches are logged and kept on the
	// snapshot.
	Strict bool
	Logger logger.Logger
}

func NewLoader(c cache.Store) *Loader {
	return &Loader{
		Cache:      c,
		MasaderKey: DefaultMasaderKey,
		TagsKey:    DefaultTagsKey,
		Logger:     logger.NopLogger,
	}
}

// Load reads both keys and decodes them. A missing or malformed key, as well
// as an unreachable store, fails with ErrRefresh.
func (l *Loader) Load(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()

	vals, err := l.Cache.MGet(ctx, l.MasaderKey, l.TagsKey)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrRefresh, "reading cache")
	}

	snap, err := Decode(vals[0], vals[1])
	if err != nil {
		return nil, err
	}

	if len(snap.Mismatches) > 0 {
		if l.Strict {
			return nil, errors.WithCode(
				errors.New(errors.ErrSchema, snap.Mismatches[0].String()),
				errors.ErrRefresh,
				"validating schema")
		}
		for _, mm := range snap.Mismatches {
			l.logger().Warnf("schema mismatch: %s", mm)
		}
	}

	l.logger().Infof("loaded %d datasets and %d tag categories in %v", len(snap.Records), snap.Tags.Len(), time.Since(start))
	return snap, nil
}

func (l *Loader) logger() logger.Logger {
	if l.Logger == nil {
		return logger.NopLogger
	}
	return l.Logger
}

// Decode builds a snapshot from the serialized catalog and tags. The schema
// is inferred from the first record and every record is checked against it.
func Decode(masader, tags []byte) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	if err := json.Unmarshal(masader, &snap.Records); err != nil {
		return nil, errors.WithCode(err, errors.ErrRefresh, "decoding datasets")
	}
	if err := json.Unmarshal(tags, &snap.Tags); err != nil {
		return nil, errors.WithCode(err, errors.ErrRefresh, "decoding tags")
	}
	snap.Schema = models.InferSchema(snap.Records)
	snap.Mismatches = snap.Schema.Check(snap.Records)
	return snap, nil
}

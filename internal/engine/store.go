package engine

import (
	"sync/atomic"
	"time"

	"masader/internal/models"
)

// Store holds the snapshot served to every read path. Readers call Snapshot
// once per request and work on that reference; Swap replaces records and
// tags together so a reader never sees one without the other.
type Store struct {
	current atomic.Pointer[models.Snapshot]
	version atomic.Uint64
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *models.Snapshot {
	return s.current.Load()
}

// Swap stamps snap with the next version and publishes it. snap must not be
// modified by the caller afterwards.
func (s *Store) Swap(snap *models.Snapshot) *models.Snapshot {
	snap.Version = s.version.Add(1)
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = s.now().UTC()
	}
	s.current.Store(snap)
	return snap
}

// Status summarizes the current snapshot.
func (s *Store) Status() models.Status {
	snap := s.Snapshot()
	if snap == nil {
		return models.Status{}
	}
	return models.Status{
		Loaded:     true,
		Version:    snap.Version,
		Datasets:   len(snap.Records),
		Tags:       snap.Tags.Len(),
		Mismatches: len(snap.Mismatches),
		LoadedAt:   snap.LoadedAt,
	}
}

package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"masader/internal/logger"
	"masader/internal/metrics"
	"masader/internal/models"
)

// Job repopulates the cache store from the upstream dataset source. It runs
// outside the request path and communicates only through the cache store.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Coordinator triggers the refresh job and swaps the served snapshot.
type Coordinator struct {
	store  *Store
	loader *Loader
	job    Job
	logger logger.Logger

	// ReloadOnComplete reloads the snapshot again once the job finishes, so
	// the served data converges to what the job wrote.
	ReloadOnComplete bool

	mu      sync.Mutex
	running *jobRun

	// loads numbers every Reload before it reads the cache. published is
	// the number of the last load swapped in, guarded by publishMu.
	loads     atomic.Uint64
	publishMu sync.Mutex
	published uint64
}

func NewCoordinator(store *Store, loader *Loader, job Job, l logger.Logger) *Coordinator {
	if l == nil {
		l = logger.NopLogger
	}
	return &Coordinator{
		store:            store,
		loader:           loader,
		job:              job,
		logger:           l,
		ReloadOnComplete: true,
	}
}

// Refresh launches the refresh job without waiting for it and immediately
// reloads the snapshot from whatever the cache holds now. The returned
// snapshot therefore normally predates the job's output. With wait set, it
// blocks until the job completes (or ctx ends) and reloads afterwards.
//
// A failed reload leaves the served snapshot untouched.
func (c *Coordinator) Refresh(ctx context.Context, wait bool) (*models.Snapshot, error) {
	c.logger.Infof("refreshing snapshot")
	run := c.launch()

	if wait && run != nil {
		select {
		case <-run.done:
			if run.err != nil {
				c.logger.Warnf("refresh job failed, reloading current cache contents: %v", run.err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.Reload(ctx)
}

// Reload reads the cache store and publishes a new snapshot. A load that
// finishes after a later-started load was published is dropped, and the
// published snapshot is returned instead.
func (c *Coordinator) Reload(ctx context.Context) (*models.Snapshot, error) {
	seq := c.loads.Add(1)
	snap, err := c.loader.Load(ctx)
	metrics.CounterRefreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Errorf("reloading snapshot: %v", err)
		return nil, err
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if seq < c.published {
		c.logger.Debugf("dropping load %d, load %d is already published", seq, c.published)
		return c.store.Snapshot(), nil
	}
	c.published = seq
	snap = c.store.Swap(snap)

	metrics.GaugeSnapshotRecords.Set(float64(len(snap.Records)))
	metrics.GaugeSnapshotVersion.Set(float64(snap.Version))
	metrics.GaugeSchemaMismatches.Set(float64(len(snap.Mismatches)))
	return snap, nil
}

// jobRun is one execution of the refresh job. done is closed once the job
// and its follow-up reload have finished; err is valid after that.
type jobRun struct {
	done chan struct{}
	err  error
}

// launch starts the job unless one is already running, in which case the
// caller shares the running one. It returns nil when no job is configured.
func (c *Coordinator) launch() *jobRun {
	if c.job == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return c.running
	}

	run := &jobRun{done: make(chan struct{})}
	c.running = run
	go func() {
		run.err = c.runJob()
		c.mu.Lock()
		c.running = nil
		c.mu.Unlock()
		close(run.done)
	}()
	return run
}

func (c *Coordinator) runJob() error {
	// The job outlives the request that triggered it.
	ctx := context.Background()

	start := time.Now()
	c.logger.Infof("refresh job started")
	err := c.job.Run(ctx)
	metrics.HistogramRefreshJobTime.Observe(time.Since(start).Seconds())
	metrics.CounterRefreshJobs.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Errorf("refresh job failed after %v: %v", time.Since(start), err)
		return err
	}
	c.logger.Infof("refresh job finished in %v", time.Since(start))

	if c.ReloadOnComplete {
		if _, err := c.Reload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until the currently running job, if any, has finished and
// returns its error.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	run := c.running
	c.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Message is the summary returned to clients after a refresh.
func Message(snap *models.Snapshot) string {
	return fmt.Sprintf("The datasets updated successfully! The current number of available datasets is %d.", snap.Len())
}

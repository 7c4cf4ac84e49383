package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	gosync "sync"
	"time"

	"github.com/stacklok/registry-mirror/internal/config"
	"github.com/stacklok/registry-mirror/internal/sync"
)

// jitterFraction is the maximum relative offset applied to the run interval
const jitterFraction = 0.1

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("coordinator already started")

// Coordinator manages periodic aggregation runs
type Coordinator interface {
	// Start runs the pipeline immediately and then periodically.
	// Blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the loop and waits for the current run to finish
	Stop() error

	// Status returns a snapshot of the latest run
	Status() Snapshot
}

// ConfigSource returns the configuration for the next run
type ConfigSource func() *config.Config

// StateStore persists snapshots across restarts
type StateStore interface {
	// Load returns the saved snapshot, or nil when nothing was saved yet
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the saved snapshot
	Save(ctx context.Context, snapshot Snapshot) error
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// WithIntervalFunc overrides how the delay before the next run is computed
func WithIntervalFunc(fn func(*config.Config) time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.interval = fn
	}
}

// WithStateStore restores the snapshot from store on Start and saves it
// after every run
func WithStateStore(store StateStore) Option {
	return func(c *defaultCoordinator) {
		c.store = store
	}
}

type defaultCoordinator struct {
	manager  sync.Manager
	store    StateStore
	config   ConfigSource
	now      func() time.Time
	interval func(*config.Config) time.Duration

	mu         gosync.RWMutex
	snapshot   Snapshot
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator running manager with the configuration returned by cfg
func New(manager sync.Manager, cfg ConfigSource, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:  manager,
		config:   cfg,
		now:      time.Now,
		interval: jitteredInterval,
		snapshot: Snapshot{Phase: PhasePending},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// jitteredInterval returns serve.interval with a random ±10% offset
func jitteredInterval(cfg *config.Config) time.Duration {
	base := cfg.GetServeInterval()
	jitter := time.Duration(float64(base) * jitterFraction)
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	slog.Info("Starting run coordinator")
	defer func() {
		cancel()
		close(done)
		slog.Info("Run coordinator shutting down")
	}()

	c.restore(coordCtx)

	delay := c.runOnce(coordCtx)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			timer.Reset(c.runOnce(coordCtx))
		case <-coordCtx.Done():
			return nil
		}
	}
}

func (c *defaultCoordinator) Stop() error {
	c.mu.RLock()
	cancel, done := c.cancelFunc, c.done
	c.mu.RUnlock()

	if cancel != nil {
		slog.Info("Stopping run coordinator")
		cancel()
		<-done
	}
	return nil
}

func (c *defaultCoordinator) Status() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// runOnce performs one run, records its outcome and returns the delay
// before the next run
func (c *defaultCoordinator) runOnce(ctx context.Context) time.Duration {
	cfg := c.config()
	started := c.now()

	c.update(func(s *Snapshot) {
		s.Phase = PhaseRunning
		s.LastAttempt = &started
		s.NextRun = nil
	})

	result, runErr := c.manager.Run(ctx, cfg)
	finished := c.now()
	delay := c.interval(cfg)
	next := finished.Add(delay)

	c.update(func(s *Snapshot) {
		s.Runs++
		s.NextRun = &next
		if runErr != nil {
			s.Phase = PhaseFailed
			s.Message = runErr.Message
			s.FailedStage = runErr.Stage
			s.ConsecutiveFailures++
			return
		}
		s.Phase = PhaseComplete
		s.Message = "Run completed successfully"
		s.FailedStage = ""
		s.ConsecutiveFailures = 0
		s.LastSuccess = &finished
		s.LastResult = result
	})

	c.persist(ctx)

	if runErr != nil {
		slog.Error("Scheduled run failed", "stage", runErr.Stage, "error", runErr.Message, "next_run", next)
	} else {
		slog.Info("Scheduled run completed", "total", result.Total, "next_run", next)
	}
	return delay
}

func (c *defaultCoordinator) update(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.snapshot)
}

// restore seeds the snapshot from the state store. A run that was in
// progress when the state was saved is treated as never finished.
func (c *defaultCoordinator) restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	saved, err := c.store.Load(ctx)
	if err != nil {
		slog.Warn("Failed to load coordinator state, starting fresh", "error", err)
		return
	}
	if saved == nil {
		return
	}

	c.update(func(s *Snapshot) {
		*s = *saved
		s.NextRun = nil
		if s.Phase == PhaseRunning {
			s.Phase = PhasePending
		}
	})
	slog.Info("Restored coordinator state", "phase", saved.Phase, "runs", saved.Runs)
}

func (c *defaultCoordinator) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	// The final run of a shutdown is saved even though ctx is cancelled.
	if err := c.store.Save(context.WithoutCancel(ctx), c.Status()); err != nil {
		slog.Warn("Failed to save coordinator state", "error", err)
	}
}

package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/status"
	pkgsync "github.com/stacklok/studio-roster/internal/sync"
	"github.com/stacklok/studio-roster/internal/sync/trigger"
	"github.com/stacklok/studio-roster/internal/telemetry"
)

// DefaultInterval is the refresh cadence used when none is configured
const DefaultInterval = 5 * time.Minute

// Reason names what started a refresh run
type Reason string

const (
	// ReasonStartup is the immediate run performed by Start
	ReasonStartup Reason = "startup"

	// ReasonInterval is a run started because the refresh interval elapsed
	ReasonInterval Reason = "interval"

	// ReasonManual is a run started by a trigger request
	ReasonManual Reason = "manual"
)

// Coordinator owns the refresh cadence of the roster
//
//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks -source=coordinator.go Coordinator
type Coordinator interface {
	// Start runs the refresh loop. It blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the refresh loop and waits for it to exit
	Stop() error

	// GetStatus returns a copy of the current sync status
	GetStatus() *status.SyncStatus
}

type defaultCoordinator struct {
	pipeline pkgsync.Pipeline
	store    *roster.Store
	trigger  *trigger.Trigger
	interval time.Duration
	now      func() time.Time

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	stopped     bool
	done        chan struct{}

	statusMu sync.RWMutex
	status   *status.SyncStatus

	// Metrics
	syncMetrics   *telemetry.SyncMetrics
	rosterMetrics *telemetry.RosterMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithInterval sets the time between the end of one run and the start of the next
func WithInterval(interval time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithSyncMetrics sets the refresh run metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithRosterMetrics sets the roster size metrics for the coordinator
func WithRosterMetrics(metrics *telemetry.RosterMetrics) Option {
	return func(c *defaultCoordinator) {
		c.rosterMetrics = metrics
	}
}

// WithClock overrides the clock used for status timestamps
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// New creates a new coordinator with injected dependencies
func New(
	pipeline pkgsync.Pipeline,
	store *roster.Store,
	trig *trigger.Trigger,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		pipeline: pipeline,
		store:    store,
		trigger:  trig,
		interval: DefaultInterval,
		now:      time.Now,
		done:     make(chan struct{}),
		status: &status.SyncStatus{
			Phase:   status.SyncPhaseIdle,
			Message: "No refresh attempted yet",
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start performs one immediate refresh and then refreshes every interval,
// or sooner when the trigger is requested
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.lifecycleMu.Lock()
	if c.stopped {
		c.lifecycleMu.Unlock()
		return nil
	}
	if c.cancelFunc != nil {
		c.lifecycleMu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.cancelFunc = cancel
	c.lifecycleMu.Unlock()

	slog.Info("Starting roster refresh coordinator", "interval", c.interval.String())
	defer func() {
		close(c.done)
		slog.Info("Roster refresh coordinator shutting down")
	}()

	c.refresh(coordCtx, ReasonStartup)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-coordCtx.Done():
			return nil
		case <-timer.C:
			c.refresh(coordCtx, ReasonInterval)
		case <-c.trigger.C():
			c.refresh(coordCtx, ReasonManual)
		}

		// The next interval counts from the end of the run
		timer.Reset(c.interval)
	}
}

// Stop gracefully stops the coordinator. Calling Stop before Start makes a
// later Start return immediately.
func (c *defaultCoordinator) Stop() error {
	c.lifecycleMu.Lock()
	c.stopped = true
	cancel := c.cancelFunc
	c.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping roster refresh coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// GetStatus returns a copy of the current sync status
func (c *defaultCoordinator) GetStatus() *status.SyncStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status.Clone()
}

func (c *defaultCoordinator) withStatus(fn func(s *status.SyncStatus)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	fn(c.status)
}

// refresh executes one pipeline run and publishes its result on success
func (c *defaultCoordinator) refresh(ctx context.Context, reason Reason) {
	startTime := c.now()

	var (
		attempt  int
		previous *status.SyncStatus
	)
	c.withStatus(func(s *status.SyncStatus) {
		previous = s.Clone()
		s.Phase = status.SyncPhaseFetching
		s.Message = "Refresh in progress"
		s.LastAttempt = &startTime
		s.AttemptCount++
		attempt = s.AttemptCount
	})

	slog.Info("Starting roster refresh", "reason", string(reason), "attempt", attempt)

	result, runErr := c.pipeline.Run(pkgsync.WithTrigger(ctx, string(reason)))
	duration := c.now().Sub(startTime)

	if ctx.Err() != nil {
		slog.Info("Roster refresh cancelled, result discarded", "reason", string(reason))
		c.withStatus(func(s *status.SyncStatus) {
			*s = *previous
		})
		return
	}

	if runErr != nil {
		slog.Error("Roster refresh failed",
			"reason", string(reason),
			"run_id", runErr.RunID,
			"kind", string(runErr.Kind),
			"stage", runErr.Stage,
			"error", runErr.Message)

		c.withStatus(func(s *status.SyncStatus) {
			s.Phase = status.SyncPhaseFailed
			s.Message = runErr.Message
			s.LastRunID = runErr.RunID
			s.LastErrorKind = string(runErr.Kind)
		})

		c.syncMetrics.RecordSyncDuration(ctx, duration, false, string(reason))
		c.syncMetrics.RecordSyncFailure(ctx, string(runErr.Kind))
		return
	}

	c.store.Replace(result.Students)
	published := c.store.Len()
	finished := c.now()

	c.withStatus(func(s *status.SyncStatus) {
		s.Phase = status.SyncPhaseComplete
		s.Message = "Refresh completed successfully"
		s.LastSyncTime = &finished
		s.AttemptCount = 0
		s.StudentCount = published
		s.LastRunID = result.RunID
		s.LastErrorKind = ""
	})

	slog.Info("Roster refresh completed",
		"reason", string(reason),
		"run_id", result.RunID,
		"student_count", published,
		"duration", duration.String())

	c.syncMetrics.RecordSyncDuration(ctx, duration, true, string(reason))
	c.rosterMetrics.RecordStudentsTotal(ctx, int64(published))
}

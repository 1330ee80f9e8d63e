// Package inmemory provides the RosterService implementation backed by the
// roster snapshot store
package inmemory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/service"
	"github.com/stacklok/studio-roster/internal/status"
	"github.com/stacklok/studio-roster/internal/sync/trigger"
	"github.com/stacklok/studio-roster/internal/telemetry"
)

// StatusProvider reports the state of the refresh loop
type StatusProvider interface {
	GetStatus() *status.SyncStatus
}

// rosterSvc serves reads from the store and forwards refresh requests to the trigger
type rosterSvc struct {
	store          *roster.Store
	trigger        *trigger.Trigger
	statusProvider StatusProvider
	metrics        *telemetry.RosterMetrics
}

// Option is a functional option for configuring the rosterSvc
type Option func(*rosterSvc)

// WithStatusProvider sets where GetSyncStatus reads from
func WithStatusProvider(provider StatusProvider) Option {
	return func(s *rosterSvc) {
		s.statusProvider = provider
	}
}

// WithRosterMetrics counts refresh requests
func WithRosterMetrics(metrics *telemetry.RosterMetrics) Option {
	return func(s *rosterSvc) {
		s.metrics = metrics
	}
}

// New creates a roster service reading from store and requesting refreshes on trig
func New(store *roster.Store, trig *trigger.Trigger, opts ...Option) service.RosterService {
	s := &rosterSvc{
		store:   store,
		trigger: trig,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CheckReadiness implements RosterService.CheckReadiness
func (s *rosterSvc) CheckReadiness(_ context.Context) error {
	if !s.store.LastUpdated().IsZero() {
		return nil
	}
	if s.statusProvider != nil {
		if st := s.statusProvider.GetStatus(); !st.HasSucceeded() && st.LastErrorKind != "" {
			return fmt.Errorf("%w: last refresh failed with %s", service.ErrNotReady, st.LastErrorKind)
		}
	}
	return service.ErrNotReady
}

// ListStudents implements RosterService.ListStudents
func (s *rosterSvc) ListStudents(
	_ context.Context,
	opts ...service.Option[service.ListStudentsOptions],
) ([]roster.Student, error) {
	options := &service.ListStudentsOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	students := s.store.Read()
	if options.Belt == "" {
		return students, nil
	}

	filtered := make([]roster.Student, 0, len(students))
	for _, student := range students {
		if student.Belt == options.Belt {
			filtered = append(filtered, student)
		}
	}
	return filtered, nil
}

// RequestRefresh implements RosterService.RequestRefresh
func (s *rosterSvc) RequestRefresh(ctx context.Context) error {
	s.trigger.Request()
	s.metrics.RecordRefreshRequest(ctx)
	slog.DebugContext(ctx, "Roster refresh requested")
	return nil
}

// GetSyncStatus implements RosterService.GetSyncStatus
func (s *rosterSvc) GetSyncStatus(_ context.Context) (*status.SyncStatus, error) {
	if s.statusProvider == nil {
		return nil, service.ErrStatusUnavailable
	}
	return s.statusProvider.GetStatus(), nil
}

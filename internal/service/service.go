// Package service provides the read-side logic behind the roster API
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/status"
)

var (
	// ErrNotReady is returned until the first refresh has published a roster
	ErrNotReady = errors.New("roster not loaded yet")
	// ErrStatusUnavailable is returned when no refresh loop reports its status
	ErrStatusUnavailable = errors.New("sync status unavailable")
	// ErrInvalidOption is returned when an operation option is rejected
	ErrInvalidOption = errors.New("invalid option")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RosterService

// RosterService defines the interface for roster operations
type RosterService interface {
	// CheckReadiness returns ErrNotReady until a roster has been published
	CheckReadiness(ctx context.Context) error

	// ListStudents returns the current roster ordered by start time
	ListStudents(ctx context.Context, opts ...Option[ListStudentsOptions]) ([]roster.Student, error)

	// RequestRefresh asks the refresh loop for an out-of-cycle run. It never
	// waits for the run.
	RequestRefresh(ctx context.Context) error

	// GetSyncStatus returns the state of the refresh loop
	GetSyncStatus(ctx context.Context) (*status.SyncStatus, error)
}

// Option is a function that sets an option for a RosterService operation
type Option[T ListStudentsOptions] func(*T) error

// ListStudentsOptions is the options for the ListStudents operation
type ListStudentsOptions struct {
	// Belt keeps only students holding this rank, compared exactly
	Belt string
}

// WithBelt restricts ListStudents to one belt rank
func WithBelt(belt string) Option[ListStudentsOptions] {
	return func(o *ListStudentsOptions) error {
		if belt == "" {
			return fmt.Errorf("%w: belt must not be empty", ErrInvalidOption)
		}
		o.Belt = belt
		return nil
	}
}

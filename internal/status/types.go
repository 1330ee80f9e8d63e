// Package status holds the observable state of the background roster refresh.
package status

import "time"

// SyncPhase represents the current phase of the refresh loop
type SyncPhase string

const (
	// SyncPhaseIdle means no refresh has been attempted yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseFetching means a pipeline run is currently in progress
	SyncPhaseFetching SyncPhase = "Fetching"

	// SyncPhaseComplete means the last run completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last run failed and the previous roster is still served
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus represents the current state of roster synchronization
type SyncStatus struct {
	// Phase represents the current refresh phase
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the last run
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// LastAttempt is the timestamp of the last run start
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// AttemptCount is the number of attempts since the last success
	AttemptCount int `json:"attemptCount" yaml:"attemptCount"`

	// LastSyncTime is the timestamp of the last successful run
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// StudentCount is the number of students in the published roster
	StudentCount int `json:"studentCount" yaml:"studentCount"`

	// LastRunID identifies the most recent run in logs and traces
	LastRunID string `json:"lastRunId,omitempty" yaml:"lastRunId,omitempty"`

	// LastErrorKind is the failure class of the last run, empty on success
	LastErrorKind string `json:"lastErrorKind,omitempty" yaml:"lastErrorKind,omitempty"`
}

// Clone returns a deep copy of the status
func (s *SyncStatus) Clone() *SyncStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		out.LastAttempt = &t
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		out.LastSyncTime = &t
	}
	return &out
}

// HasSucceeded reports whether at least one run published a roster
func (s *SyncStatus) HasSucceeded() bool {
	return s != nil && s.LastSyncTime != nil
}

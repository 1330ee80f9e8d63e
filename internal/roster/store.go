// Package roster holds the attendance snapshot served to readers.
package roster

import (
	"slices"
	"sync"
	"time"
)

// Student is one checked-in participant of the current roster
type Student struct {
	Name string `json:"name"`
	Belt string `json:"belt"`
	// StartTime is the earliest qualifying check-in, in UTC
	StartTime time.Time `json:"time_start_dt"`
	// StartDisplay and EndDisplay are studio-local 12-hour clock strings ("02:00 pm")
	StartDisplay string `json:"time_start"`
	EndDisplay   string `json:"time_end"`
}

// Store is the snapshot shared between the refresh scheduler and readers.
// Readers always see either the previous or the next snapshot in full.
type Store struct {
	mu          sync.RWMutex
	students    []Student
	lastUpdated time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{students: []Student{}}
}

// Read returns a copy of the current snapshot
func (s *Store) Read() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.students)
}

// Replace swaps the current snapshot with a copy of students
func (s *Store) Replace(students []Student) {
	next := slices.Clone(students)
	if next == nil {
		next = []Student{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = next
	s.lastUpdated = time.Now()
}

// Len returns the size of the current snapshot
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students)
}

// LastUpdated returns the time of the last Replace, or the zero time if the
// store still holds its initial empty snapshot
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

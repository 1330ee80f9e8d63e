// Package trigger provides the single-slot signal used to request an
// out-of-cycle roster refresh.
package trigger

// Trigger holds at most one pending refresh request. It is safe for
// concurrent use; the zero value is not usable, call New.
type Trigger struct {
	pending chan struct{}
}

// New creates a trigger with no pending request
func New() *Trigger {
	return &Trigger{pending: make(chan struct{}, 1)}
}

// Request marks a refresh as pending. Repeated calls before the request is
// consumed collapse into one. Never blocks.
func (t *Trigger) Request() {
	select {
	case t.pending <- struct{}{}:
	default:
	}
}

// ConsumeIfSet reports whether a request was pending and clears it
func (t *Trigger) ConsumeIfSet() bool {
	select {
	case <-t.pending:
		return true
	default:
		return false
	}
}

// C returns a channel that yields once per pending request. Receiving from
// it consumes the request.
func (t *Trigger) C() <-chan struct{} {
	return t.pending
}

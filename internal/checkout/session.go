package checkout

import (
	"errors"
	"sync"
)

// Status of a checkout submission
type Status string

const (
	StatusEditing    Status = "EDITING"
	StatusSubmitting Status = "SUBMITTING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

var (
	ErrSubmissionInFlight = errors.New("checkout submission already in flight")
	ErrAlreadyCompleted   = errors.New("checkout already completed")
	ErrNotSubmitting      = errors.New("checkout is not submitting")
)

// Session is the submit-button state for one checkout. Only one submission
// may be in flight at a time; a failed submission can be retried.
type Session struct {
	mu      sync.Mutex
	status  Status
	orderID int64
	lastErr error
}

// NewSession returns a session in the editing state
func NewSession() *Session {
	return &Session{status: StatusEditing}
}

// Begin moves the session to SUBMITTING
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusSubmitting:
		return ErrSubmissionInFlight
	case StatusSucceeded:
		return ErrAlreadyCompleted
	}
	s.status = StatusSubmitting
	s.lastErr = nil
	return nil
}

// Succeed records the placed order
func (s *Session) Succeed(orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusSubmitting {
		return ErrNotSubmitting
	}
	s.status = StatusSucceeded
	s.orderID = orderID
	return nil
}

// Fail records a retryable failure
func (s *Session) Fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusSubmitting {
		return ErrNotSubmitting
	}
	s.status = StatusFailed
	s.lastErr = err
	return nil
}

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CanSubmit reports whether the submit action should be enabled
func (s *Session) CanSubmit() bool {
	st := s.Status()
	return st == StatusEditing || st == StatusFailed
}

// Done reports whether no submission is in flight and the last one finished
func (s *Session) Done() bool {
	st := s.Status()
	return st == StatusSucceeded || st == StatusFailed
}

// OrderID returns the placed order id once succeeded
func (s *Session) OrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

// Err returns the last submission error
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

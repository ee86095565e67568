package events

import "fmt"

// Messages reported to tracker clients
const (
	MsgMissingTrackingCode = "missing tracking code"
	MsgInvalidTrackingCode = "invalid tracking code"
	MsgInvalidEventType    = "invalid event type"
)

// ValidationError rejects a malformed request before anything is written
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthorizationError means no website owns the supplied tracking code
type AuthorizationError struct {
	TrackingCode string
}

func (e *AuthorizationError) Error() string {
	return MsgInvalidTrackingCode
}

// NotFoundError means a session update named a visitor the website does not know.
// Callers treat it as a successful no-op.
type NotFoundError struct {
	VisitorID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("visitor not found: %s", e.VisitorID)
}

// PersistenceError wraps any storage failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

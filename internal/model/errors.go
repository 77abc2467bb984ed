package model

import (
	"errors"
	"fmt"
)

// Business errors surfaced through the API. These are terminal
// rejections, not transient faults.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrLimitExceeded     = errors.New("active request limit exceeded")
	ErrPermissionDenied  = errors.New("permission denied")
)

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ActionExecutionError records one failed action within a matched
// rule. It is stored on the WorkflowExecution and never propagated to
// the transition that raised the triggering event.
type ActionExecutionError struct {
	ActionType ActionType
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.ActionType, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// DeliveryError wraps an email or webhook collaborator failure. It is
// recorded and swallowed at the action boundary.
type DeliveryError struct {
	Channel string // "email" or "webhook"
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

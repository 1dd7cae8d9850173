package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrWorkflowConflict is returned when a concurrent transition changed the request first.
	ErrWorkflowConflict = errors.New("application: workflow conflict")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrSessionExpired is returned when an API token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when an API token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// PolicyViolation reports an operation that targets a protected invariant.
// It is never retried and never collapsed into a plain denial.
type PolicyViolation struct {
	Rule   string
	Detail string
}

// Error implements the error interface.
func (p *PolicyViolation) Error() string {
	if p == nil {
		return ""
	}
	if p.Detail == "" {
		return "policy violation: " + p.Rule
	}
	return fmt.Sprintf("policy violation: %s: %s", p.Rule, p.Detail)
}

// WorkflowError reports an illegal request transition.
type WorkflowError struct {
	Current   string
	Requested string
	Reason    string
	conflict  bool
}

// Error implements the error interface.
func (w *WorkflowError) Error() string {
	if w == nil {
		return ""
	}
	msg := fmt.Sprintf("cannot change status from %s to %s", w.Current, w.Requested)
	if w.Reason != "" {
		msg += ": " + w.Reason
	}
	return msg
}

// Is lets conflict errors match ErrWorkflowConflict.
func (w *WorkflowError) Is(target error) bool {
	return w != nil && w.conflict && target == ErrWorkflowConflict
}

func newWorkflowError(current, requested, reason string) *WorkflowError {
	return &WorkflowError{Current: current, Requested: requested, Reason: reason}
}

func newConflictError(current, requested string) *WorkflowError {
	return &WorkflowError{
		Current:   current,
		Requested: requested,
		Reason:    "request was modified concurrently",
		conflict:  true,
	}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

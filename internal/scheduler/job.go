package scheduler

import (
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	// JobTypeEmail identifies one-shot notification e-mails.
	JobTypeEmail = "email"
	// JobTypeReminder identifies season reminder e-mails.
	JobTypeReminder = "season_reminder"

	// DefaultMaxRetries bounds handler re-runs for a failing job.
	DefaultMaxRetries = 3
	// NoRetries disables retries for a job.
	NoRetries = -1
)

var (
	// ErrJobNotFound is returned when no job is stored under a key.
	ErrJobNotFound = errors.New("scheduler: job not found")
	// ErrSuperseded is returned when a job was replaced or cancelled after it was claimed.
	ErrSuperseded = errors.New("scheduler: job superseded")
	// ErrInvalidContent is returned when mail content names neither a message nor a template.
	ErrInvalidContent = errors.New("scheduler: content requires a message or template")
	// ErrNoHandler is returned when no handler is registered for a job type.
	ErrNoHandler = errors.New("scheduler: no handler registered")
)

// SchedulingError reports a job store failure. Callers treat it as
// "notification not guaranteed" rather than failing their own operation.
type SchedulingError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("scheduler: %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes the store error.
func (e *SchedulingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Job is a keyed unit of deferred work. Revision and LeaseUntil are managed
// by the JobStore: Revision changes whenever the job is saved so a claim on a
// replaced job can no longer complete or retry it.
type Job struct {
	Key        string
	Type       string
	Payload    map[string]string
	FireAt     time.Time
	RetryCount int
	MaxRetries int
	Revision   string
	LeaseUntil time.Time
	CreatedAt  time.Time
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	j.Payload = maps.Clone(j.Payload)
	return j
}

// IsNotification reports whether exhausting the job escalates to an administrator.
func (j Job) IsNotification() bool {
	return j.Type == JobTypeEmail || j.Type == JobTypeReminder
}

// IsFallback reports whether the job is itself an escalation.
func (j Job) IsFallback() bool {
	return j.Payload[PayloadFallback] == "true"
}

// Due reports whether the job may fire at now.
func (j Job) Due(now time.Time) bool {
	return !j.FireAt.After(now) && !j.LeaseUntil.After(now)
}

// ReminderKind names the season date a reminder refers to.
type ReminderKind string

const (
	ReminderStartDate ReminderKind = "startDate"
	ReminderEndDate   ReminderKind = "endDate"
)

// ReminderKey derives the job key of a recurring reminder. The same
// (recipient, kind, season) always yields the same key; the address is hashed
// so it never appears in the store's key space.
func ReminderKey(recipientEmail string, kind ReminderKind, seasonID string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(recipientEmail))))
	return fmt.Sprintf("reminder:%s:%s:%s", kind, seasonID, hex.EncodeToString(sum[:16]))
}

// ValidateJob checks the fields every store requires before saving.
func ValidateJob(job Job) error {
	switch {
	case strings.TrimSpace(job.Key) == "":
		return errors.New("scheduler: job key is required")
	case strings.TrimSpace(job.Type) == "":
		return errors.New("scheduler: job type is required")
	case job.FireAt.IsZero():
		return errors.New("scheduler: job fire time is required")
	}
	return nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RequestStatusTemplate is the notification template announcing a status change.
const RequestStatusTemplate = "request-status"

// EventRequestLifecycle applies guarded transitions to event requests.
type EventRequestLifecycle struct {
	requests      RequestStore
	users         UserDirectory
	access        *AccessControlResolver
	notifications EmailScheduler
	logger        *slog.Logger
}

// NewEventRequestLifecycle wires dependencies for event request transitions.
func NewEventRequestLifecycle(requests RequestStore, users UserDirectory, access *AccessControlResolver, notifications EmailScheduler, logger *slog.Logger) *EventRequestLifecycle {
	return &EventRequestLifecycle{
		requests:      requests,
		users:         users,
		access:        access,
		notifications: notifications,
		logger:        defaultLogger(logger),
	}
}

// Transition moves the event request to params.Target. Authorization and the
// state machine are checked before anything is written; notifications are
// enqueued only after the new status is persisted.
func (l *EventRequestLifecycle) Transition(ctx context.Context, params TransitionParams) (RequestEntity, error) {
	if l == nil {
		return RequestEntity{}, fmt.Errorf("EventRequestLifecycle is nil")
	}
	if l.requests == nil || l.access == nil {
		return RequestEntity{}, fmt.Errorf("event request lifecycle not configured")
	}
	logger := serviceLogger(ctx, l.logger, "event_request_lifecycle", "transition",
		"request_id", params.RequestID, "target", params.Target, "user_id", params.Principal.UserID)

	target, vErr := validateTransitionParams(params, func(s string) bool {
		_, ok := ParseEventRequestStatus(s)
		return ok
	})
	if vErr.HasErrors() {
		return RequestEntity{}, vErr
	}
	targetStatus := EventRequestStatus(target)

	request, err := l.requests.FetchRequest(ctx, RequestKindEvent, params.RequestID)
	if err != nil {
		return RequestEntity{}, err
	}
	current, ok := ParseEventRequestStatus(request.Status)
	if !ok {
		return RequestEntity{}, fmt.Errorf("event request %s has unknown status %q", request.ID, request.Status)
	}

	action := ActionChangeEventRequestStatus
	if current == EventRequestApproved && targetStatus == EventRequestApproved {
		action = ActionReassignEventRequest
	}
	if err := l.access.Authorize(ctx, params.Principal, action, Target{Request: &request, ProposedStatus: target}); err != nil {
		logger.WarnContext(ctx, "transition denied", "error_kind", ErrorKind(err))
		return RequestEntity{}, err
	}

	assignee, err := NextEventRequestStatus(current, targetStatus, request.AssigneeID, strings.TrimSpace(params.AssigneeID))
	if err != nil {
		logger.InfoContext(ctx, "transition rejected", "current", current, "error", err)
		return RequestEntity{}, err
	}
	if assignee != request.AssigneeID {
		if err := l.ensureMentor(ctx, current, targetStatus, assignee); err != nil {
			return RequestEntity{}, err
		}
	}

	updated, err := l.requests.SaveRequestStatus(ctx, StatusUpdate{
		Kind:            RequestKindEvent,
		RequestID:       request.ID,
		ExpectedVersion: request.Version,
		Status:          target,
		AssigneeID:      assignee,
	})
	if err != nil {
		if errors.Is(err, ErrWorkflowConflict) {
			return RequestEntity{}, newConflictError(string(current), target)
		}
		return RequestEntity{}, err
	}
	logger.InfoContext(ctx, "request transitioned", "from", current, "to", updated.Status, "assignee_id", updated.AssigneeID)

	recipients := []string{updated.RequesterID}
	if updated.AssigneeID != "" && updated.AssigneeID != updated.RequesterID {
		recipients = append(recipients, updated.AssigneeID)
	}
	notifyStatusChange(ctx, logger, l.users, l.notifications, updated, params.Comment, recipients)

	return updated, nil
}

func (l *EventRequestLifecycle) ensureMentor(ctx context.Context, current, target EventRequestStatus, assigneeID string) error {
	if l.users == nil {
		return fmt.Errorf("user directory not configured")
	}
	users, err := l.users.FindUsersByIDs(ctx, []string{assigneeID})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, user := range users {
		if user.ID != assigneeID {
			continue
		}
		if user.Role == RoleMentor && user.Active {
			return nil
		}
		break
	}
	return newWorkflowError(string(current), string(target), fmt.Sprintf("assignee %s must be an active mentor", assigneeID))
}

// AbsenceLifecycle applies guarded transitions to absence requests.
type AbsenceLifecycle struct {
	requests      RequestStore
	users         UserDirectory
	access        *AccessControlResolver
	notifications EmailScheduler
	now           func() time.Time
	logger        *slog.Logger
}

// NewAbsenceLifecycle wires dependencies for absence request transitions.
func NewAbsenceLifecycle(requests RequestStore, users UserDirectory, access *AccessControlResolver, notifications EmailScheduler, now func() time.Time, logger *slog.Logger) *AbsenceLifecycle {
	if now == nil {
		now = time.Now
	}
	return &AbsenceLifecycle{
		requests:      requests,
		users:         users,
		access:        access,
		notifications: notifications,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

// Transition moves the absence request to params.Target.
func (l *AbsenceLifecycle) Transition(ctx context.Context, params TransitionParams) (RequestEntity, error) {
	if l == nil {
		return RequestEntity{}, fmt.Errorf("AbsenceLifecycle is nil")
	}
	if l.requests == nil || l.access == nil {
		return RequestEntity{}, fmt.Errorf("absence lifecycle not configured")
	}
	logger := serviceLogger(ctx, l.logger, "absence_lifecycle", "transition",
		"request_id", params.RequestID, "target", params.Target, "user_id", params.Principal.UserID)

	target, vErr := validateTransitionParams(params, func(s string) bool {
		_, ok := ParseAbsenceStatus(s)
		return ok
	})
	if strings.TrimSpace(params.AssigneeID) != "" {
		vErr.add("assignee_id", "absence requests have no assignee")
	}
	if vErr.HasErrors() {
		return RequestEntity{}, vErr
	}

	request, err := l.requests.FetchRequest(ctx, RequestKindAbsence, params.RequestID)
	if err != nil {
		return RequestEntity{}, err
	}
	current, ok := ParseAbsenceStatus(request.Status)
	if !ok {
		return RequestEntity{}, fmt.Errorf("absence request %s has unknown status %q", request.ID, request.Status)
	}

	if err := l.access.Authorize(ctx, params.Principal, ActionChangeAbsenceRequestStatus, Target{Request: &request, ProposedStatus: target}); err != nil {
		logger.WarnContext(ctx, "transition denied", "error_kind", ErrorKind(err))
		return RequestEntity{}, err
	}

	if err := NextAbsenceStatus(current, AbsenceStatus(target), request.StartDate, l.now()); err != nil {
		logger.InfoContext(ctx, "transition rejected", "current", current, "error", err)
		return RequestEntity{}, err
	}

	updated, err := l.requests.SaveRequestStatus(ctx, StatusUpdate{
		Kind:            RequestKindAbsence,
		RequestID:       request.ID,
		ExpectedVersion: request.Version,
		Status:          target,
	})
	if err != nil {
		if errors.Is(err, ErrWorkflowConflict) {
			return RequestEntity{}, newConflictError(string(current), target)
		}
		return RequestEntity{}, err
	}
	logger.InfoContext(ctx, "request transitioned", "from", current, "to", updated.Status)

	notifyStatusChange(ctx, logger, l.users, l.notifications, updated, params.Comment, []string{updated.RequesterID})

	return updated, nil
}

func validateTransitionParams(params TransitionParams, known func(string) bool) (string, *ValidationError) {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.RequestID) == "" {
		vErr.add("request_id", "request id is required")
	}
	target := strings.ToUpper(strings.TrimSpace(params.Target))
	switch {
	case target == "":
		vErr.add("status", "status is required")
	case !known(target):
		vErr.add("status", "status is unknown")
	}
	return target, vErr
}

// notifyStatusChange enqueues one e-mail per recipient. Scheduling is best
// effort: failures are logged and never undo the committed transition.
func notifyStatusChange(ctx context.Context, logger *slog.Logger, users UserDirectory, notifications EmailScheduler, request RequestEntity, comment string, recipientIDs []string) {
	if notifications == nil || users == nil {
		logger.WarnContext(ctx, "notifications not configured; status change not announced")
		return
	}

	recipients, err := users.FindUsersByIDs(ctx, recipientIDs)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve notification recipients", "error", err)
		return
	}

	subject := fmt.Sprintf("Your %s request is now %s", request.Kind, strings.ToLower(request.Status))
	for _, recipient := range recipients {
		if recipient.Email == "" {
			continue
		}
		content := map[string]string{
			"template":  RequestStatusTemplate,
			"fullName":  recipient.FullName(),
			"kind":      string(request.Kind),
			"requestId": request.ID,
			"title":     request.Title,
			"status":    request.Status,
		}
		if comment = strings.TrimSpace(comment); comment != "" {
			content["comment"] = comment
		}
		if err := notifications.ScheduleEmail(ctx, recipient.Email, subject, content); err != nil {
			logger.ErrorContext(ctx, "failed to schedule status notification",
				"recipient_id", recipient.ID, "error", err)
		}
	}
}

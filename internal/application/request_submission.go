package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RequestSubmittedTemplate announces a new request to the season owner.
const RequestSubmittedTemplate = "request-submitted"

// RequestSubmission creates event and absence requests in their initial status.
type RequestSubmission struct {
	requests      RequestCreator
	seasons       SeasonReader
	users         UserDirectory
	access        *AccessControlResolver
	notifications EmailScheduler
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewRequestSubmission wires dependencies for request submission.
func NewRequestSubmission(requests RequestCreator, seasons SeasonReader, users UserDirectory, access *AccessControlResolver, notifications EmailScheduler, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RequestSubmission {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RequestSubmission{
		requests:      requests,
		seasons:       seasons,
		users:         users,
		access:        access,
		notifications: notifications,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

// Submit stores a new request filed by principal in one of their seasons.
// Event requests start REQUESTED, absence requests PENDING.
func (s *RequestSubmission) Submit(ctx context.Context, principal Principal, input RequestInput) (request RequestEntity, err error) {
	if s == nil || s.requests == nil || s.seasons == nil || s.access == nil {
		err = fmt.Errorf("request submission not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "request_submission", "submit",
		"principal_id", principal.UserID, "kind", input.Kind, "season_id", input.SeasonID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit request", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("request_id", request.ID).InfoContext(ctx, "request submitted")
	}()

	if !principal.Active || principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input.Title = strings.TrimSpace(input.Title)
	input.SeasonID = strings.TrimSpace(input.SeasonID)
	var status string
	status, err = initialStatus(input)
	if err != nil {
		return
	}

	var season SeasonSummary
	season, err = s.seasons.FetchSeasonSummary(ctx, input.SeasonID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if !principal.IsAdmin() && !s.access.IsAssignedToSeason(principal, season) {
		err = ErrUnauthorized
		return
	}

	request, err = s.requests.CreateRequest(ctx, RequestEntity{
		ID:          s.idGenerator(),
		Kind:        input.Kind,
		RequesterID: principal.UserID,
		SeasonID:    season.ID,
		Title:       input.Title,
		Status:      status,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		CreatedAt:   s.now(),
		Version:     1,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.notifyOwner(ctx, logger, season, request)
	return
}

func (s *RequestSubmission) notifyOwner(ctx context.Context, logger *slog.Logger, season SeasonSummary, request RequestEntity) {
	if s.notifications == nil || s.users == nil || season.OwnerID == "" || season.OwnerID == request.RequesterID {
		return
	}
	users, err := s.users.FindUsersByIDs(ctx, []string{season.OwnerID, request.RequesterID})
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve season owner", "error", err)
		return
	}
	var owner, requester User
	for _, u := range users {
		switch u.ID {
		case season.OwnerID:
			owner = u
		case request.RequesterID:
			requester = u
		}
	}
	if owner.Email == "" {
		return
	}
	subject := fmt.Sprintf("New %s request in %s", request.Kind, season.Name)
	if err := s.notifications.ScheduleEmail(ctx, owner.Email, subject, map[string]string{
		"template":      RequestSubmittedTemplate,
		"fullName":      owner.FullName(),
		"requesterName": requester.FullName(),
		"kind":          string(request.Kind),
		"requestId":     request.ID,
		"title":         request.Title,
		"seasonName":    season.Name,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to schedule submission notification", "error", err)
	}
}

func initialStatus(input RequestInput) (string, error) {
	vErr := &ValidationError{}
	if input.SeasonID == "" {
		vErr.add("season_id", "season id is required")
	}

	var status string
	switch input.Kind {
	case RequestKindEvent:
		status = string(EventRequestRequested)
		if input.Title == "" {
			vErr.add("title", "title is required")
		}
		if !input.StartDate.IsZero() && !input.EndDate.IsZero() && input.EndDate.Before(input.StartDate) {
			vErr.add("end_date", "end date must not be before start date")
		}
	case RequestKindAbsence:
		status = string(AbsencePending)
		switch {
		case input.StartDate.IsZero():
			vErr.add("start_date", "start date is required")
		case input.EndDate.IsZero():
			vErr.add("end_date", "end date is required")
		case input.EndDate.Before(input.StartDate):
			vErr.add("end_date", "end date must not be before start date")
		}
	default:
		vErr.add("kind", "kind must be event or absence")
	}

	if vErr.HasErrors() {
		return "", vErr
	}
	return status, nil
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/internship-platform/internal/application"
)

type requestTransitioner interface {
	Transition(ctx context.Context, params application.TransitionParams) (application.RequestEntity, error)
}

type requestSearcher interface {
	Search(ctx context.Context, p application.Principal, filter application.RequestFilter) ([]application.RequestEntity, error)
}

type requestSubmitter interface {
	Submit(ctx context.Context, p application.Principal, input application.RequestInput) (application.RequestEntity, error)
}

// RequestHandler serves request submission, search and status transitions.
type RequestHandler struct {
	events    requestTransitioner
	absences  requestTransitioner
	queries   requestSearcher
	submitter requestSubmitter
	responder responder
	logger    *slog.Logger
}

// NewRequestHandler wires the request endpoints.
func NewRequestHandler(events, absences requestTransitioner, queries requestSearcher, submitter requestSubmitter, logger *slog.Logger) *RequestHandler {
	base := defaultLogger(logger)
	return &RequestHandler{
		events:    events,
		absences:  absences,
		queries:   queries,
		submitter: submitter,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *RequestHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RequestHandler", operation, attrs...)
}

// ChangeEventStatus handles POST /event-requests/{id}/status.
func (h *RequestHandler) ChangeEventStatus(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.events, application.RequestKindEvent)
}

// ChangeAbsenceStatus handles POST /absence-requests/{id}/status.
func (h *RequestHandler) ChangeAbsenceStatus(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.absences, application.RequestKindAbsence)
}

func (h *RequestHandler) changeStatus(w http.ResponseWriter, r *http.Request, lifecycle requestTransitioner, kind application.RequestKind) {
	if h == nil || lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID := strings.TrimSpace(chi.URLParam(r, "id"))
	if requestID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ChangeStatus", "kind", kind, "request_id", requestID, "principal_id", principal.UserID)

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode status change", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	updated, err := lifecycle.Transition(r.Context(), application.TransitionParams{
		Principal:  principal,
		RequestID:  requestID,
		Target:     req.Status,
		Comment:    req.Comment,
		AssigneeID: req.AssigneeID,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "status change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "status changed", "status", updated.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, requestResponse{Request: toRequestDTO(updated)})
}

// Search handles GET /requests. Query parameters: kind, status (comma
// separated), season_id (repeatable), requester_id, assignee_id, title.
func (h *RequestHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.queries == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Search", "principal_id", principal.UserID)

	q := r.URL.Query()
	filter := application.RequestFilter{
		Kind:          application.RequestKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		Statuses:      splitList(q["status"]),
		SeasonIDs:     splitList(q["season_id"]),
		RequesterID:   strings.TrimSpace(q.Get("requester_id")),
		AssigneeID:    strings.TrimSpace(q.Get("assignee_id")),
		TitleContains: strings.TrimSpace(q.Get("title")),
	}

	requests, err := h.queries.Search(r.Context(), principal, filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "request search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(requests)).InfoContext(r.Context(), "requests searched")
	out := make([]requestDTO, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRequestDTO(request))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRequestsResponse{Requests: out})
}

// Submit handles POST /requests.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.submitter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Submit", "principal_id", principal.UserID)

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode request submission", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	created, err := h.submitter.Submit(r.Context(), principal, application.RequestInput{
		Kind:      application.RequestKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		SeasonID:  req.SeasonID,
		Title:     req.Title,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "request submission failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("request_id", created.ID).InfoContext(r.Context(), "request submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, requestResponse{Request: toRequestDTO(created)})
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type statusRequest struct {
	Status     string `json:"status"`
	Comment    string `json:"comment"`
	AssigneeID string `json:"assignee_id"`
}

type submitRequest struct {
	Kind      string    `json:"kind"`
	SeasonID  string    `json:"season_id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type requestResponse struct {
	Request requestDTO `json:"request"`
}

type listRequestsResponse struct {
	Requests []requestDTO `json:"requests"`
}

type requestDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	RequesterID string `json:"requester_id"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	SeasonID    string `json:"season_id"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	Version     int    `json:"version"`
}

func toRequestDTO(request application.RequestEntity) requestDTO {
	return requestDTO{
		ID:          request.ID,
		Kind:        string(request.Kind),
		RequesterID: request.RequesterID,
		AssigneeID:  request.AssigneeID,
		SeasonID:    request.SeasonID,
		Title:       request.Title,
		Status:      request.Status,
		StartDate:   formatTime(request.StartDate),
		EndDate:     formatTime(request.EndDate),
		CreatedAt:   formatTime(request.CreatedAt),
		Version:     request.Version,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/scheduler"
)

type jobQueue interface {
	Jobs(ctx context.Context) ([]scheduler.Job, error)
	Cancel(ctx context.Context, key string) error
}

type authorizer interface {
	Authorize(ctx context.Context, p application.Principal, action application.Action, target application.Target) error
}

// JobHandler exposes the scheduled job queue to administrators.
type JobHandler struct {
	jobs      jobQueue
	access    authorizer
	responder responder
	logger    *slog.Logger
}

// NewJobHandler wires the job endpoints.
func NewJobHandler(jobs jobQueue, access authorizer, logger *slog.Logger) *JobHandler {
	base := defaultLogger(logger)
	return &JobHandler{jobs: jobs, access: access, responder: newResponder(base), logger: base}
}

// List handles GET /jobs. The optional type parameter filters by job type.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.jobs == nil || h.access == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.access.Authorize(r.Context(), principal, application.ActionViewJobs, application.Target{}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	jobs, err := h.jobs.Jobs(r.Context())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	jobType := strings.TrimSpace(r.URL.Query().Get("type"))
	out := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		if jobType != "" && job.Type != jobType {
			continue
		}
		out = append(out, toJobDTO(job))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt == out[j].FireAt {
			return out[i].Key < out[j].Key
		}
		return out[i].FireAt < out[j].FireAt
	})
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listJobsResponse{Jobs: out})
}

// Cancel handles DELETE /jobs/{key}.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.jobs == nil || h.access == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.access.Authorize(r.Context(), principal, application.ActionViewJobs, application.Target{}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	if err := h.jobs.Cancel(r.Context(), key); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "JobHandler", "Cancel", "principal_id", principal.UserID, "job_key", key).
		InfoContext(r.Context(), "job cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type listJobsResponse struct {
	Jobs []jobDTO `json:"jobs"`
}

type jobDTO struct {
	Key        string `json:"key"`
	Type       string `json:"type"`
	Recipient  string `json:"recipient,omitempty"`
	Subject    string `json:"subject,omitempty"`
	FireAt     string `json:"fire_at"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

func toJobDTO(job scheduler.Job) jobDTO {
	return jobDTO{
		Key:        job.Key,
		Type:       job.Type,
		Recipient:  job.Payload[scheduler.PayloadEmail],
		Subject:    job.Payload[scheduler.PayloadSubject],
		FireAt:     formatTime(job.FireAt),
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
	}
}

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

type seasonService interface {
	CreateSeason(ctx context.Context, principal application.Principal, input application.SeasonInput) (application.SeasonSummary, error)
	UpdateSeason(ctx context.Context, principal application.Principal, seasonID string, input application.SeasonInput) (application.SeasonSummary, error)
	GetSeason(ctx context.Context, principal application.Principal, seasonID string) (application.SeasonSummary, error)
	ListSeasons(ctx context.Context, principal application.Principal) ([]application.SeasonSummary, error)
}

// SeasonHandler serves season management.
type SeasonHandler struct {
	service   seasonService
	responder responder
	logger    *slog.Logger
}

// NewSeasonHandler wires the season endpoints.
func NewSeasonHandler(service seasonService, logger *slog.Logger) *SeasonHandler {
	base := defaultLogger(logger)
	return &SeasonHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SeasonHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SeasonHandler", operation, attrs...)
}

func (h *SeasonHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req seasonRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode season request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	season, err := h.service.CreateSeason(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "season creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("season_id", season.ID).InfoContext(r.Context(), "season created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, seasonResponse{Season: toSeasonDTO(season)})
}

func (h *SeasonHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seasonID := strings.TrimSpace(chi.URLParam(r, "id"))
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "season_id", seasonID)

	var req seasonRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode season update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	season, err := h.service.UpdateSeason(r.Context(), principal, seasonID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "season update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "season updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, seasonResponse{Season: toSeasonDTO(season)})
}

func (h *SeasonHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seasonID := strings.TrimSpace(chi.URLParam(r, "id"))
	principal, _ := PrincipalFromContext(r.Context())
	season, err := h.service.GetSeason(r.Context(), principal, seasonID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, seasonResponse{Season: toSeasonDTO(season)})
}

func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	seasons, err := h.service.ListSeasons(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "season list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]seasonDTO, 0, len(seasons))
	for _, season := range seasons {
		out = append(out, toSeasonDTO(season))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSeasonsResponse{Seasons: out})
}

type seasonRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	MentorIDs []string  `json:"mentor_ids"`
	InternIDs []string  `json:"intern_ids"`
}

func (r seasonRequest) toInput() application.SeasonInput {
	return application.SeasonInput{
		Name:      r.Name,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		MentorIDs: r.MentorIDs,
		InternIDs: r.InternIDs,
	}
}

type seasonResponse struct {
	Season seasonDTO `json:"season"`
}

type listSeasonsResponse struct {
	Seasons []seasonDTO `json:"seasons"`
}

type seasonDTO struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Name      string   `json:"name"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	MentorIDs []string `json:"mentor_ids"`
	InternIDs []string `json:"intern_ids"`
}

func toSeasonDTO(season application.SeasonSummary) seasonDTO {
	return seasonDTO{
		ID:        season.ID,
		OwnerID:   season.OwnerID,
		Name:      season.Name,
		StartDate: formatTime(season.StartDate),
		EndDate:   formatTime(season.EndDate),
		MentorIDs: season.MentorIDs.Sorted(),
		InternIDs: season.InternIDs.Sorted(),
	}
}

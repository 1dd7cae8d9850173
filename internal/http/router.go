package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil handlers
// leave their routes unmounted.
type RouterConfig struct {
	Sessions *SessionHandler
	Users    *UserHandler
	Seasons  *SeasonHandler
	Requests *RequestHandler
	Jobs     *JobHandler

	// Auth guards every route except /healthz and /metrics.
	Auth func(http.Handler) http.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ready reports scheduler liveness for /healthz.
	Ready  func() bool
	Logger *slog.Logger
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Metrics())

	responder := newResponder(cfg.Logger)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := healthResponse{Status: "ok", Scheduler: "unknown"}
		if cfg.Ready != nil {
			status.Scheduler = "stopped"
			if cfg.Ready() {
				status.Scheduler = "running"
			}
		}
		responder.writeJSON(req.Context(), w, http.StatusOK, status)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		if h := cfg.Sessions; h != nil {
			r.Post("/sessions", h.Create)
			r.Delete("/sessions/current", h.DeleteCurrent)
		}
		if h := cfg.Users; h != nil {
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.Patch("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
		}
		if h := cfg.Seasons; h != nil {
			r.Route("/seasons", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.Put("/{id}", h.Update)
			})
		}
		if h := cfg.Requests; h != nil {
			r.Get("/requests", h.Search)
			r.Post("/requests", h.Submit)
			r.Post("/event-requests/{id}/status", h.ChangeEventStatus)
			r.Post("/absence-requests/{id}/status", h.ChangeAbsenceStatus)
		}
		if h := cfg.Jobs; h != nil {
			r.Get("/jobs", h.List)
			r.Delete("/jobs/{key}", h.Cancel)
		}
	})

	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Scheduler string `json:"scheduler"`
}

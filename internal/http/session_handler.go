package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/internship-platform/internal/application"
)

type sessionService interface {
	IssueSession(ctx context.Context, principal application.Principal, userID string) (application.Session, error)
	RevokeSession(ctx context.Context, token string) error
}

// SessionHandler issues and revokes API tokens.
type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

// NewSessionHandler wires the session endpoints.
func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

// Create handles POST /sessions. An empty user_id issues a token for the caller.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "SessionHandler", "Create", "principal_id", principal.UserID)

	var req sessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			logger.ErrorContext(r.Context(), "failed to decode session request", "error", err, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = principal.UserID
	}

	session, err := h.service.IssueSession(r.Context(), principal, userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "session issue failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if userID == principal.UserID {
		setSessionCookie(w, session.Token, session.ExpiresAt)
	}
	w.Header().Set("X-Session-Token", session.Token)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		UserID:    session.UserID,
		ExpiresAt: formatTime(session.ExpiresAt),
	})
}

// DeleteCurrent handles DELETE /sessions/current by revoking the caller's token.
func (h *SessionHandler) DeleteCurrent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := tokenFromContext(r.Context())
	if token == "" {
		token = extractTokenFromRequest(r)
	}
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	if err := h.service.RevokeSession(r.Context(), token); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	clearSessionCookie(w)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type sessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}

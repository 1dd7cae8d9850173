package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultSessionTTL is the lifetime of an issued API token.
const DefaultSessionTTL = 24 * time.Hour

// SessionService issues and validates API tokens. Only token digests are
// persisted.
type SessionService struct {
	sessions       SessionStore
	users          UserDirectory
	principals     *PrincipalLoader
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	ttl            time.Duration
	logger         *slog.Logger
}

// SessionOption customises a SessionService.
type SessionOption func(*SessionService)

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(gen func() string) SessionOption {
	return func(s *SessionService) {
		if gen != nil {
			s.tokenGenerator = gen
		}
	}
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions SessionStore, users UserDirectory, principals *PrincipalLoader, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...SessionOption) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &SessionService{
		sessions:       sessions,
		users:          users,
		principals:     principals,
		idGenerator:    idGenerator,
		tokenGenerator: randomToken,
		now:            now,
		ttl:            DefaultSessionTTL,
		logger:         defaultLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "session_service", operation, attrs...)
}

// IssueSession creates a token for userID. Administrators may issue tokens
// for anyone, other users only for themselves. The returned session carries
// the plaintext token, which is never stored.
func (s *SessionService) IssueSession(ctx context.Context, principal Principal, userID string) (session Session, err error) {
	if s == nil || s.sessions == nil || s.users == nil {
		err = fmt.Errorf("session service not configured")
		return
	}

	logger := s.loggerWith(ctx, "issue", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to issue session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session issued")
	}()

	if !principal.Active || (!principal.IsAdmin() && principal.UserID != userID) {
		err = ErrUnauthorized
		return
	}
	session, err = s.issue(ctx, userID, s.tokenGenerator())
	return
}

// Bootstrap issues a session for userID without a principal. It is used to
// seed the default administrator's token at startup.
func (s *SessionService) Bootstrap(ctx context.Context, userID, token string) (Session, error) {
	if s == nil || s.sessions == nil || s.users == nil {
		return Session{}, fmt.Errorf("session service not configured")
	}
	if token == "" {
		token = s.tokenGenerator()
	}
	return s.issue(ctx, userID, token)
}

func (s *SessionService) issue(ctx context.Context, userID, token string) (Session, error) {
	users, err := s.users.FindUsersByIDs(ctx, []string{userID})
	if err != nil {
		return Session{}, mapRepoError(err)
	}
	if len(users) == 0 {
		return Session{}, ErrNotFound
	}
	if !users[0].Active {
		return Session{}, ErrUnauthorized
	}

	if token == "" {
		return Session{}, fmt.Errorf("token generator returned an empty token")
	}
	now := s.now()
	stored, err := s.sessions.CreateSession(ctx, Session{
		ID:        s.idGenerator(),
		UserID:    userID,
		Token:     DigestToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return Session{}, mapRepoError(err)
	}
	stored.Token = token
	return stored, nil
}

// RevokeSession invalidates token.
func (s *SessionService) RevokeSession(ctx context.Context, token string) error {
	if s == nil || s.sessions == nil {
		return fmt.Errorf("session service not configured")
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "revoke")
	if _, err := s.sessions.RevokeSession(ctx, DigestToken(trimmed), s.now()); err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession resolves token to the principal of an active user.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil || s.sessions == nil || s.principals == nil {
		err = fmt.Errorf("session service not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "validate", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, DigestToken(trimmed))
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		err = ErrSessionExpired
		return
	}

	principal, err = s.principals.Load(ctx, session.UserID)
	if err != nil {
		return
	}
	if !principal.Active {
		principal = Principal{}
		err = ErrUnauthorized
	}
	return
}

// DigestToken returns the hex BLAKE2b-256 digest under which a token is stored.
func DigestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random token: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

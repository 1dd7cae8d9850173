package application

import (
	"context"
	"time"
)

// MembershipReader resolves the season relationships of a user.
type MembershipReader interface {
	FindPrincipalSeasonIDs(ctx context.Context, userID string) ([]string, error)
	FindSeasonOwnerships(ctx context.Context, userID string) ([]string, error)
}

// SeasonReader fetches season summaries.
type SeasonReader interface {
	FetchSeasonSummary(ctx context.Context, seasonID string) (SeasonSummary, error)
}

// RequestStore reads requests and persists status changes. SaveRequestStatus
// must fail with ErrWorkflowConflict when the stored version differs from
// update.ExpectedVersion.
type RequestStore interface {
	FetchRequest(ctx context.Context, kind RequestKind, id string) (RequestEntity, error)
	SaveRequestStatus(ctx context.Context, update StatusUpdate) (RequestEntity, error)
}

// UserDirectory exposes user lookups.
type UserDirectory interface {
	FindUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	ListAdmins(ctx context.Context) ([]User, error)
}

// EmailScheduler enqueues a one-shot notification e-mail.
type EmailScheduler interface {
	ScheduleEmail(ctx context.Context, recipient, subject string, content map[string]string) error
}

// RequestSearcher finds requests matching a filter.
type RequestSearcher interface {
	SearchRequests(ctx context.Context, filter RequestFilter) ([]RequestEntity, error)
}

// UserStore persists directory entries. GetUser fills SeasonIDs.
type UserStore interface {
	UserDirectory
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// SeasonStore persists seasons.
type SeasonStore interface {
	SeasonReader
	CreateSeason(ctx context.Context, season SeasonSummary) error
	UpdateSeason(ctx context.Context, season SeasonSummary) error
	ListSeasons(ctx context.Context) ([]SeasonSummary, error)
}

// RequestCreator persists newly submitted requests.
type RequestCreator interface {
	CreateRequest(ctx context.Context, request RequestEntity) (RequestEntity, error)
}

// SessionStore persists API tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
}

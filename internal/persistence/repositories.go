package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SeasonRepository stores seasons and their mentor and intern lists.
type SeasonRepository interface {
	CreateSeason(ctx context.Context, season Season) error
	UpdateSeason(ctx context.Context, season Season) error
	GetSeason(ctx context.Context, id string) (Season, error)
	ListSeasons(ctx context.Context) ([]Season, error)
}

// RequestRepository stores event and absence requests.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request Request) error
	GetRequest(ctx context.Context, kind, id string) (Request, error)
	// UpdateRequestStatus applies change when the stored version equals
	// change.ExpectedVersion and fails with ErrVersionConflict otherwise.
	UpdateRequestStatus(ctx context.Context, change RequestStatusChange) (Request, error)
	SearchRequests(ctx context.Context, query Query[Request]) ([]Request, error)
}

// SessionRepository stores API tokens.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
}

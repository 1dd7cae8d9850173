package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PrincipalLoader builds principals from the authenticated user identifier.
type PrincipalLoader struct {
	users       UserDirectory
	memberships MembershipReader
	logger      *slog.Logger
}

// NewPrincipalLoader wires the lookups needed to build principals.
func NewPrincipalLoader(users UserDirectory, memberships MembershipReader, logger *slog.Logger) *PrincipalLoader {
	return &PrincipalLoader{users: users, memberships: memberships, logger: defaultLogger(logger)}
}

// Load returns the principal for userID. Unknown users yield ErrUnauthorized.
func (l *PrincipalLoader) Load(ctx context.Context, userID string) (Principal, error) {
	if l == nil || l.users == nil || l.memberships == nil {
		return Principal{}, fmt.Errorf("principal loader not configured")
	}
	logger := serviceLogger(ctx, l.logger, "principal_loader", "load", "user_id", userID)

	users, err := l.users.FindUsersByIDs(ctx, []string{userID})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if len(users) == 0 {
		logger.WarnContext(ctx, "unknown principal")
		return Principal{}, ErrUnauthorized
	}
	user := users[0]

	memberships, err := l.memberships.FindPrincipalSeasonIDs(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("load season memberships: %w", err)
	}
	ownerships, err := l.memberships.FindSeasonOwnerships(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("load season ownerships: %w", err)
	}

	return Principal{
		UserID:            user.ID,
		Role:              user.Role,
		Active:            user.Active,
		SeasonMemberships: NewIDSet(memberships...),
		SeasonOwnerships:  NewIDSet(ownerships...),
	}, nil
}

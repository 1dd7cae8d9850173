package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/internship-platform/internal/application"
)

func TestSessionServiceIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	session, err := f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "intern")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "intern", session.UserID)
	assert.Equal(t, f.factory.Clock.Now().Add(application.DefaultSessionTTL), session.ExpiresAt)

	_, err = f.services.Ports.GetSession(ctx, session.Token)
	assert.ErrorIs(t, err, application.ErrNotFound, "plaintext tokens are never stored")
	_, err = f.services.Ports.GetSession(ctx, application.DigestToken(session.Token))
	require.NoError(t, err)

	principal, err := f.services.Sessions.ValidateSession(ctx, "  "+session.Token+" ")
	require.NoError(t, err)
	assert.Equal(t, "intern", principal.UserID)
	assert.True(t, principal.SeasonMemberships.Has("season"))
}

func TestSessionServiceIssueRules(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	_, err := f.services.Sessions.IssueSession(ctx, f.principal(t, "intern"), "intern")
	require.NoError(t, err)

	_, err = f.services.Sessions.IssueSession(ctx, f.principal(t, "intern"), "mentor")
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "ghost")
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestSessionServiceRejectsInvalidTokens(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	_, err := f.services.Sessions.ValidateSession(ctx, "")
	assert.ErrorIs(t, err, application.ErrUnauthorized)
	_, err = f.services.Sessions.ValidateSession(ctx, "unknown")
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	revoked, err := f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "mentor")
	require.NoError(t, err)
	require.NoError(t, f.services.Sessions.RevokeSession(ctx, revoked.Token))
	_, err = f.services.Sessions.ValidateSession(ctx, revoked.Token)
	assert.ErrorIs(t, err, application.ErrSessionRevoked)
	assert.ErrorIs(t, f.services.Sessions.RevokeSession(ctx, "unknown"), application.ErrUnauthorized)

	expiring, err := f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "owner")
	require.NoError(t, err)
	f.factory.Clock.Advance(application.DefaultSessionTTL + time.Second)
	_, err = f.services.Sessions.ValidateSession(ctx, expiring.Token)
	assert.ErrorIs(t, err, application.ErrSessionExpired)
}

func TestSessionServiceDeactivatedUser(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	session, err := f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "intern")
	require.NoError(t, err)

	user, err := f.services.Ports.GetUser(ctx, "intern")
	require.NoError(t, err)
	user.Active = false
	_, err = f.services.Ports.UpdateUser(ctx, user)
	require.NoError(t, err)

	_, err = f.services.Sessions.ValidateSession(ctx, session.Token)
	assert.ErrorIs(t, err, application.ErrUnauthorized)
	_, err = f.services.Sessions.IssueSession(ctx, f.principal(t, "admin"), "intern")
	assert.ErrorIs(t, err, application.ErrUnauthorized)
}

func TestSessionServiceBootstrapAndOptions(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)
	ports := f.services.Ports

	svc := application.NewSessionService(ports, ports, f.services.Principals, nil, f.factory.Clock.NowFunc(), nil,
		application.WithTokenGenerator(func() string { return "generated" }),
		application.WithSessionTTL(time.Hour),
	)

	seeded, err := svc.Bootstrap(ctx, "admin", "configured-token")
	require.NoError(t, err)
	assert.Equal(t, "configured-token", seeded.Token)

	principal, err := svc.ValidateSession(ctx, "configured-token")
	require.NoError(t, err)
	assert.True(t, principal.IsAdmin())

	issued, err := svc.IssueSession(ctx, principal, "mentor")
	require.NoError(t, err)
	assert.Equal(t, "generated", issued.Token)
	assert.Equal(t, f.factory.Clock.Now().Add(time.Hour), issued.ExpiresAt)
}

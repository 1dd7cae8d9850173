package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/testfixtures"
)

func TestUserServiceCreateUser(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	user, err := f.services.Users.CreateUser(ctx, f.principal(t, "admin"), application.UserInput{
		Email:        "  New.Intern@Example.com ",
		FirstName:    "New",
		LastName:     "Intern",
		Role:         "intern",
		Technologies: []string{" go ", "go", "sql"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new.intern@example.com", user.Email)
	assert.Equal(t, application.RoleIntern, user.Role)
	assert.Equal(t, []string{"go", "sql"}, user.Technologies)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.ID)

	_, err = f.services.Users.CreateUser(ctx, f.principal(t, "owner"), application.UserInput{
		Email: "x@example.com", FirstName: "X", LastName: "Y", Role: application.RoleIntern, Technologies: []string{"go"},
	})
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = f.services.Users.CreateUser(ctx, f.principal(t, "admin"), application.UserInput{
		Email: f.owner.Email, FirstName: "Dup", LastName: "Licate", Role: application.RoleMentor, Technologies: []string{"go"},
	})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)
}

func TestUserServiceCreateUserValidation(t *testing.T) {
	f := newProgram(t)

	tests := []struct {
		name   string
		input  application.UserInput
		fields []string
	}{
		{
			name:   "missing everything",
			input:  application.UserInput{},
			fields: []string{"email", "first_name", "last_name", "role"},
		},
		{
			name:   "invalid email",
			input:  application.UserInput{Email: "not-an-address", FirstName: "A", LastName: "B", Role: application.RoleAdmin},
			fields: []string{"email"},
		},
		{
			name:   "mentor without technologies",
			input:  application.UserInput{Email: "m@example.com", FirstName: "A", LastName: "B", Role: application.RoleMentor},
			fields: []string{"technologies"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.services.Users.CreateUser(context.Background(), f.principal(t, "admin"), tt.input)
			var vErr *application.ValidationError
			require.ErrorAs(t, err, &vErr)
			for _, field := range tt.fields {
				assert.Contains(t, vErr.FieldErrors, field)
			}
			assert.Len(t, vErr.FieldErrors, len(tt.fields))
		})
	}
}

func TestUserServiceUpdateUser(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)
	mentor := application.RoleMentor

	updated, err := f.services.Users.UpdateUser(ctx, f.principal(t, "owner"), "intern", application.UserUpdate{
		Technologies: []string{"go", "rust"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, updated.Technologies)

	_, err = f.services.Users.UpdateUser(ctx, f.principal(t, "mentor"), "intern", application.UserUpdate{Role: &mentor})
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = f.services.Users.UpdateUser(ctx, f.principal(t, "intern"), "intern", application.UserUpdate{Role: &mentor})
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	name := "  Renamed "
	updated, err = f.services.Users.UpdateUser(ctx, f.principal(t, "intern"), "intern", application.UserUpdate{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.FirstName)

	blank := " "
	_, err = f.services.Users.UpdateUser(ctx, f.principal(t, "intern"), "intern", application.UserUpdate{LastName: &blank})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "last_name")

	_, err = f.services.Users.UpdateUser(ctx, f.principal(t, "admin"), "ghost", application.UserUpdate{FirstName: &name})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestUserServiceProtectsDefaultAdmin(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)
	root := testfixtures.NewUserFixture(testfixtures.WithUserID("root"), testfixtures.WithDefaultAdmin())
	f.services.Ports.AddUsers(root)
	mentor := application.RoleMentor

	_, err := f.services.Users.UpdateUser(ctx, f.principal(t, "admin"), "root", application.UserUpdate{
		Role:         &mentor,
		Technologies: []string{"go"},
	})
	var violation *application.PolicyViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "default_admin_demotion", violation.Rule)

	err = f.services.Users.DeleteUser(ctx, f.principal(t, "admin"), "root")
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "default_admin_deletion", violation.Rule)
}

func TestUserServiceDeleteAndList(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	err := f.services.Users.DeleteUser(ctx, f.principal(t, "owner"), "intern")
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	require.NoError(t, f.services.Users.DeleteUser(ctx, f.principal(t, "admin"), "intern"))
	_, err = f.services.Users.GetUser(ctx, f.principal(t, "admin"), "intern")
	assert.ErrorIs(t, err, application.ErrNotFound)

	season, err := f.services.Ports.FetchSeasonSummary(ctx, "season")
	require.NoError(t, err)
	assert.False(t, season.InternIDs.Has("intern"))

	users, err := f.services.Users.ListUsers(ctx, f.principal(t, "admin"))
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i := 1; i < len(users); i++ {
		assert.LessOrEqual(t, users[i-1].Email, users[i].Email)
	}

	_, err = f.services.Users.ListUsers(ctx, f.principal(t, "mentor"))
	assert.True(t, errors.Is(err, application.ErrUnauthorized))
}

func TestUserServiceGetUser(t *testing.T) {
	ctx := context.Background()
	f := newProgram(t)

	user, err := f.services.Users.GetUser(ctx, f.principal(t, "owner"), "intern")
	require.NoError(t, err)
	assert.Equal(t, []string{"season"}, user.SeasonIDs)

	_, err = f.services.Users.GetUser(ctx, f.principal(t, "intern"), "mentor")
	assert.ErrorIs(t, err, application.ErrUnauthorized)
}

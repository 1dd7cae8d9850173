package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"sort"
	"strings"

	"github.com/example/internship-platform/internal/persistence"
)

// UserObserver reacts to user changes once they are persisted.
type UserObserver interface {
	OnUserUpdated(ctx context.Context, user, previous User) error
	OnUserDeleted(ctx context.Context, user User) error
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users       UserStore
	access      *AccessControlResolver
	observer    UserObserver
	idGenerator func() string
	logger      *slog.Logger
}

// UserServiceOption configures a UserService.
type UserServiceOption func(*UserService)

// WithUserObserver registers the observer told about updates and deletions.
func WithUserObserver(observer UserObserver) UserServiceOption {
	return func(s *UserService) {
		s.observer = observer
	}
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserStore, access *AccessControlResolver, idGenerator func() string, logger *slog.Logger, opts ...UserServiceOption) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	s := &UserService{users: users, access: access, idGenerator: idGenerator, logger: defaultLogger(logger)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "user_service", operation, attrs...)
}

// CreateUser validates input and persists a new active user for administrators.
func (s *UserService) CreateUser(ctx context.Context, principal Principal, input UserInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	logger := s.loggerWith(ctx, "create", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !principal.Active || !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeUserInput(input)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.users.CreateUser(ctx, User{
		ID:           s.idGenerator(),
		Email:        normalized.Email,
		FirstName:    normalized.FirstName,
		LastName:     normalized.LastName,
		Role:         normalized.Role,
		Active:       true,
		Technologies: normalized.Technologies,
	})
	err = mapRepoError(err)
	return
}

// GetUser returns a user to administrators, the user themself, and the owners
// of one of the user's seasons.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil || s.users == nil || s.access == nil {
		return User{}, fmt.Errorf("user service not configured")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	if err := s.access.Authorize(ctx, principal, ActionUpdateUser, Target{User: &user}); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUser applies update after the user policies approved the resulting
// role and technologies.
func (s *UserService) UpdateUser(ctx context.Context, principal Principal, userID string, update UserUpdate) (user User, err error) {
	if s == nil || s.users == nil || s.access == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "update", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	var existing User
	existing, err = s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	change := UserChange{Role: update.Role}
	if update.Technologies != nil {
		change.Technologies = normalizeTechnologies(update.Technologies)
	}
	if err = s.access.Authorize(ctx, principal, ActionUpdateUser, Target{User: &existing, Change: change}); err != nil {
		return
	}

	updated := existing
	vErr := &ValidationError{}
	if update.FirstName != nil {
		updated.FirstName = strings.TrimSpace(*update.FirstName)
		if updated.FirstName == "" {
			vErr.add("first_name", "first name is required")
		}
	}
	if update.LastName != nil {
		updated.LastName = strings.TrimSpace(*update.LastName)
		if updated.LastName == "" {
			vErr.add("last_name", "last name is required")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if change.Role != nil {
		updated.Role = *change.Role
	}
	if change.Technologies != nil {
		updated.Technologies = change.Technologies
	}

	user, err = s.users.UpdateUser(ctx, updated)
	if err = mapRepoError(err); err != nil {
		return
	}

	if s.observer != nil {
		if nerr := s.observer.OnUserUpdated(ctx, user, existing); nerr != nil {
			logger.WarnContext(ctx, "user change notifications incomplete", "error", nerr)
		}
	}
	return
}

// DeleteUser removes a user when requested by an administrator. The default
// administrator is protected.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil || s.users == nil || s.access == nil {
		return fmt.Errorf("user service not configured")
	}
	logger := s.loggerWith(ctx, "delete", "principal_id", principal.UserID, "user_id", userID)

	existing, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.access.Authorize(ctx, principal, ActionDeleteUser, Target{User: &existing}); err != nil {
		logger.WarnContext(ctx, "user deletion denied", "error_kind", ErrorKind(err))
		return err
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if s.observer != nil {
		if nerr := s.observer.OnUserDeleted(ctx, existing); nerr != nil {
			logger.WarnContext(ctx, "pending reminders for deleted user not cancelled", "error", nerr)
		}
	}

	logger.InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns all users ordered by e-mail for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.Active || !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := slices.Clone(users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         Role(strings.ToUpper(strings.TrimSpace(string(input.Role)))),
		Technologies: normalizeTechnologies(input.Technologies),
	}
}

func normalizeTechnologies(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if input.FirstName == "" {
		vErr.add("first_name", "first name is required")
	}
	if input.LastName == "" {
		vErr.add("last_name", "last name is required")
	}
	if !input.Role.Valid() {
		vErr.add("role", "role must be ADMIN, MENTOR or INTERN")
	} else if input.Role != RoleAdmin && len(input.Technologies) == 0 {
		vErr.add("technologies", "at least one technology is required")
	}

	return vErr
}

// mapRepoError translates storage failures into application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}

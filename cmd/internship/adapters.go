package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/persistence"
)

// translateError maps repository sentinels onto the application ones.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrVersionConflict):
		return fmt.Errorf("%w: %v", application.ErrWorkflowConflict, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", application.ErrAlreadyExists, err)
	}
	return err
}

// directoryAdapter serves users together with the season relationships the
// application derives from season staffing.
type directoryAdapter struct {
	users   persistence.UserRepository
	seasons persistence.SeasonRepository
	now     func() time.Time
}

func newDirectoryAdapter(users persistence.UserRepository, seasons persistence.SeasonRepository, now func() time.Time) *directoryAdapter {
	return &directoryAdapter{users: users, seasons: seasons, now: now}
}

func (a *directoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	stamp := a.now().UTC()
	model := toPersistenceUser(user)
	model.CreatedAt = stamp
	model.UpdatedAt = stamp
	if err := a.users.CreateUser(ctx, model); err != nil {
		return application.User{}, translateError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *directoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.users.GetUser(ctx, id)
	if err != nil {
		return application.User{}, translateError(err)
	}
	seasons, err := a.seasons.ListSeasons(ctx)
	if err != nil {
		return application.User{}, err
	}
	return withSeasonIDs(toApplicationUser(stored), seasons), nil
}

func (a *directoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	model := toPersistenceUser(user)
	model.UpdatedAt = a.now().UTC()
	if err := a.users.UpdateUser(ctx, model); err != nil {
		return application.User{}, translateError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *directoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return translateError(a.users.DeleteUser(ctx, id))
}

func (a *directoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	seasons, err := a.seasons.ListSeasons(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, withSeasonIDs(toApplicationUser(model), seasons))
	}
	return users, nil
}

// FindUsersByIDs skips unknown identifiers.
func (a *directoryAdapter) FindUsersByIDs(ctx context.Context, ids []string) ([]application.User, error) {
	users := make([]application.User, 0, len(ids))
	for _, id := range ids {
		stored, err := a.users.GetUser(ctx, id)
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, toApplicationUser(stored))
	}
	return users, nil
}

func (a *directoryAdapter) ListAdmins(ctx context.Context) ([]application.User, error) {
	models, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	admins := make([]application.User, 0)
	for _, model := range models {
		user := toApplicationUser(model)
		if user.Role == application.RoleAdmin && user.Active {
			admins = append(admins, user)
		}
	}
	return admins, nil
}

func (a *directoryAdapter) FindPrincipalSeasonIDs(ctx context.Context, userID string) ([]string, error) {
	return a.matchSeasons(ctx, func(s persistence.Season) bool {
		return slices.Contains(s.MentorIDs, userID) || slices.Contains(s.InternIDs, userID)
	})
}

func (a *directoryAdapter) FindSeasonOwnerships(ctx context.Context, userID string) ([]string, error) {
	return a.matchSeasons(ctx, func(s persistence.Season) bool { return s.OwnerID == userID })
}

func (a *directoryAdapter) matchSeasons(ctx context.Context, match func(persistence.Season) bool) ([]string, error) {
	seasons, err := a.seasons.ListSeasons(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for _, season := range seasons {
		if match(season) {
			ids = append(ids, season.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type seasonAdapter struct {
	repo persistence.SeasonRepository
	now  func() time.Time
}

func newSeasonAdapter(repo persistence.SeasonRepository, now func() time.Time) *seasonAdapter {
	return &seasonAdapter{repo: repo, now: now}
}

func (a *seasonAdapter) FetchSeasonSummary(ctx context.Context, seasonID string) (application.SeasonSummary, error) {
	stored, err := a.repo.GetSeason(ctx, seasonID)
	if err != nil {
		return application.SeasonSummary{}, translateError(err)
	}
	return toSeasonSummary(stored), nil
}

func (a *seasonAdapter) CreateSeason(ctx context.Context, season application.SeasonSummary) error {
	stamp := a.now().UTC()
	model := toPersistenceSeason(season)
	model.CreatedAt = stamp
	model.UpdatedAt = stamp
	return translateError(a.repo.CreateSeason(ctx, model))
}

func (a *seasonAdapter) UpdateSeason(ctx context.Context, season application.SeasonSummary) error {
	current, err := a.repo.GetSeason(ctx, season.ID)
	if err != nil {
		return translateError(err)
	}
	model := toPersistenceSeason(season)
	model.CreatedAt = current.CreatedAt
	model.UpdatedAt = a.now().UTC()
	return translateError(a.repo.UpdateSeason(ctx, model))
}

func (a *seasonAdapter) ListSeasons(ctx context.Context) ([]application.SeasonSummary, error) {
	models, err := a.repo.ListSeasons(ctx)
	if err != nil {
		return nil, err
	}
	seasons := make([]application.SeasonSummary, 0, len(models))
	for _, model := range models {
		seasons = append(seasons, toSeasonSummary(model))
	}
	return seasons, nil
}

type requestAdapter struct {
	repo persistence.RequestRepository
	now  func() time.Time
}

func newRequestAdapter(repo persistence.RequestRepository, now func() time.Time) *requestAdapter {
	return &requestAdapter{repo: repo, now: now}
}

func (a *requestAdapter) FetchRequest(ctx context.Context, kind application.RequestKind, id string) (application.RequestEntity, error) {
	stored, err := a.repo.GetRequest(ctx, string(kind), id)
	if err != nil {
		return application.RequestEntity{}, translateError(err)
	}
	return toRequestEntity(stored), nil
}

func (a *requestAdapter) SaveRequestStatus(ctx context.Context, update application.StatusUpdate) (application.RequestEntity, error) {
	stored, err := a.repo.UpdateRequestStatus(ctx, persistence.RequestStatusChange{
		Kind:            string(update.Kind),
		ID:              update.RequestID,
		ExpectedVersion: update.ExpectedVersion,
		Status:          update.Status,
		AssigneeID:      update.AssigneeID,
		UpdatedAt:       a.now().UTC(),
	})
	if err != nil {
		return application.RequestEntity{}, translateError(err)
	}
	return toRequestEntity(stored), nil
}

func (a *requestAdapter) CreateRequest(ctx context.Context, request application.RequestEntity) (application.RequestEntity, error) {
	model := toPersistenceRequest(request)
	model.UpdatedAt = model.CreatedAt
	if err := a.repo.CreateRequest(ctx, model); err != nil {
		return application.RequestEntity{}, translateError(err)
	}
	return a.FetchRequest(ctx, request.Kind, request.ID)
}

func (a *requestAdapter) SearchRequests(ctx context.Context, filter application.RequestFilter) ([]application.RequestEntity, error) {
	models, err := a.repo.SearchRequests(ctx, toRequestQuery(filter))
	if err != nil {
		return nil, err
	}
	requests := make([]application.RequestEntity, 0, len(models))
	for _, model := range models {
		requests = append(requests, toRequestEntity(model))
	}
	return requests, nil
}

// toRequestQuery turns a filter into the typed query. Empty
// fields add no criterion.
func toRequestQuery(filter application.RequestFilter) persistence.Query[persistence.Request] {
	var query persistence.Query[persistence.Request]
	if filter.Kind != "" {
		query = append(query, persistence.Equals(persistence.RequestKind, string(filter.Kind)))
	}
	if len(filter.Statuses) > 0 {
		query = append(query, persistence.InSet(persistence.RequestStatus, filter.Statuses...))
	}
	if len(filter.SeasonIDs) > 0 {
		query = append(query, persistence.InSet(persistence.RequestSeasonID, filter.SeasonIDs...))
	}
	if filter.RequesterID != "" {
		query = append(query, persistence.Equals(persistence.RequestRequesterID, filter.RequesterID))
	}
	if filter.AssigneeID != "" {
		query = append(query, persistence.Equals(persistence.RequestAssigneeID, filter.AssigneeID))
	}
	if title := strings.TrimSpace(filter.TitleContains); title != "" {
		query = append(query, persistence.Contains(persistence.RequestTitle, title))
	}
	return query
}

type sessionAdapter struct {
	repo persistence.SessionRepository
}

func newSessionAdapter(repo persistence.SessionRepository) *sessionAdapter {
	return &sessionAdapter{repo: repo}
}

func (a *sessionAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.Session(session))
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return application.Session(stored), nil
}

func withSeasonIDs(user application.User, seasons []persistence.Season) application.User {
	user.SeasonIDs = nil
	for _, season := range seasons {
		if slices.Contains(season.MentorIDs, user.ID) || slices.Contains(season.InternIDs, user.ID) {
			user.SeasonIDs = append(user.SeasonIDs, season.ID)
		}
	}
	slices.Sort(user.SeasonIDs)
	return user
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Role:         string(user.Role),
		Active:       user.Active,
		Technologies: slices.Clone(user.Technologies),
		DefaultAdmin: user.DefaultAdmin,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:           model.ID,
		Email:        model.Email,
		FirstName:    model.FirstName,
		LastName:     model.LastName,
		Role:         application.Role(model.Role),
		Active:       model.Active,
		Technologies: slices.Clone(model.Technologies),
		DefaultAdmin: model.DefaultAdmin,
	}
}

func toPersistenceSeason(season application.SeasonSummary) persistence.Season {
	return persistence.Season{
		ID:        season.ID,
		OwnerID:   season.OwnerID,
		Name:      season.Name,
		StartDate: season.StartDate,
		EndDate:   season.EndDate,
		MentorIDs: season.MentorIDs.Sorted(),
		InternIDs: season.InternIDs.Sorted(),
	}
}

func toSeasonSummary(model persistence.Season) application.SeasonSummary {
	return application.SeasonSummary{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		Name:      model.Name,
		StartDate: model.StartDate,
		EndDate:   model.EndDate,
		MentorIDs: application.NewIDSet(model.MentorIDs...),
		InternIDs: application.NewIDSet(model.InternIDs...),
	}
}

func toPersistenceRequest(request application.RequestEntity) persistence.Request {
	return persistence.Request{
		ID:          request.ID,
		Kind:        string(request.Kind),
		RequesterID: request.RequesterID,
		AssigneeID:  request.AssigneeID,
		SeasonID:    request.SeasonID,
		Title:       request.Title,
		Status:      request.Status,
		StartDate:   request.StartDate,
		EndDate:     request.EndDate,
		Version:     request.Version,
		CreatedAt:   request.CreatedAt,
	}
}

func toRequestEntity(model persistence.Request) application.RequestEntity {
	return application.RequestEntity{
		ID:          model.ID,
		Kind:        application.RequestKind(model.Kind),
		RequesterID: model.RequesterID,
		AssigneeID:  model.AssigneeID,
		SeasonID:    model.SeasonID,
		Title:       model.Title,
		Status:      model.Status,
		StartDate:   model.StartDate,
		EndDate:     model.EndDate,
		CreatedAt:   model.CreatedAt,
		Version:     model.Version,
	}
}

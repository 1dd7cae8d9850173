package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SeasonObserver reacts to season edits once they are persisted.
type SeasonObserver interface {
	OnSeasonCreated(ctx context.Context, season SeasonSummary) error
	OnSeasonUpdated(ctx context.Context, season, previous SeasonSummary) error
}

// SeasonService orchestrates validation, authorization, and persistence for seasons.
type SeasonService struct {
	seasons     SeasonStore
	users       UserDirectory
	access      *AccessControlResolver
	observer    SeasonObserver
	idGenerator func() string
	logger      *slog.Logger
}

// NewSeasonService wires dependencies for the season service. observer may be nil.
func NewSeasonService(seasons SeasonStore, users UserDirectory, access *AccessControlResolver, observer SeasonObserver, idGenerator func() string, logger *slog.Logger) *SeasonService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &SeasonService{
		seasons:     seasons,
		users:       users,
		access:      access,
		observer:    observer,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

func (s *SeasonService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "season_service", operation, attrs...)
}

// CreateSeason persists a season owned by the acting administrator and
// announces it to the staff.
func (s *SeasonService) CreateSeason(ctx context.Context, principal Principal, input SeasonInput) (season SeasonSummary, err error) {
	if s == nil || s.seasons == nil || s.users == nil {
		err = fmt.Errorf("season service not configured")
		return
	}

	logger := s.loggerWith(ctx, "create", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create season", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("season_id", season.ID).InfoContext(ctx, "season created")
	}()

	if !principal.Active || !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	season = SeasonSummary{
		ID:        s.idGenerator(),
		OwnerID:   principal.UserID,
		Name:      strings.TrimSpace(input.Name),
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		MentorIDs: NewIDSet(input.MentorIDs...),
		InternIDs: NewIDSet(input.InternIDs...),
	}
	if err = s.validate(ctx, season); err != nil {
		return
	}
	if err = mapRepoError(s.seasons.CreateSeason(ctx, season)); err != nil {
		return
	}

	if s.observer != nil {
		if nerr := s.observer.OnSeasonCreated(ctx, season); nerr != nil {
			logger.WarnContext(ctx, "season notifications incomplete", "error", nerr)
		}
	}
	return
}

// UpdateSeason replaces the editable attributes of a season. Administrators
// and the season owner may edit it.
func (s *SeasonService) UpdateSeason(ctx context.Context, principal Principal, seasonID string, input SeasonInput) (season SeasonSummary, err error) {
	if s == nil || s.seasons == nil || s.users == nil || s.access == nil {
		err = fmt.Errorf("season service not configured")
		return
	}

	logger := s.loggerWith(ctx, "update", "principal_id", principal.UserID, "season_id", seasonID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update season", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "season updated")
	}()

	if !principal.Active {
		err = ErrUnauthorized
		return
	}

	var previous SeasonSummary
	previous, err = s.seasons.FetchSeasonSummary(ctx, seasonID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if !principal.IsAdmin() && !s.access.IsOwnerOfSeason(principal, seasonID) {
		err = ErrUnauthorized
		return
	}

	season = SeasonSummary{
		ID:        previous.ID,
		OwnerID:   previous.OwnerID,
		Name:      strings.TrimSpace(input.Name),
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		MentorIDs: NewIDSet(input.MentorIDs...),
		InternIDs: NewIDSet(input.InternIDs...),
	}
	if err = s.validate(ctx, season); err != nil {
		return
	}
	if err = mapRepoError(s.seasons.UpdateSeason(ctx, season)); err != nil {
		return
	}

	if s.observer != nil {
		if nerr := s.observer.OnSeasonUpdated(ctx, season, previous); nerr != nil {
			logger.WarnContext(ctx, "season notifications incomplete", "error", nerr)
		}
	}
	return
}

// GetSeason returns a season to administrators and to anyone assigned to it.
func (s *SeasonService) GetSeason(ctx context.Context, principal Principal, seasonID string) (SeasonSummary, error) {
	if s == nil || s.seasons == nil || s.access == nil {
		return SeasonSummary{}, fmt.Errorf("season service not configured")
	}
	if !principal.Active {
		return SeasonSummary{}, ErrUnauthorized
	}
	season, err := s.seasons.FetchSeasonSummary(ctx, seasonID)
	if err != nil {
		return SeasonSummary{}, mapRepoError(err)
	}
	if !principal.IsAdmin() && !s.access.IsAssignedToSeason(principal, season) {
		return SeasonSummary{}, ErrUnauthorized
	}
	return season, nil
}

// ListSeasons returns every season to administrators and the assigned
// seasons to everyone else.
func (s *SeasonService) ListSeasons(ctx context.Context, principal Principal) ([]SeasonSummary, error) {
	if s == nil || s.seasons == nil || s.access == nil {
		return nil, fmt.Errorf("season service not configured")
	}
	if !principal.Active {
		return nil, ErrUnauthorized
	}
	all, err := s.seasons.ListSeasons(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if principal.IsAdmin() {
		return all, nil
	}
	visible := make([]SeasonSummary, 0, len(all))
	for _, season := range all {
		if s.access.IsAssignedToSeason(principal, season) {
			visible = append(visible, season)
		}
	}
	return visible, nil
}

// validate checks the season attributes and that every mentor and intern
// holds the matching role.
func (s *SeasonService) validate(ctx context.Context, season SeasonSummary) error {
	vErr := &ValidationError{}
	if season.Name == "" {
		vErr.add("name", "name is required")
	}
	switch {
	case season.StartDate.IsZero():
		vErr.add("start_date", "start date is required")
	case season.EndDate.IsZero():
		vErr.add("end_date", "end date is required")
	case !season.EndDate.After(season.StartDate):
		vErr.add("end_date", "end date must be after start date")
	}
	if len(season.MentorIDs) == 0 {
		vErr.add("mentor_ids", "at least one mentor is required")
	}
	for id := range season.MentorIDs {
		if season.InternIDs.Has(id) {
			vErr.add("intern_ids", "a user cannot be both mentor and intern")
			break
		}
	}
	if vErr.HasErrors() {
		return vErr
	}

	members := season.MemberIDs()
	users, err := s.users.FindUsersByIDs(ctx, members.Sorted())
	if err != nil {
		return fmt.Errorf("resolve season members: %w", err)
	}
	found := NewIDSet()
	for _, u := range users {
		found[u.ID] = struct{}{}
		switch {
		case season.MentorIDs.Has(u.ID) && u.Role != RoleMentor:
			vErr.add("mentor_ids", fmt.Sprintf("user %s is not a mentor", u.ID))
		case season.InternIDs.Has(u.ID) && u.Role != RoleIntern:
			vErr.add("intern_ids", fmt.Sprintf("user %s is not an intern", u.ID))
		}
	}
	if missing := members.Difference(found); len(missing) > 0 {
		vErr.add("members", "unknown users: "+strings.Join(missing.Sorted(), ", "))
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

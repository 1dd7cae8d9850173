// Package memory provides an in-process implementation of the persistence
// repositories, used for development setups and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/internship-platform/internal/persistence"
)

// Storage keeps users, seasons, requests and sessions in maps guarded by a
// single lock.
type Storage struct {
	mu       sync.RWMutex
	users    map[string]persistence.User
	seasons  map[string]persistence.Season
	requests map[string]persistence.Request
	sessions map[string]persistence.Session
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		seasons:  make(map[string]persistence.Season),
		requests: make(map[string]persistence.Request),
		sessions: make(map[string]persistence.Session),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("memory: user %s: %w", user.ID, persistence.ErrDuplicate)
	}

	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateUser updates an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}

	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return cloneUser(user), nil
		}
	}

	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

// DeleteUser removes a user and drops them from season staffing.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.users, id)

	for seasonID, season := range s.seasons {
		mentors := removeString(season.MentorIDs, id)
		interns := removeString(season.InternIDs, id)
		if len(mentors) != len(season.MentorIDs) || len(interns) != len(season.InternIDs) {
			season.MentorIDs = mentors
			season.InternIDs = interns
			s.seasons[seasonID] = season
		}
	}

	return nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	lower := strings.ToLower(email)
	for existingID, user := range s.users {
		if existingID == id {
			continue
		}
		if strings.ToLower(user.Email) == lower {
			return fmt.Errorf("memory: email %s: %w", email, persistence.ErrDuplicate)
		}
	}
	return nil
}

// --- SeasonRepository implementation ---

// CreateSeason stores a new season. Owner and staff must exist.
func (s *Storage) CreateSeason(ctx context.Context, season persistence.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seasons[season.ID]; ok {
		return fmt.Errorf("memory: season %s: %w", season.ID, persistence.ErrDuplicate)
	}
	if err := s.ensureUsersExistLocked(season); err != nil {
		return err
	}

	season.MentorIDs = uniqueStrings(season.MentorIDs)
	season.InternIDs = uniqueStrings(season.InternIDs)
	s.seasons[season.ID] = cloneSeason(season)
	return nil
}

// UpdateSeason replaces an existing season. The owner cannot change.
func (s *Storage) UpdateSeason(ctx context.Context, season persistence.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.seasons[season.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUsersExistLocked(season); err != nil {
		return err
	}

	season.MentorIDs = uniqueStrings(season.MentorIDs)
	season.InternIDs = uniqueStrings(season.InternIDs)
	season.OwnerID = existing.OwnerID
	season.CreatedAt = existing.CreatedAt
	s.seasons[season.ID] = cloneSeason(season)
	return nil
}

// GetSeason retrieves a season by ID.
func (s *Storage) GetSeason(ctx context.Context, id string) (persistence.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	season, ok := s.seasons[id]
	if !ok {
		return persistence.Season{}, persistence.ErrNotFound
	}
	return cloneSeason(season), nil
}

// ListSeasons returns all seasons ordered by start date.
func (s *Storage) ListSeasons(ctx context.Context) ([]persistence.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seasons := make([]persistence.Season, 0, len(s.seasons))
	for _, season := range s.seasons {
		seasons = append(seasons, cloneSeason(season))
	}

	sort.Slice(seasons, func(i, j int) bool {
		if seasons[i].StartDate.Equal(seasons[j].StartDate) {
			return seasons[i].ID < seasons[j].ID
		}
		return seasons[i].StartDate.Before(seasons[j].StartDate)
	})
	return seasons, nil
}

func (s *Storage) ensureUsersExistLocked(season persistence.Season) error {
	if _, ok := s.users[season.OwnerID]; !ok {
		return fmt.Errorf("memory: owner %s does not exist", season.OwnerID)
	}
	for _, id := range append(slices.Clone(season.MentorIDs), season.InternIDs...) {
		if _, ok := s.users[id]; !ok {
			return fmt.Errorf("memory: member %s does not exist", id)
		}
	}
	return nil
}

// --- RequestRepository implementation ---

// CreateRequest stores a new request at version 1 unless a version is set.
func (s *Storage) CreateRequest(ctx context.Context, request persistence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := requestKey(request.Kind, request.ID)
	if _, ok := s.requests[key]; ok {
		return fmt.Errorf("memory: request %s: %w", key, persistence.ErrDuplicate)
	}
	if _, ok := s.seasons[request.SeasonID]; !ok {
		return fmt.Errorf("memory: season %s does not exist", request.SeasonID)
	}
	if request.Version == 0 {
		request.Version = 1
	}
	s.requests[key] = request
	return nil
}

// GetRequest retrieves a request by kind and ID.
func (s *Storage) GetRequest(ctx context.Context, kind, id string) (persistence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[requestKey(kind, id)]
	if !ok {
		return persistence.Request{}, persistence.ErrNotFound
	}
	return request, nil
}

// UpdateRequestStatus implements the version compare-and-set.
func (s *Storage) UpdateRequestStatus(ctx context.Context, change persistence.RequestStatusChange) (persistence.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := requestKey(change.Kind, change.ID)
	request, ok := s.requests[key]
	if !ok {
		return persistence.Request{}, persistence.ErrNotFound
	}
	if request.Version != change.ExpectedVersion {
		return persistence.Request{}, persistence.ErrVersionConflict
	}

	request.Status = change.Status
	request.AssigneeID = change.AssigneeID
	request.UpdatedAt = change.UpdatedAt
	request.Version++
	s.requests[key] = request
	return request, nil
}

// SearchRequests returns the requests matching query ordered by creation time.
func (s *Storage) SearchRequests(ctx context.Context, query persistence.Query[persistence.Request]) ([]persistence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]persistence.Request, 0)
	for _, request := range s.requests {
		if query.Matches(request) {
			matches = append(matches, request)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new API token.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session.UserID]; !ok {
		return persistence.Session{}, fmt.Errorf("memory: user %s does not exist", session.UserID)
	}
	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, fmt.Errorf("memory: session token: %w", persistence.ErrDuplicate)
	}
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// RevokeSession marks the session as revoked.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = cloneSession(session)
	return cloneSession(session), nil
}

// --- Helpers ---

func requestKey(kind, id string) string {
	return kind + "/" + id
}

func cloneUser(user persistence.User) persistence.User {
	user.Technologies = slices.Clone(user.Technologies)
	return user
}

func cloneSeason(season persistence.Season) persistence.Season {
	season.MentorIDs = slices.Clone(season.MentorIDs)
	season.InternIDs = slices.Clone(season.InternIDs)
	return season
}

func cloneSession(session persistence.Session) persistence.Session {
	if session.RevokedAt != nil {
		revoked := *session.RevokedAt
		session.RevokedAt = &revoked
	}
	return session
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func removeString(values []string, target string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == target {
			continue
		}
		result = append(result, value)
	}
	return result
}

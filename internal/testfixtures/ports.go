package testfixtures

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/internship-platform/internal/application"
)

// Ports is an in-memory implementation of the application ports backed by
// fixtures. It records every status save so tests can assert that rejected
// transitions never write.
type Ports struct {
	mu       sync.Mutex
	users    map[string]application.User
	seasons  map[string]application.SeasonSummary
	requests map[string]application.RequestEntity
	sessions map[string]application.Session

	// SaveErr, when set, is returned by SaveRequestStatus.
	SaveErr error
	// Saves records every accepted status update.
	Saves []application.StatusUpdate
}

// NewPorts returns empty ports.
func NewPorts() *Ports {
	return &Ports{
		users:    make(map[string]application.User),
		seasons:  make(map[string]application.SeasonSummary),
		requests: make(map[string]application.RequestEntity),
		sessions: make(map[string]application.Session),
	}
}

// AddUsers stores the users.
func (p *Ports) AddUsers(users ...UserFixture) *Ports {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range users {
		p.users[u.ID] = u.Application()
	}
	return p
}

// AddSeason stores the season.
func (p *Ports) AddSeason(season SeasonFixture) *Ports {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seasons[season.ID] = season.Summary()
	return p
}

// AddRequests stores the requests.
func (p *Ports) AddRequests(requests ...RequestFixture) *Ports {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range requests {
		p.requests[portsRequestKey(r.Kind, r.ID)] = r.Application()
	}
	return p
}

// Request returns the stored request.
func (p *Ports) Request(kind application.RequestKind, id string) application.RequestEntity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[portsRequestKey(kind, id)]
}

// FindPrincipalSeasonIDs implements application.MembershipReader.
func (p *Ports) FindPrincipalSeasonIDs(ctx context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0)
	for id, season := range p.seasons {
		if season.MemberIDs().Has(userID) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// FindSeasonOwnerships implements application.MembershipReader.
func (p *Ports) FindSeasonOwnerships(ctx context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0)
	for id, season := range p.seasons {
		if season.OwnerID == userID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// FetchSeasonSummary implements application.SeasonReader.
func (p *Ports) FetchSeasonSummary(ctx context.Context, seasonID string) (application.SeasonSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	season, ok := p.seasons[seasonID]
	if !ok {
		return application.SeasonSummary{}, application.ErrNotFound
	}
	return season, nil
}

// FetchRequest implements application.RequestStore.
func (p *Ports) FetchRequest(ctx context.Context, kind application.RequestKind, id string) (application.RequestEntity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	request, ok := p.requests[portsRequestKey(kind, id)]
	if !ok {
		return application.RequestEntity{}, application.ErrNotFound
	}
	return request, nil
}

// SaveRequestStatus implements application.RequestStore with a version check.
func (p *Ports) SaveRequestStatus(ctx context.Context, update application.StatusUpdate) (application.RequestEntity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SaveErr != nil {
		return application.RequestEntity{}, p.SaveErr
	}
	key := portsRequestKey(update.Kind, update.RequestID)
	request, ok := p.requests[key]
	if !ok {
		return application.RequestEntity{}, application.ErrNotFound
	}
	if request.Version != update.ExpectedVersion {
		return application.RequestEntity{}, application.ErrWorkflowConflict
	}
	request.Status = update.Status
	request.AssigneeID = update.AssigneeID
	request.Version++
	p.requests[key] = request
	p.Saves = append(p.Saves, update)
	return request, nil
}

// SearchRequests implements application.RequestSearcher.
func (p *Ports) SearchRequests(ctx context.Context, filter application.RequestFilter) ([]application.RequestEntity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]application.RequestEntity, 0)
	for _, r := range p.requests {
		switch {
		case filter.Kind != "" && r.Kind != filter.Kind:
			continue
		case len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, r.Status):
			continue
		case len(filter.SeasonIDs) > 0 && !slices.Contains(filter.SeasonIDs, r.SeasonID):
			continue
		case filter.RequesterID != "" && r.RequesterID != filter.RequesterID:
			continue
		case filter.AssigneeID != "" && r.AssigneeID != filter.AssigneeID:
			continue
		case filter.TitleContains != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(filter.TitleContains)):
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b application.RequestEntity) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// FindUsersByIDs implements application.UserDirectory. Unknown IDs are skipped.
func (p *Ports) FindUsersByIDs(ctx context.Context, ids []string) ([]application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]application.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := p.users[id]; ok {
			out = append(out, p.withSeasonsLocked(u))
		}
	}
	return out, nil
}

// ListAdmins implements application.UserDirectory.
func (p *Ports) ListAdmins(ctx context.Context) ([]application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]application.User, 0)
	for _, u := range p.users {
		if u.Role == application.RoleAdmin && u.Active {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b application.User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func portsRequestKey(kind application.RequestKind, id string) string {
	return string(kind) + "/" + id
}

// withSeasonsLocked fills the seasons the user staffs.
func (p *Ports) withSeasonsLocked(u application.User) application.User {
	u.SeasonIDs = nil
	for id, season := range p.seasons {
		if season.MemberIDs().Has(u.ID) {
			u.SeasonIDs = append(u.SeasonIDs, id)
		}
	}
	slices.Sort(u.SeasonIDs)
	return u
}

// CreateUser implements application.UserStore. E-mails are unique.
func (p *Ports) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[user.ID]; ok {
		return application.User{}, application.ErrAlreadyExists
	}
	for _, existing := range p.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return application.User{}, application.ErrAlreadyExists
		}
	}
	user.SeasonIDs = nil
	p.users[user.ID] = user
	return user, nil
}

// GetUser implements application.UserStore.
func (p *Ports) GetUser(ctx context.Context, id string) (application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		return application.User{}, application.ErrNotFound
	}
	return p.withSeasonsLocked(u), nil
}

// UpdateUser implements application.UserStore.
func (p *Ports) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[user.ID]; !ok {
		return application.User{}, application.ErrNotFound
	}
	p.users[user.ID] = user
	return p.withSeasonsLocked(user), nil
}

// DeleteUser implements application.UserStore and drops the user from season staffing.
func (p *Ports) DeleteUser(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[id]; !ok {
		return application.ErrNotFound
	}
	delete(p.users, id)
	for seasonID, season := range p.seasons {
		delete(season.MentorIDs, id)
		delete(season.InternIDs, id)
		p.seasons[seasonID] = season
	}
	return nil
}

// ListUsers implements application.UserStore.
func (p *Ports) ListUsers(ctx context.Context) ([]application.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]application.User, 0, len(p.users))
	for _, u := range p.users {
		out = append(out, p.withSeasonsLocked(u))
	}
	slices.SortFunc(out, func(a, b application.User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateSeason implements application.SeasonStore.
func (p *Ports) CreateSeason(ctx context.Context, season application.SeasonSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seasons[season.ID]; ok {
		return application.ErrAlreadyExists
	}
	p.seasons[season.ID] = season
	return nil
}

// UpdateSeason implements application.SeasonStore.
func (p *Ports) UpdateSeason(ctx context.Context, season application.SeasonSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seasons[season.ID]; !ok {
		return application.ErrNotFound
	}
	p.seasons[season.ID] = season
	return nil
}

// ListSeasons implements application.SeasonStore.
func (p *Ports) ListSeasons(ctx context.Context) ([]application.SeasonSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]application.SeasonSummary, 0, len(p.seasons))
	for _, season := range p.seasons {
		out = append(out, season)
	}
	slices.SortFunc(out, func(a, b application.SeasonSummary) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateRequest implements application.RequestCreator.
func (p *Ports) CreateRequest(ctx context.Context, request application.RequestEntity) (application.RequestEntity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := portsRequestKey(request.Kind, request.ID)
	if _, ok := p.requests[key]; ok {
		return application.RequestEntity{}, application.ErrAlreadyExists
	}
	p.requests[key] = request
	return request, nil
}

// CreateSession implements application.SessionStore.
func (p *Ports) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[session.Token]; ok {
		return application.Session{}, application.ErrAlreadyExists
	}
	p.sessions[session.Token] = session
	return session, nil
}

// GetSession implements application.SessionStore.
func (p *Ports) GetSession(ctx context.Context, token string) (application.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.sessions[token]
	if !ok {
		return application.Session{}, application.ErrNotFound
	}
	return session, nil
}

// RevokeSession implements application.SessionStore.
func (p *Ports) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.sessions[token]
	if !ok {
		return application.Session{}, application.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	p.sessions[token] = session
	return session, nil
}

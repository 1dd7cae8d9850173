package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/persistence"
)

var (
	userCounter    uint64
	seasonCounter  uint64
	requestCounter uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         application.Role
	Active       bool
	Technologies []string
	DefaultAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an active intern fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		FirstName:    "User",
		LastName:     fmt.Sprintf("%03d", idx),
		Role:         application.RoleIntern,
		Active:       true,
		Technologies: []string{"go"},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName overrides the generated first and last name.
func WithUserName(first, last string) UserOption {
	return func(f *UserFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithUserRole sets the role of the generated fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserInactive marks the fixture as deactivated.
func WithUserInactive() UserOption {
	return func(f *UserFixture) {
		f.Active = false
	}
}

// WithUserTechnologies overrides the technologies list.
func WithUserTechnologies(technologies ...string) UserOption {
	return func(f *UserFixture) {
		f.Technologies = technologies
	}
}

// WithDefaultAdmin marks the fixture as the built-in administrator.
func WithDefaultAdmin() UserOption {
	return func(f *UserFixture) {
		f.Role = application.RoleAdmin
		f.DefaultAdmin = true
	}
}

// Application converts the fixture into an application.User.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:           f.ID,
		Email:        f.Email,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Role:         f.Role,
		Active:       f.Active,
		Technologies: slices.Clone(f.Technologies),
		DefaultAdmin: f.DefaultAdmin,
	}
}

// Principal returns a principal for the fixture with the given season
// memberships and ownerships.
func (f UserFixture) Principal(memberships, ownerships []string) application.Principal {
	return application.Principal{
		UserID:            f.ID,
		Role:              f.Role,
		Active:            f.Active,
		SeasonMemberships: application.NewIDSet(memberships...),
		SeasonOwnerships:  application.NewIDSet(ownerships...),
	}
}

// Persistence converts the fixture into a persistence.User.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Role:         string(f.Role),
		Active:       f.Active,
		Technologies: slices.Clone(f.Technologies),
		DefaultAdmin: f.DefaultAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ---------------------------- Season fixtures ----------------------------

// SeasonFixture represents a deterministic season.
type SeasonFixture struct {
	ID        string
	OwnerID   string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	MentorIDs []string
	InternIDs []string
	CreatedAt time.Time
}

// SeasonOption configures the generated season fixture.
type SeasonOption func(*SeasonFixture)

// NewSeasonFixture returns a season starting 30 days after ReferenceTime and
// lasting 90 days.
func NewSeasonFixture(opts ...SeasonOption) SeasonFixture {
	idx := atomic.AddUint64(&seasonCounter, 1)
	start := referenceTime.Add(30 * 24 * time.Hour)
	fixture := SeasonFixture{
		ID:        fmt.Sprintf("season-%03d", idx),
		OwnerID:   "owner",
		Name:      fmt.Sprintf("Season %03d", idx),
		StartDate: start,
		EndDate:   start.Add(90 * 24 * time.Hour),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSeasonID overrides the generated season ID.
func WithSeasonID(id string) SeasonOption {
	return func(f *SeasonFixture) {
		f.ID = id
	}
}

// WithSeasonOwner sets the season owner.
func WithSeasonOwner(id string) SeasonOption {
	return func(f *SeasonFixture) {
		f.OwnerID = id
	}
}

// WithSeasonName overrides the generated name.
func WithSeasonName(name string) SeasonOption {
	return func(f *SeasonFixture) {
		f.Name = name
	}
}

// WithSeasonDates sets the start and end dates.
func WithSeasonDates(start, end time.Time) SeasonOption {
	return func(f *SeasonFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithSeasonMentors sets the mentor list.
func WithSeasonMentors(ids ...string) SeasonOption {
	return func(f *SeasonFixture) {
		f.MentorIDs = ids
	}
}

// WithSeasonInterns sets the intern list.
func WithSeasonInterns(ids ...string) SeasonOption {
	return func(f *SeasonFixture) {
		f.InternIDs = ids
	}
}

// Summary converts the fixture into an application.SeasonSummary.
func (f SeasonFixture) Summary() application.SeasonSummary {
	return application.SeasonSummary{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		MentorIDs: application.NewIDSet(f.MentorIDs...),
		InternIDs: application.NewIDSet(f.InternIDs...),
	}
}

// Persistence converts the fixture into a persistence.Season.
func (f SeasonFixture) Persistence() persistence.Season {
	return persistence.Season{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		MentorIDs: slices.Clone(f.MentorIDs),
		InternIDs: slices.Clone(f.InternIDs),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ---------------------------- Request fixtures ---------------------------

// RequestFixture represents a deterministic event or absence request.
type RequestFixture struct {
	ID          string
	Kind        application.RequestKind
	RequesterID string
	AssigneeID  string
	SeasonID    string
	Title       string
	Status      string
	StartDate   time.Time
	EndDate     time.Time
	Version     int
	CreatedAt   time.Time
}

// RequestOption configures the generated request fixture.
type RequestOption func(*RequestFixture)

// NewEventRequestFixture returns a REQUESTED event request.
func NewEventRequestFixture(opts ...RequestOption) RequestFixture {
	return newRequestFixture(application.RequestKindEvent, string(application.EventRequestRequested), opts)
}

// NewAbsenceRequestFixture returns a PENDING absence request starting a week
// after ReferenceTime.
func NewAbsenceRequestFixture(opts ...RequestOption) RequestFixture {
	return newRequestFixture(application.RequestKindAbsence, string(application.AbsencePending), opts)
}

func newRequestFixture(kind application.RequestKind, status string, opts []RequestOption) RequestFixture {
	idx := atomic.AddUint64(&requestCounter, 1)
	start := referenceTime.Add(7 * 24 * time.Hour)
	fixture := RequestFixture{
		ID:          fmt.Sprintf("request-%03d", idx),
		Kind:        kind,
		RequesterID: "requester",
		SeasonID:    "season",
		Title:       fmt.Sprintf("Request %03d", idx),
		Status:      status,
		StartDate:   start,
		EndDate:     start.Add(24 * time.Hour),
		Version:     1,
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRequestID overrides the generated request ID.
func WithRequestID(id string) RequestOption {
	return func(f *RequestFixture) {
		f.ID = id
	}
}

// WithRequester sets the requesting user.
func WithRequester(id string) RequestOption {
	return func(f *RequestFixture) {
		f.RequesterID = id
	}
}

// WithAssignee sets the assigned mentor.
func WithAssignee(id string) RequestOption {
	return func(f *RequestFixture) {
		f.AssigneeID = id
	}
}

// WithRequestSeason sets the season the request belongs to.
func WithRequestSeason(id string) RequestOption {
	return func(f *RequestFixture) {
		f.SeasonID = id
	}
}

// WithRequestStatus overrides the status.
func WithRequestStatus(status string) RequestOption {
	return func(f *RequestFixture) {
		f.Status = status
	}
}

// WithRequestTitle overrides the title.
func WithRequestTitle(title string) RequestOption {
	return func(f *RequestFixture) {
		f.Title = title
	}
}

// WithRequestStart sets the start date, keeping a one day duration.
func WithRequestStart(start time.Time) RequestOption {
	return func(f *RequestFixture) {
		f.StartDate = start
		f.EndDate = start.Add(24 * time.Hour)
	}
}

// Application converts the fixture into an application.RequestEntity.
func (f RequestFixture) Application() application.RequestEntity {
	return application.RequestEntity{
		ID:          f.ID,
		Kind:        f.Kind,
		RequesterID: f.RequesterID,
		AssigneeID:  f.AssigneeID,
		SeasonID:    f.SeasonID,
		Title:       f.Title,
		Status:      f.Status,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		CreatedAt:   f.CreatedAt,
		Version:     f.Version,
	}
}

// Persistence converts the fixture into a persistence.Request.
func (f RequestFixture) Persistence() persistence.Request {
	return persistence.Request{
		ID:          f.ID,
		Kind:        string(f.Kind),
		RequesterID: f.RequesterID,
		AssigneeID:  f.AssigneeID,
		SeasonID:    f.SeasonID,
		Title:       f.Title,
		Status:      f.Status,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// ---------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic API token.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session valid for a day after ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID sets the owning user.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// Persistence converts the fixture into a persistence.Session.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
	}
}

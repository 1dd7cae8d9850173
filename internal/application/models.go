package application

import (
	"slices"
	"time"
)

// Role identifies the single authority a user holds in the program.
type Role string

const (
	// RoleAdmin administers every season.
	RoleAdmin Role = "ADMIN"
	// RoleMentor owns or mentors seasons and handles requests on their behalf.
	RoleMentor Role = "MENTOR"
	// RoleIntern participates in seasons.
	RoleIntern Role = "INTERN"
)

// Valid reports whether the role is one of the known authorities.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleIntern:
		return true
	}
	return false
}

// IDSet is an unordered set of identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from the supplied identifiers, skipping blanks.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Has reports whether id is a member of the set.
func (s IDSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// Union returns a new set holding the members of both sets.
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the members of s that are not in other.
func (s IDSet) Difference(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Principal is the acting user reduced to the facts access decisions need.
// It is built per request and never mutated during a decision.
type Principal struct {
	UserID            string
	Role              Role
	Active            bool
	SeasonMemberships IDSet
	SeasonOwnerships  IDSet
}

// IsAdmin reports whether the principal holds the ADMIN authority.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SeasonSummary is the read-only view of a season used by policies and notifications.
type SeasonSummary struct {
	ID        string
	OwnerID   string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	MentorIDs IDSet
	InternIDs IDSet
}

// MemberIDs returns mentors and interns of the season.
func (s SeasonSummary) MemberIDs() IDSet {
	return s.MentorIDs.Union(s.InternIDs)
}

// User is the directory entry of a program participant.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool
	Technologies []string
	SeasonIDs    []string
	DefaultAdmin bool
}

// FullName joins the first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RequestKind distinguishes the two request workflows.
type RequestKind string

const (
	// RequestKindEvent identifies event requests.
	RequestKindEvent RequestKind = "event"
	// RequestKindAbsence identifies absence requests.
	RequestKindAbsence RequestKind = "absence"
)

// EventRequestStatus enumerates the states of an event request.
type EventRequestStatus string

const (
	EventRequestRequested EventRequestStatus = "REQUESTED"
	EventRequestApproved  EventRequestStatus = "APPROVED"
	EventRequestRejected  EventRequestStatus = "REJECTED"
	EventRequestScheduled EventRequestStatus = "SCHEDULED"
)

// Terminal reports whether no further transition is permitted.
func (s EventRequestStatus) Terminal() bool {
	return s == EventRequestRejected || s == EventRequestScheduled
}

// AbsenceStatus enumerates the states of an absence request.
type AbsenceStatus string

const (
	AbsencePending  AbsenceStatus = "PENDING"
	AbsenceApproved AbsenceStatus = "APPROVED"
	AbsenceRejected AbsenceStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted.
func (s AbsenceStatus) Terminal() bool {
	return s == AbsenceApproved || s == AbsenceRejected
}

// RequestEntity generalises event and absence requests. Status is the only
// field the workflow changes directly; Version guards concurrent transitions.
type RequestEntity struct {
	ID          string
	Kind        RequestKind
	RequesterID string
	AssigneeID  string
	SeasonID    string
	Title       string
	Status      string
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
	Version     int
}

// StatusUpdate describes a compare-and-set status write.
type StatusUpdate struct {
	Kind            RequestKind
	RequestID       string
	ExpectedVersion int
	Status          string
	AssigneeID      string
}

// Session is an issued API token.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// UserInput carries the attributes of a new user.
type UserInput struct {
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	Technologies []string
}

// UserUpdate carries the proposed edits to a user. Nil fields are left unchanged.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	Role         *Role
	Technologies []string
}

// SeasonInput carries the editable attributes of a season.
type SeasonInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	MentorIDs []string
	InternIDs []string
}

// RequestInput carries a new event or absence request.
type RequestInput struct {
	Kind      RequestKind
	SeasonID  string
	Title     string
	StartDate time.Time
	EndDate   time.Time
}

// UserChange captures the role and technology edits proposed for a user.
// Nil fields are left unchanged.
type UserChange struct {
	Role         *Role
	Technologies []string
}

// TransitionParams wraps the data required to move a request to a new status.
type TransitionParams struct {
	Principal  Principal
	RequestID  string
	Target     string
	Comment    string
	AssigneeID string
}

package persistence

import "time"

// User represents a program participant account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	Active       bool
	Technologies []string
	DefaultAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Season represents an internship season and its staffing.
type Season struct {
	ID        string
	OwnerID   string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	MentorIDs []string
	InternIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request represents an event request or an absence request. Version is
// incremented on every status change.
type Request struct {
	ID          string
	Kind        string
	RequesterID string
	AssigneeID  string
	SeasonID    string
	Title       string
	Status      string
	StartDate   time.Time
	EndDate     time.Time
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RequestStatusChange is a compare-and-set status update on a request.
type RequestStatusChange struct {
	Kind            string
	ID              string
	ExpectedVersion int
	Status          string
	AssigneeID      string
	UpdatedAt       time.Time
}

// Session represents an API token issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

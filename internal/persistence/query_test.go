package persistence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/internship-platform/internal/persistence"
)

func TestCriterionMatches(t *testing.T) {
	t.Parallel()

	request := persistence.Request{Kind: "event", Status: "APPROVED", SeasonID: "s1", Title: "Demo Day"}

	tests := []struct {
		name      string
		criterion persistence.Criterion[persistence.Request]
		want      bool
	}{
		{name: "equals", criterion: persistence.Equals(persistence.RequestKind, "event"), want: true},
		{name: "equals is exact", criterion: persistence.Equals(persistence.RequestStatus, "approved"), want: false},
		{name: "contains ignores case", criterion: persistence.Contains(persistence.RequestTitle, "DEMO"), want: true},
		{name: "contains misses", criterion: persistence.Contains(persistence.RequestTitle, "party"), want: false},
		{name: "in set", criterion: persistence.InSet(persistence.RequestSeasonID, "s0", "s1"), want: true},
		{name: "not in set", criterion: persistence.InSet(persistence.RequestSeasonID, "s2"), want: false},
		{name: "empty set matches nothing", criterion: persistence.InSet(persistence.RequestSeasonID), want: false},
		{name: "zero criterion", criterion: persistence.Criterion[persistence.Request]{}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.criterion.Matches(request))
		})
	}
}

func TestQueryFilter(t *testing.T) {
	t.Parallel()

	requests := []persistence.Request{
		{ID: "1", Kind: "event", Status: "REQUESTED"},
		{ID: "2", Kind: "absence", Status: "PENDING"},
		{ID: "3", Kind: "event", Status: "APPROVED"},
	}

	assert.Len(t, persistence.Query[persistence.Request](nil).Filter(requests), 3)

	query := persistence.Query[persistence.Request]{
		persistence.Equals(persistence.RequestKind, "event"),
		persistence.InSet(persistence.RequestStatus, "APPROVED", "SCHEDULED"),
	}
	got := query.Filter(requests)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "3", got[0].ID)
	}

	assert.Equal(t, "status in APPROVED,SCHEDULED", query[1].String())
}

func TestCustomField(t *testing.T) {
	t.Parallel()

	email := persistence.NewField("email", func(u persistence.User) string { return u.Email })
	query := persistence.Query[persistence.User]{persistence.Contains(email, "@Example.com")}

	assert.True(t, query.Matches(persistence.User{Email: "ada@example.com"}))
	assert.False(t, query.Matches(persistence.User{Email: "ada@example.org"}))
}

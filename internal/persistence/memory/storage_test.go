package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/internship-platform/internal/persistence"
	"github.com/example/internship-platform/internal/persistence/memory"
	"github.com/example/internship-platform/internal/testfixtures"
)

var (
	_ persistence.UserRepository    = (*memory.Storage)(nil)
	_ persistence.SeasonRepository  = (*memory.Storage)(nil)
	_ persistence.RequestRepository = (*memory.Storage)(nil)
	_ persistence.SessionRepository = (*memory.Storage)(nil)
)

func newPersistenceUser(opts ...testfixtures.UserOption) persistence.User {
	return testfixtures.NewUserFixture(opts...).Persistence()
}

func seed(t *testing.T, storage *memory.Storage, users ...persistence.User) {
	t.Helper()
	for _, user := range users {
		if err := storage.CreateUser(context.Background(), user); err != nil {
			t.Fatalf("CreateUser(%s) returned error: %v", user.ID, err)
		}
	}
}

func TestUserRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes users", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := memory.New()
		defer storage.Close()

		user := newPersistenceUser(testfixtures.WithUserID("user-1"), testfixtures.WithUserEmail("alice@example.com"))
		seed(t, storage, user)

		got, err := storage.GetUserByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail returned error: %v", err)
		}
		if got.ID != "user-1" {
			t.Fatalf("expected user-1, got %q", got.ID)
		}

		got.Technologies = append(got.Technologies, "rust")
		if err := storage.UpdateUser(ctx, got); err != nil {
			t.Fatalf("UpdateUser returned error: %v", err)
		}
		reloaded, err := storage.GetUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetUser returned error: %v", err)
		}
		if len(reloaded.Technologies) != 2 {
			t.Fatalf("expected updated technologies, got %v", reloaded.Technologies)
		}

		if err := storage.DeleteUser(ctx, "user-1"); err != nil {
			t.Fatalf("DeleteUser returned error: %v", err)
		}
		if _, err := storage.GetUser(ctx, "user-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := storage.DeleteUser(ctx, "user-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("rejects duplicate identifiers and e-mails", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := memory.New()
		seed(t, storage, newPersistenceUser(testfixtures.WithUserID("u1"), testfixtures.WithUserEmail("bob@example.com")))

		if err := storage.CreateUser(ctx, newPersistenceUser(testfixtures.WithUserID("u1"))); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for id, got %v", err)
		}
		if err := storage.CreateUser(ctx, newPersistenceUser(testfixtures.WithUserID("u2"), testfixtures.WithUserEmail("Bob@Example.com"))); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for email, got %v", err)
		}
	})

	t.Run("deleting a user removes season membership", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := memory.New()
		seed(t, storage,
			newPersistenceUser(testfixtures.WithUserID("owner")),
			newPersistenceUser(testfixtures.WithUserID("intern")),
		)
		season := testfixtures.NewSeasonFixture(testfixtures.WithSeasonID("s1"), testfixtures.WithSeasonInterns("intern")).Persistence()
		if err := storage.CreateSeason(ctx, season); err != nil {
			t.Fatalf("CreateSeason returned error: %v", err)
		}

		if err := storage.DeleteUser(ctx, "intern"); err != nil {
			t.Fatalf("DeleteUser returned error: %v", err)
		}
		got, err := storage.GetSeason(ctx, "s1")
		if err != nil {
			t.Fatalf("GetSeason returned error: %v", err)
		}
		if len(got.InternIDs) != 0 {
			t.Fatalf("expected intern to be removed, got %v", got.InternIDs)
		}
	})
}

func TestSeasonRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.New()
	seed(t, storage,
		newPersistenceUser(testfixtures.WithUserID("owner")),
		newPersistenceUser(testfixtures.WithUserID("mentor")),
		newPersistenceUser(testfixtures.WithUserID("other")),
	)

	base := testfixtures.ReferenceTime()
	late := testfixtures.NewSeasonFixture(testfixtures.WithSeasonID("late"), testfixtures.WithSeasonDates(base.AddDate(0, 6, 0), base.AddDate(0, 9, 0))).Persistence()
	early := testfixtures.NewSeasonFixture(testfixtures.WithSeasonID("early"), testfixtures.WithSeasonMentors("mentor", "mentor")).Persistence()
	for _, season := range []persistence.Season{late, early} {
		if err := storage.CreateSeason(ctx, season); err != nil {
			t.Fatalf("CreateSeason(%s) returned error: %v", season.ID, err)
		}
	}

	missing := testfixtures.NewSeasonFixture(testfixtures.WithSeasonMentors("ghost")).Persistence()
	if err := storage.CreateSeason(ctx, missing); err == nil {
		t.Fatalf("expected error for unknown mentor")
	}
	if err := storage.CreateSeason(ctx, early); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	seasons, err := storage.ListSeasons(ctx)
	if err != nil {
		t.Fatalf("ListSeasons returned error: %v", err)
	}
	if len(seasons) != 2 || seasons[0].ID != "early" || seasons[1].ID != "late" {
		t.Fatalf("expected seasons ordered by start date, got %+v", seasons)
	}
	if len(seasons[0].MentorIDs) != 1 {
		t.Fatalf("expected duplicate mentors to collapse, got %v", seasons[0].MentorIDs)
	}

	early.OwnerID = "other"
	early.Name = "Renamed"
	if err := storage.UpdateSeason(ctx, early); err != nil {
		t.Fatalf("UpdateSeason returned error: %v", err)
	}
	got, err := storage.GetSeason(ctx, "early")
	if err != nil {
		t.Fatalf("GetSeason returned error: %v", err)
	}
	if got.OwnerID != "owner" || got.Name != "Renamed" {
		t.Fatalf("expected name change with owner kept, got %+v", got)
	}
	if err := storage.UpdateSeason(ctx, testfixtures.NewSeasonFixture().Persistence()); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.New()
	seed(t, storage, newPersistenceUser(testfixtures.WithUserID("owner")))
	if err := storage.CreateSeason(ctx, testfixtures.NewSeasonFixture(testfixtures.WithSeasonID("season")).Persistence()); err != nil {
		t.Fatalf("CreateSeason returned error: %v", err)
	}

	event := testfixtures.NewEventRequestFixture(testfixtures.WithRequestID("r1"), testfixtures.WithRequestTitle("Demo day")).Persistence()
	absence := testfixtures.NewAbsenceRequestFixture(testfixtures.WithRequestID("r1")).Persistence()
	for _, request := range []persistence.Request{event, absence} {
		if err := storage.CreateRequest(ctx, request); err != nil {
			t.Fatalf("CreateRequest(%s/%s) returned error: %v", request.Kind, request.ID, err)
		}
	}
	if err := storage.CreateRequest(ctx, event); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	t.Run("compare and set", func(t *testing.T) {
		updatedAt := testfixtures.ReferenceTime().Add(time.Hour)
		got, err := storage.UpdateRequestStatus(ctx, persistence.RequestStatusChange{
			Kind: "event", ID: "r1", ExpectedVersion: 1, Status: "APPROVED", AssigneeID: "owner", UpdatedAt: updatedAt,
		})
		if err != nil {
			t.Fatalf("UpdateRequestStatus returned error: %v", err)
		}
		if got.Version != 2 || got.Status != "APPROVED" || !got.UpdatedAt.Equal(updatedAt) {
			t.Fatalf("unexpected request after update: %+v", got)
		}

		_, err = storage.UpdateRequestStatus(ctx, persistence.RequestStatusChange{
			Kind: "event", ID: "r1", ExpectedVersion: 1, Status: "REJECTED",
		})
		if !errors.Is(err, persistence.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
		stored, err := storage.GetRequest(ctx, "event", "r1")
		if err != nil {
			t.Fatalf("GetRequest returned error: %v", err)
		}
		if stored.Status != "APPROVED" {
			t.Fatalf("conflicting update must not write, got %q", stored.Status)
		}

		untouched, err := storage.GetRequest(ctx, "absence", "r1")
		if err != nil {
			t.Fatalf("GetRequest returned error: %v", err)
		}
		if untouched.Status != "PENDING" {
			t.Fatalf("requests are keyed by kind, got %q", untouched.Status)
		}
	})

	t.Run("search", func(t *testing.T) {
		got, err := storage.SearchRequests(ctx, persistence.Query[persistence.Request]{
			persistence.Contains(persistence.RequestTitle, "demo"),
		})
		if err != nil {
			t.Fatalf("SearchRequests returned error: %v", err)
		}
		if len(got) != 1 || got[0].Kind != "event" {
			t.Fatalf("expected the event request, got %+v", got)
		}

		all, err := storage.SearchRequests(ctx, nil)
		if err != nil {
			t.Fatalf("SearchRequests returned error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected both requests, got %d", len(all))
		}
	})
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.New()
	seed(t, storage, newPersistenceUser(testfixtures.WithUserID("user")))

	session := testfixtures.NewSessionFixture(testfixtures.WithSessionToken("tok")).Persistence()
	if _, err := storage.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if _, err := storage.CreateSession(ctx, session); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := storage.CreateSession(ctx, testfixtures.NewSessionFixture(testfixtures.WithSessionUserID("ghost")).Persistence()); err == nil {
		t.Fatalf("expected error for unknown user")
	}

	revokedAt := testfixtures.ReferenceTime().Add(time.Minute)
	if _, err := storage.RevokeSession(ctx, "tok", revokedAt); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}
	got, err := storage.GetSession(ctx, "tok")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("expected revocation time, got %v", got.RevokedAt)
	}
	if _, err := storage.GetSession(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

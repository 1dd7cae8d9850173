package testfixtures

import (
	"context"
	"testing"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/scheduler"
)

func TestServiceFactoryNewServices(t *testing.T) {
	factory := NewServiceFactory()
	owner := NewUserFixture(WithUserID("owner"), WithUserRole(application.RoleMentor))
	requester := NewUserFixture(WithUserID("requester"))
	ports := NewPorts().AddUsers(owner, requester)
	ports.AddSeason(NewSeasonFixture(WithSeasonID("season"), WithSeasonOwner("owner"), WithSeasonInterns("requester")))
	ports.AddRequests(NewEventRequestFixture(WithRequestID("r1")))

	services := factory.NewServices(ports, scheduler.Config{})

	principal, err := services.Principals.Load(context.Background(), "owner")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	updated, err := services.Events.Transition(context.Background(), application.TransitionParams{
		Principal: principal,
		RequestID: "r1",
		Target:    "REJECTED",
	})
	if err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if updated.Status != "REJECTED" {
		t.Fatalf("expected REJECTED, got %q", updated.Status)
	}

	jobs, err := services.Scheduler.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Key != "email:id-1" {
		t.Fatalf("expected one deterministic email job, got %+v", jobs)
	}
	if !jobs[0].FireAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected fire time %v, got %v", factory.Clock.Current(), jobs[0].FireAt)
	}
}

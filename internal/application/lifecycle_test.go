package application

import (
	"errors"
	"testing"
	"time"
)

func TestNextEventRequestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		current      EventRequestStatus
		target       EventRequestStatus
		assignee     string
		newAssignee  string
		wantAssignee string
		wantErr      bool
	}{
		{name: "approve keeps assignee", current: EventRequestRequested, target: EventRequestApproved, assignee: "m1", wantAssignee: "m1"},
		{name: "approve with assignee", current: EventRequestRequested, target: EventRequestApproved, newAssignee: "m2", wantAssignee: "m2"},
		{name: "reject", current: EventRequestRequested, target: EventRequestRejected, assignee: "m1", wantAssignee: "m1"},
		{name: "schedule", current: EventRequestApproved, target: EventRequestScheduled, assignee: "m1", wantAssignee: "m1"},
		{name: "reassign", current: EventRequestApproved, target: EventRequestApproved, assignee: "m1", newAssignee: "m2", wantAssignee: "m2"},
		{name: "re-approve without assignee", current: EventRequestApproved, target: EventRequestApproved, assignee: "m1", wantErr: true},
		{name: "re-approve same assignee", current: EventRequestApproved, target: EventRequestApproved, assignee: "m1", newAssignee: "m1", wantErr: true},
		{name: "skip approval", current: EventRequestRequested, target: EventRequestScheduled, wantErr: true},
		{name: "back to requested", current: EventRequestApproved, target: EventRequestRequested, wantErr: true},
		{name: "rejected is terminal", current: EventRequestRejected, target: EventRequestApproved, wantErr: true},
		{name: "scheduled is terminal", current: EventRequestScheduled, target: EventRequestRejected, wantErr: true},
		{name: "assignee on reject", current: EventRequestRequested, target: EventRequestRejected, newAssignee: "m2", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NextEventRequestStatus(tt.current, tt.target, tt.assignee, tt.newAssignee)
			if tt.wantErr {
				var workflowErr *WorkflowError
				if !errors.As(err, &workflowErr) {
					t.Fatalf("expected workflow error, got %v", err)
				}
				if workflowErr.Current != string(tt.current) || workflowErr.Requested != string(tt.target) {
					t.Fatalf("workflow error carries wrong edge: %+v", workflowErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantAssignee {
				t.Fatalf("assignee = %q, want %q", got, tt.wantAssignee)
			}
		})
	}
}

func TestNextAbsenceStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		current AbsenceStatus
		target  AbsenceStatus
		start   time.Time
		wantErr bool
	}{
		{name: "approve in two days", current: AbsencePending, target: AbsenceApproved, start: now.Add(48 * time.Hour)},
		{name: "approve exactly one day ahead", current: AbsencePending, target: AbsenceApproved, start: now.Add(24 * time.Hour)},
		{name: "approve inside one day", current: AbsencePending, target: AbsenceApproved, start: now.Add(23 * time.Hour), wantErr: true},
		{name: "approve past absence", current: AbsencePending, target: AbsenceApproved, start: now.Add(-time.Hour), wantErr: true},
		{name: "reject inside one day", current: AbsencePending, target: AbsenceRejected, start: now.Add(time.Hour)},
		{name: "approved is terminal", current: AbsenceApproved, target: AbsenceRejected, start: now.Add(48 * time.Hour), wantErr: true},
		{name: "rejected is terminal", current: AbsenceRejected, target: AbsenceApproved, start: now.Add(48 * time.Hour), wantErr: true},
		{name: "pending to pending", current: AbsencePending, target: AbsencePending, start: now.Add(48 * time.Hour), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NextAbsenceStatus(tt.current, tt.target, tt.start, now)
			if tt.wantErr != (err != nil) {
				t.Fatalf("NextAbsenceStatus() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseStatuses(t *testing.T) {
	t.Parallel()

	if _, ok := ParseEventRequestStatus("SCHEDULED"); !ok {
		t.Fatalf("expected SCHEDULED to parse")
	}
	if _, ok := ParseEventRequestStatus("PENDING"); ok {
		t.Fatalf("PENDING is not an event request status")
	}
	if _, ok := ParseAbsenceStatus("PENDING"); !ok {
		t.Fatalf("expected PENDING to parse")
	}
	if _, ok := ParseAbsenceStatus("scheduled"); ok {
		t.Fatalf("statuses are case sensitive once normalised")
	}
}

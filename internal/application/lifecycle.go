package application

import "time"

// AbsenceApprovalLeadTime is the minimum distance between an approval
// decision and the start of the absence.
const AbsenceApprovalLeadTime = 24 * time.Hour

// ParseEventRequestStatus validates a caller supplied event request status.
func ParseEventRequestStatus(value string) (EventRequestStatus, bool) {
	switch status := EventRequestStatus(value); status {
	case EventRequestRequested, EventRequestApproved, EventRequestRejected, EventRequestScheduled:
		return status, true
	}
	return "", false
}

// ParseAbsenceStatus validates a caller supplied absence status.
func ParseAbsenceStatus(value string) (AbsenceStatus, bool) {
	switch status := AbsenceStatus(value); status {
	case AbsencePending, AbsenceApproved, AbsenceRejected:
		return status, true
	}
	return "", false
}

// NextEventRequestStatus validates the edge current -> target for an event
// request. newAssignee is the assignee proposed with the transition ("" when
// none). It returns the assignee the request carries afterwards.
//
//	REQUESTED -> APPROVED | REJECTED
//	APPROVED  -> SCHEDULED
//	APPROVED  -> APPROVED  (reassignment to a different assignee only)
func NextEventRequestStatus(current, target EventRequestStatus, currentAssignee, newAssignee string) (string, error) {
	if newAssignee != "" && target != EventRequestApproved {
		return "", newWorkflowError(string(current), string(target), "an assignee can only be set while approving")
	}

	switch {
	case current == EventRequestRequested && target == EventRequestApproved:
		if newAssignee == "" {
			return currentAssignee, nil
		}
		return newAssignee, nil
	case current == EventRequestRequested && target == EventRequestRejected:
		return currentAssignee, nil
	case current == EventRequestApproved && target == EventRequestScheduled:
		return currentAssignee, nil
	case current == EventRequestApproved && target == EventRequestApproved:
		if newAssignee == "" {
			return "", newWorkflowError(string(current), string(target), "request is already approved; reassignment requires a new assignee")
		}
		if newAssignee == currentAssignee {
			return "", newWorkflowError(string(current), string(target), "request is already approved and assigned to this mentor")
		}
		return newAssignee, nil
	}

	if current.Terminal() {
		return "", newWorkflowError(string(current), string(target), "request is in a terminal state")
	}
	return "", newWorkflowError(string(current), string(target), "")
}

// NextAbsenceStatus validates the edge current -> target for an absence
// request decided at now.
//
//	PENDING -> APPROVED (start at least one day after now)
//	PENDING -> REJECTED
func NextAbsenceStatus(current, target AbsenceStatus, start, now time.Time) error {
	if current.Terminal() {
		return newWorkflowError(string(current), string(target), "request is in a terminal state")
	}
	switch {
	case current == AbsencePending && target == AbsenceApproved:
		if start.Before(now.Add(AbsenceApprovalLeadTime)) {
			return newWorkflowError(string(current), string(target), "absence must start at least one day after approval")
		}
		return nil
	case current == AbsencePending && target == AbsenceRejected:
		return nil
	}
	return newWorkflowError(string(current), string(target), "")
}

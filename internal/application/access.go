package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Action names a protected operation evaluated by Authorize.
type Action string

const (
	ActionViewRequest                Action = "request.view"
	ActionChangeEventRequestStatus   Action = "event_request.change_status"
	ActionReassignEventRequest       Action = "event_request.reassign"
	ActionChangeAbsenceRequestStatus Action = "absence_request.change_status"
	ActionUpdateUser                 Action = "user.update"
	ActionDeleteUser                 Action = "user.delete"
	ActionViewJobs                   Action = "jobs.view"
)

// Target carries the fetched entity data an action is evaluated against.
type Target struct {
	Request        *RequestEntity
	ProposedStatus string
	User           *User
	Change         UserChange
}

// AccessControlResolver evaluates named policy predicates. Predicates never
// mutate state; the ones that need entity data fetch it through read-only
// collaborators.
type AccessControlResolver struct {
	requests RequestStore
}

// NewAccessControlResolver wires the collaborators used by fetching predicates.
func NewAccessControlResolver(requests RequestStore) *AccessControlResolver {
	return &AccessControlResolver{requests: requests}
}

// IsOwnerOfSeason reports whether the principal owns the season.
func (r *AccessControlResolver) IsOwnerOfSeason(p Principal, seasonID string) bool {
	return p.SeasonOwnerships.Has(seasonID)
}

// IsAssignedToSeason reports whether the principal mentors, interns in, or owns the season.
func (r *AccessControlResolver) IsAssignedToSeason(p Principal, season SeasonSummary) bool {
	assigned := season.MemberIDs()
	if season.OwnerID != "" {
		assigned[season.OwnerID] = struct{}{}
	}
	return assigned.Has(p.UserID)
}

// CanAccessRequest reports whether the principal owns or belongs to the request's season.
func (r *AccessControlResolver) CanAccessRequest(p Principal, request RequestEntity) bool {
	return r.IsOwnerOfSeason(p, request.SeasonID) || p.SeasonMemberships.Has(request.SeasonID)
}

// IsAllowedToChangeRequest reports whether the principal owns the season of the stored request.
func (r *AccessControlResolver) IsAllowedToChangeRequest(ctx context.Context, p Principal, kind RequestKind, requestID string) (bool, error) {
	if r == nil || r.requests == nil {
		return false, fmt.Errorf("request store not configured")
	}
	request, err := r.requests.FetchRequest(ctx, kind, requestID)
	if err != nil {
		return false, err
	}
	return r.IsOwnerOfSeason(p, request.SeasonID), nil
}

// IsAllowedToChangeAbsenceRequest is IsAllowedToChangeRequest for absence requests.
func (r *AccessControlResolver) IsAllowedToChangeAbsenceRequest(ctx context.Context, p Principal, requestID string) (bool, error) {
	return r.IsAllowedToChangeRequest(ctx, p, RequestKindAbsence, requestID)
}

// IsAssignedToRequest reports whether the principal may move the request to
// proposed. An approved request can never be approved again through this
// predicate, even by its assignee.
func (r *AccessControlResolver) IsAssignedToRequest(p Principal, request RequestEntity, proposed string) bool {
	if request.Status == string(EventRequestApproved) && proposed == string(EventRequestApproved) {
		return false
	}
	isAssignee := request.AssigneeID != "" && request.AssigneeID == p.UserID
	return isAssignee || r.IsOwnerOfSeason(p, request.SeasonID)
}

// IsAllowedToUpdateUser decides whether the principal may apply change to
// target. Role and technology edits are reserved to administrators and to the
// owners of one of the target's seasons. Edits that would break a protected
// invariant raise a *PolicyViolation instead of returning false.
func (r *AccessControlResolver) IsAllowedToUpdateUser(p Principal, target User, change UserChange) (bool, error) {
	resultingRole := target.Role
	roleChanging := change.Role != nil && *change.Role != target.Role
	if roleChanging {
		resultingRole = *change.Role
	}
	resultingTech := target.Technologies
	techChanging := change.Technologies != nil && !sameMembers(change.Technologies, target.Technologies)
	if techChanging {
		resultingTech = change.Technologies
	}

	if !roleChanging && !techChanging {
		return p.IsAdmin() || p.UserID == target.ID || r.ownsSeasonOf(p, target), nil
	}

	if !p.IsAdmin() && !r.ownsSeasonOf(p, target) {
		return false, nil
	}

	if roleChanging && !resultingRole.Valid() {
		return false, &PolicyViolation{Rule: "unknown_role", Detail: string(resultingRole)}
	}
	if target.DefaultAdmin && resultingRole != RoleAdmin {
		return false, &PolicyViolation{Rule: "default_admin_demotion", Detail: "the default administrator cannot be demoted"}
	}
	if resultingRole != RoleAdmin && len(resultingTech) == 0 {
		if target.Role == RoleAdmin {
			return false, &PolicyViolation{Rule: "demotion_without_technologies", Detail: "assign technologies before demoting an administrator"}
		}
		return false, &PolicyViolation{Rule: "empty_technologies", Detail: "non-admin users need at least one technology"}
	}

	return true, nil
}

// IsAllowedToDelete reports whether target may be removed at all. Deleting the
// default administrator is a policy violation.
func (r *AccessControlResolver) IsAllowedToDelete(target User) (bool, error) {
	if target.DefaultAdmin {
		return false, &PolicyViolation{Rule: "default_admin_deletion", Detail: "the default administrator cannot be deleted"}
	}
	return true, nil
}

// Authorize composes the predicates into the rule guarding action. A denial
// yields ErrUnauthorized; policy violations pass through unchanged.
func (r *AccessControlResolver) Authorize(ctx context.Context, p Principal, action Action, target Target) error {
	if !p.Active || p.UserID == "" {
		return ErrUnauthorized
	}

	var (
		allowed bool
		err     error
	)

	switch action {
	case ActionViewRequest:
		request, rerr := requireRequest(target)
		if rerr != nil {
			return rerr
		}
		allowed = p.IsAdmin() || request.RequesterID == p.UserID || r.CanAccessRequest(p, request)
	case ActionChangeEventRequestStatus:
		request, rerr := requireRequest(target)
		if rerr != nil {
			return rerr
		}
		allowed = r.IsAssignedToRequest(p, request, target.ProposedStatus)
		if p.IsAdmin() && !isReapproval(request, target.ProposedStatus) {
			allowed = true
		}
	case ActionReassignEventRequest:
		request, rerr := requireRequest(target)
		if rerr != nil {
			return rerr
		}
		allowed = p.IsAdmin() || r.IsOwnerOfSeason(p, request.SeasonID)
	case ActionChangeAbsenceRequestStatus:
		request, rerr := requireRequest(target)
		if rerr != nil {
			return rerr
		}
		allowed = p.IsAdmin()
		if !allowed {
			allowed, err = r.IsAllowedToChangeAbsenceRequest(ctx, p, request.ID)
		}
	case ActionUpdateUser:
		if target.User == nil {
			return fmt.Errorf("authorize %s: target user missing", action)
		}
		allowed, err = r.IsAllowedToUpdateUser(p, *target.User, target.Change)
	case ActionDeleteUser:
		if target.User == nil {
			return fmt.Errorf("authorize %s: target user missing", action)
		}
		allowed, err = r.IsAllowedToDelete(*target.User)
		allowed = allowed && p.IsAdmin()
	case ActionViewJobs:
		allowed = p.IsAdmin()
	default:
		return fmt.Errorf("authorize: unknown action %q", action)
	}

	if err != nil {
		var policyErr *PolicyViolation
		if errors.As(err, &policyErr) {
			return policyErr
		}
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}

func (r *AccessControlResolver) ownsSeasonOf(p Principal, target User) bool {
	for _, seasonID := range target.SeasonIDs {
		if r.IsOwnerOfSeason(p, seasonID) {
			return true
		}
	}
	return false
}

func requireRequest(target Target) (RequestEntity, error) {
	if target.Request == nil {
		return RequestEntity{}, fmt.Errorf("authorize: target request missing")
	}
	return *target.Request, nil
}

func isReapproval(request RequestEntity, proposed string) bool {
	return request.Status == string(EventRequestApproved) && proposed == string(EventRequestApproved)
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := slices.Clone(a)
	right := slices.Clone(b)
	slices.Sort(left)
	slices.Sort(right)
	return slices.Equal(left, right)
}

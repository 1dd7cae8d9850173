package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RequestFilter narrows a request search. Empty fields do not constrain.
type RequestFilter struct {
	Kind          RequestKind
	Statuses      []string
	SeasonIDs     []string
	RequesterID   string
	AssigneeID    string
	TitleContains string
}

// RequestQueryService lists the requests a principal is allowed to see.
type RequestQueryService struct {
	requests RequestSearcher
	access   *AccessControlResolver
	logger   *slog.Logger
}

// NewRequestQueryService wires the search backend and policy.
func NewRequestQueryService(requests RequestSearcher, access *AccessControlResolver, logger *slog.Logger) *RequestQueryService {
	return &RequestQueryService{requests: requests, access: access, logger: defaultLogger(logger)}
}

// Search returns the requests matching filter that p may view. Non-admins
// are restricted to seasons they own or belong to and to their own requests.
func (s *RequestQueryService) Search(ctx context.Context, p Principal, filter RequestFilter) ([]RequestEntity, error) {
	if s == nil || s.requests == nil || s.access == nil {
		return nil, fmt.Errorf("request query service not configured")
	}
	if !p.Active || p.UserID == "" {
		return nil, ErrUnauthorized
	}
	logger := serviceLogger(ctx, s.logger, "request_query", "search", "user_id", p.UserID)

	if filter.Kind != "" && filter.Kind != RequestKindEvent && filter.Kind != RequestKindAbsence {
		vErr := &ValidationError{}
		vErr.add("kind", "kind is unknown")
		return nil, vErr
	}
	for i, status := range filter.Statuses {
		filter.Statuses[i] = strings.ToUpper(strings.TrimSpace(status))
	}

	found, err := s.requests.SearchRequests(ctx, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]RequestEntity, 0, len(found))
	for _, request := range found {
		request := request
		if err := s.access.Authorize(ctx, p, ActionViewRequest, Target{Request: &request}); err != nil {
			continue
		}
		visible = append(visible, request)
	}
	logger.DebugContext(ctx, "requests searched", "matched", len(found), "visible", len(visible))
	return visible, nil
}

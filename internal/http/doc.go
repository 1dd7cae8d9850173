// Package http exposes the internship platform over a chi router.
//
// Every route except /healthz and /metrics requires a session token sent as
// "Authorization: Bearer <token>" or in the session_token cookie.
//
//   - POST /sessions, DELETE /sessions/current: issue and revoke API tokens.
//   - GET|POST /users, GET|PATCH|DELETE /users/{id}: user directory.
//   - GET|POST /seasons, GET|PUT /seasons/{id}: season management. Edits
//     announce new members and reschedule season reminders.
//   - GET /requests, POST /requests: request search and submission.
//   - POST /event-requests/{id}/status, POST /absence-requests/{id}/status:
//     guarded status transitions. Body: {"status","comment","assignee_id"}.
//   - GET /jobs, DELETE /jobs/{key}: scheduled job queue, administrators only.
//
// Errors are JSON {"error_code","message","rule","errors"}. Denials map to
// 403, illegal transitions and policy violations to 422, lost races to 409.
package http

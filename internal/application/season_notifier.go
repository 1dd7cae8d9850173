package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/internship-platform/internal/scheduler"
)

const (
	// ReminderLeadTime is how long before a season date its reminder fires.
	ReminderLeadTime = 14 * 24 * time.Hour
	// ReminderThreshold is how far out a season date must be for a reminder to be scheduled.
	ReminderThreshold = 13 * 24 * time.Hour

	// SeasonAssignedTemplate announces a new season membership.
	SeasonAssignedTemplate = "season-assigned"
)

const seasonDateLayout = "2006-01-02"

// JobScheduler schedules and cancels keyed jobs.
type JobScheduler interface {
	EmailScheduler
	Schedule(ctx context.Context, job scheduler.Job) error
	Cancel(ctx context.Context, key string) error
}

// SeasonLister lists every season.
type SeasonLister interface {
	ListSeasons(ctx context.Context) ([]SeasonSummary, error)
}

// SeasonLifecycleNotifier keeps membership notifications and season reminder
// jobs in line with season edits and with user changes that alter who is
// reminded. Reminder keys are derived from (recipient, kind, season) so
// repeated edits replace rather than duplicate.
type SeasonLifecycleNotifier struct {
	jobs    JobScheduler
	users   UserDirectory
	seasons SeasonLister
	now     func() time.Time
	logger  *slog.Logger
}

// NotifierOption configures a SeasonLifecycleNotifier.
type NotifierOption func(*SeasonLifecycleNotifier)

// WithSeasonLister gives the notifier the season list it needs to follow user
// deletions and administrator role changes.
func WithSeasonLister(seasons SeasonLister) NotifierOption {
	return func(n *SeasonLifecycleNotifier) {
		n.seasons = seasons
	}
}

// NewSeasonLifecycleNotifier wires the notifier.
func NewSeasonLifecycleNotifier(jobs JobScheduler, users UserDirectory, now func() time.Time, logger *slog.Logger, opts ...NotifierOption) *SeasonLifecycleNotifier {
	if now == nil {
		now = time.Now
	}
	n := &SeasonLifecycleNotifier{jobs: jobs, users: users, now: now, logger: defaultLogger(logger)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// OnUserDeleted cancels every reminder addressed to user. The store has
// already dropped the user from season staffing, so no season edit follows.
func (n *SeasonLifecycleNotifier) OnUserDeleted(ctx context.Context, user User) error {
	seasons, err := n.listSeasons(ctx)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}

	var errs []error
	for _, season := range seasons {
		for _, kind := range []scheduler.ReminderKind{scheduler.ReminderStartDate, scheduler.ReminderEndDate} {
			if err := n.jobs.Cancel(ctx, scheduler.ReminderKey(user.Email, kind, season.ID)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return n.report(ctx, "user_deleted", user.ID, errs)
}

// OnUserUpdated follows a change into or out of the administrator role:
// administrators get the start reminder of every season, other users only of
// the seasons they mentor.
func (n *SeasonLifecycleNotifier) OnUserUpdated(ctx context.Context, user, previous User) error {
	wasAdmin, isAdmin := previous.Role == RoleAdmin, user.Role == RoleAdmin
	if wasAdmin == isAdmin {
		return nil
	}
	seasons, err := n.listSeasons(ctx)
	if err != nil {
		return err
	}

	users := map[string]User{user.ID: user}
	recipients, dropped := NewIDSet(), NewIDSet()
	if isAdmin {
		recipients = NewIDSet(user.ID)
	} else {
		dropped = NewIDSet(user.ID)
	}

	now := n.now()
	var errs []error
	for _, season := range seasons {
		if season.MentorIDs.Has(user.ID) {
			continue
		}
		errs = append(errs, n.syncReminders(ctx, scheduler.ReminderStartDate, season, season.StartDate, now, users, recipients, dropped)...)
	}
	return n.report(ctx, "user_updated", user.ID, errs)
}

func (n *SeasonLifecycleNotifier) listSeasons(ctx context.Context) ([]SeasonSummary, error) {
	if n == nil || n.jobs == nil || n.seasons == nil {
		return nil, fmt.Errorf("season notifier not configured for user changes")
	}
	seasons, err := n.seasons.ListSeasons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	return seasons, nil
}

func (n *SeasonLifecycleNotifier) report(ctx context.Context, operation, userID string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	serviceLogger(ctx, n.logger, "season_notifier", operation, "user_id", userID).
		ErrorContext(ctx, "reminder updates degraded", "failures", len(errs), "error", joined)
	return joined
}

// OnSeasonCreated announces the initial members and schedules reminders.
func (n *SeasonLifecycleNotifier) OnSeasonCreated(ctx context.Context, season SeasonSummary) error {
	return n.apply(ctx, season, SeasonSummary{ID: season.ID}, true)
}

// OnSeasonUpdated reacts to the difference between previous and season.
// Failures are returned joined but never undo the season edit.
func (n *SeasonLifecycleNotifier) OnSeasonUpdated(ctx context.Context, season, previous SeasonSummary) error {
	return n.apply(ctx, season, previous, false)
}

func (n *SeasonLifecycleNotifier) apply(ctx context.Context, season, previous SeasonSummary, created bool) error {
	if n == nil || n.jobs == nil || n.users == nil {
		return fmt.Errorf("season notifier not configured")
	}
	logger := serviceLogger(ctx, n.logger, "season_notifier", "apply", "season_id", season.ID, "created", created)

	members := season.MemberIDs()
	previousMembers := previous.MemberIDs()
	addedMembers := members.Difference(previousMembers)
	removedMembers := previousMembers.Difference(members)
	addedMentors := season.MentorIDs.Difference(previous.MentorIDs)
	removedMentors := previous.MentorIDs.Difference(season.MentorIDs)

	involved := members.Union(removedMembers)
	users, err := n.users.FindUsersByIDs(ctx, involved.Sorted())
	if err != nil {
		return fmt.Errorf("resolve season members: %w", err)
	}
	admins, err := n.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("resolve administrators: %w", err)
	}
	byID := make(map[string]User, len(users)+len(admins))
	for _, u := range users {
		byID[u.ID] = u
	}
	adminIDs := NewIDSet()
	for _, u := range admins {
		byID[u.ID] = u
		adminIDs[u.ID] = struct{}{}
	}

	var errs []error

	for _, id := range addedMembers.Sorted() {
		if err := n.announceMembership(ctx, season, byID[id]); err != nil {
			errs = append(errs, err)
		}
	}

	now := n.now()
	nameChanged := season.Name != previous.Name

	startChanged := created || nameChanged || !season.StartDate.Equal(previous.StartDate)
	startRecipients := addedMentors
	if startChanged {
		startRecipients = season.MentorIDs.Union(adminIDs)
	}
	errs = append(errs, n.syncReminders(ctx, scheduler.ReminderStartDate, season, season.StartDate, now, byID, startRecipients, removedMentors.Difference(adminIDs))...)

	endChanged := created || nameChanged || !season.EndDate.Equal(previous.EndDate)
	endRecipients := addedMembers
	if endChanged {
		endRecipients = members
	}
	errs = append(errs, n.syncReminders(ctx, scheduler.ReminderEndDate, season, season.EndDate, now, byID, endRecipients, removedMembers)...)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		logger.ErrorContext(ctx, "season notifications degraded", "failures", len(errs), "error", joined)
		return joined
	}
	logger.DebugContext(ctx, "season notifications synchronised",
		"added_members", len(addedMembers), "removed_members", len(removedMembers))
	return nil
}

// syncReminders schedules kind reminders for recipients when date is beyond
// the threshold, cancels them otherwise, and always cancels for dropped.
func (n *SeasonLifecycleNotifier) syncReminders(ctx context.Context, kind scheduler.ReminderKind, season SeasonSummary, date, now time.Time, users map[string]User, recipients, dropped IDSet) []error {
	var errs []error
	schedule := date.After(now.Add(ReminderThreshold))

	for _, id := range recipients.Sorted() {
		user, ok := users[id]
		if !ok || user.Email == "" {
			continue
		}
		if !schedule {
			if err := n.jobs.Cancel(ctx, scheduler.ReminderKey(user.Email, kind, season.ID)); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		job, err := scheduler.NewReminderJob(scheduler.Reminder{
			Kind:           kind,
			SeasonID:       season.ID,
			SeasonName:     season.Name,
			RecipientEmail: user.Email,
			FullName:       user.FullName(),
			StartDate:      season.StartDate,
			EndDate:        season.EndDate,
			FireAt:         date.Add(-ReminderLeadTime),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := n.jobs.Schedule(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range dropped.Sorted() {
		user, ok := users[id]
		if !ok || user.Email == "" {
			continue
		}
		if err := n.jobs.Cancel(ctx, scheduler.ReminderKey(user.Email, kind, season.ID)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (n *SeasonLifecycleNotifier) announceMembership(ctx context.Context, season SeasonSummary, user User) error {
	if user.Email == "" {
		return nil
	}
	return n.jobs.ScheduleEmail(ctx, user.Email, fmt.Sprintf("You have been added to %s", season.Name), map[string]string{
		"template":   SeasonAssignedTemplate,
		"fullName":   user.FullName(),
		"seasonName": season.Name,
		"startDate":  season.StartDate.Format(seasonDateLayout),
		"endDate":    season.EndDate.Format(seasonDateLayout),
	})
}

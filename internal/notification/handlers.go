package notification

import (
	"context"
	"fmt"

	"github.com/example/internship-platform/internal/scheduler"
)

// EmailJobHandler delivers one-shot mail jobs.
type EmailJobHandler struct {
	dispatcher *Dispatcher
}

// NewEmailJobHandler returns the handler for scheduler.JobTypeEmail.
func NewEmailJobHandler(dispatcher *Dispatcher) *EmailJobHandler {
	return &EmailJobHandler{dispatcher: dispatcher}
}

// Handle implements scheduler.Handler.
func (h *EmailJobHandler) Handle(ctx context.Context, job scheduler.Job) error {
	content, err := scheduler.DecodeContent(job.Payload[scheduler.PayloadContent])
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Key, err)
	}
	return h.dispatcher.Send(ctx, job.Payload[scheduler.PayloadEmail], job.Payload[scheduler.PayloadSubject], content)
}

// ReminderJobHandler delivers season reminders. The reminder fields carried
// in the payload fill the template.
type ReminderJobHandler struct {
	dispatcher *Dispatcher
}

// NewReminderJobHandler returns the handler for scheduler.JobTypeReminder.
func NewReminderJobHandler(dispatcher *Dispatcher) *ReminderJobHandler {
	return &ReminderJobHandler{dispatcher: dispatcher}
}

// Handle implements scheduler.Handler.
func (h *ReminderJobHandler) Handle(ctx context.Context, job scheduler.Job) error {
	content, err := scheduler.DecodeContent(job.Payload[scheduler.PayloadContent])
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Key, err)
	}
	for _, key := range []string{
		scheduler.PayloadFullName,
		scheduler.PayloadSeasonName,
		scheduler.PayloadStartDate,
		scheduler.PayloadEndDate,
		scheduler.PayloadInformation,
	} {
		if _, ok := content[key]; !ok {
			content[key] = job.Payload[key]
		}
	}
	return h.dispatcher.Send(ctx, job.Payload[scheduler.PayloadEmail], job.Payload[scheduler.PayloadSubject], content)
}

// Register installs the mail and reminder handlers on s.
func Register(s *scheduler.Scheduler, dispatcher *Dispatcher) {
	s.Register(scheduler.JobTypeEmail, NewEmailJobHandler(dispatcher))
	s.Register(scheduler.JobTypeReminder, NewReminderJobHandler(dispatcher))
}

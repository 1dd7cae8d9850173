// Package notification renders and relays notification e-mails.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/internship-platform/internal/scheduler"
)

// Mail is a rendered message ready for the transport.
type Mail struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// MailSender relays rendered mail to an external transport.
type MailSender interface {
	Send(ctx context.Context, mail Mail) error
}

// DispatchError reports a failure to hand a notification to the transport.
// The scheduler's retry loop consumes it.
type DispatchError struct {
	Recipient string
	Err       error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("dispatch to %s: %v", e.Recipient, e.Err)
}

// Unwrap exposes the transport error.
func (e *DispatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BreakerConfig tunes the circuit breaker around the transport.
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Dispatcher renders content and relays it through a MailSender.
type Dispatcher struct {
	sender    MailSender
	templates *Templates
	breaker   *gobreaker.CircuitBreaker[struct{}]
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher wires the transport, templates and breaker.
func NewDispatcher(sender MailSender, templates *Templates, breaker BreakerConfig, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sender:    sender,
		templates: templates,
		now:       now,
		logger:    logger.With("component", "notification_dispatcher"),
	}
	if breaker.Enabled {
		d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "mail-transport",
			MaxRequests: breaker.MaxRequests,
			Interval:    breaker.Interval,
			Timeout:     breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breaker.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				d.logger.Info("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	return d
}

// Send renders content (a literal "message" or a named "template") and relays
// it to recipient. Transport failures are returned as *DispatchError.
func (d *Dispatcher) Send(ctx context.Context, recipient, subject string, content map[string]string) error {
	if d == nil || d.sender == nil {
		return fmt.Errorf("notification dispatcher not configured")
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("notification recipient is required")
	}
	if err := scheduler.ValidateContent(content); err != nil {
		return err
	}

	body, err := d.render(content)
	if err != nil {
		reason := "execute"
		if errors.Is(err, ErrUnknownTemplate) {
			reason = "unknown_template"
		}
		renderFailures.WithLabelValues(reason).Inc()
		d.logger.ErrorContext(ctx, "notification body could not be rendered", "recipient", recipient, "reason", reason, "error", err)
		return err
	}

	mail := Mail{To: recipient, Subject: subject, Body: body, SentAt: d.now()}
	send := func() (struct{}, error) {
		return struct{}{}, d.sender.Send(ctx, mail)
	}

	if d.breaker != nil {
		_, err = d.breaker.Execute(send)
	} else {
		_, err = send()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			d.logger.WarnContext(ctx, "mail transport unavailable", "recipient", recipient, "error", err)
		}
		notificationsSent.WithLabelValues("failure").Inc()
		return &DispatchError{Recipient: recipient, Err: err}
	}

	notificationsSent.WithLabelValues("success").Inc()
	d.logger.DebugContext(ctx, "notification sent", "recipient", recipient, "subject", subject)
	return nil
}

func (d *Dispatcher) render(content map[string]string) (string, error) {
	if msg := strings.TrimSpace(content[scheduler.ContentMessage]); msg != "" {
		return content[scheduler.ContentMessage], nil
	}
	return d.templates.Render(content[scheduler.ContentTemplate], content)
}

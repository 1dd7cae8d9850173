package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payload keys shared by mail and reminder jobs.
const (
	PayloadEmail         = "email"
	PayloadSubject       = "subject"
	PayloadContent       = "content"
	PayloadUniqueJobName = "uniqueJobName"
	PayloadFallback      = "fallback"

	PayloadFullName    = "fullName"
	PayloadSeasonName  = "seasonName"
	PayloadStartDate   = "startDate"
	PayloadEndDate     = "endDate"
	PayloadInformation = "information"
)

// Content keys understood by the notification dispatcher.
const (
	ContentMessage  = "message"
	ContentTemplate = "template"
)

// dateLayout formats season dates carried in reminder payloads.
const dateLayout = "2006-01-02"

// ValidateContent requires either a literal message or a template name.
func ValidateContent(content map[string]string) error {
	if strings.TrimSpace(content[ContentMessage]) == "" && strings.TrimSpace(content[ContentTemplate]) == "" {
		return ErrInvalidContent
	}
	return nil
}

// EncodeContent serialises nested content into a single payload value.
func EncodeContent(content map[string]string) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(raw), nil
}

// DecodeContent reverses EncodeContent.
func DecodeContent(raw string) (map[string]string, error) {
	content := make(map[string]string)
	if raw == "" {
		return content, nil
	}
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return content, nil
}

// NewEmailJob builds a one-shot mail job.
func NewEmailJob(key, recipient, subject string, content map[string]string, fireAt time.Time) (Job, error) {
	if strings.TrimSpace(recipient) == "" {
		return Job{}, fmt.Errorf("scheduler: recipient is required")
	}
	if err := ValidateContent(content); err != nil {
		return Job{}, err
	}
	encoded, err := EncodeContent(content)
	if err != nil {
		return Job{}, err
	}
	return Job{
		Key:  key,
		Type: JobTypeEmail,
		Payload: map[string]string{
			PayloadEmail:         recipient,
			PayloadSubject:       subject,
			PayloadContent:       encoded,
			PayloadUniqueJobName: key,
		},
		FireAt: fireAt,
	}, nil
}

// Reminder describes a season reminder addressed to one recipient.
type Reminder struct {
	Kind           ReminderKind
	SeasonID       string
	SeasonName     string
	RecipientEmail string
	FullName       string
	StartDate      time.Time
	EndDate        time.Time
	Information    string
	FireAt         time.Time
}

// Key returns the deterministic key of the reminder.
func (r Reminder) Key() string {
	return ReminderKey(r.RecipientEmail, r.Kind, r.SeasonID)
}

// NewReminderJob builds the keyed job for a reminder.
func NewReminderJob(r Reminder) (Job, error) {
	if strings.TrimSpace(r.RecipientEmail) == "" || r.SeasonID == "" {
		return Job{}, fmt.Errorf("scheduler: reminder requires a recipient and a season")
	}
	key := r.Key()
	content := map[string]string{ContentTemplate: "season-" + string(r.Kind) + "-reminder"}
	encoded, err := EncodeContent(content)
	if err != nil {
		return Job{}, err
	}

	subject := fmt.Sprintf("Season %s starts soon", r.SeasonName)
	if r.Kind == ReminderEndDate {
		subject = fmt.Sprintf("Season %s ends soon", r.SeasonName)
	}

	return Job{
		Key:  key,
		Type: JobTypeReminder,
		Payload: map[string]string{
			PayloadEmail:         r.RecipientEmail,
			PayloadSubject:       subject,
			PayloadContent:       encoded,
			PayloadUniqueJobName: key,
			PayloadFullName:      r.FullName,
			PayloadSeasonName:    r.SeasonName,
			PayloadStartDate:     r.StartDate.Format(dateLayout),
			PayloadEndDate:       r.EndDate.Format(dateLayout),
			PayloadInformation:   r.Information,
		},
		FireAt: r.FireAt,
	}, nil
}

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/internship-platform/internal/scheduler"
)

func TestEmailJobHandler(t *testing.T) {
	sender := &fakeSender{}
	handler := NewEmailJobHandler(NewDispatcher(sender, nil, BreakerConfig{}, fixedNow, quietLogger()))

	job, err := scheduler.NewEmailJob("email:1", "a@example.com", "Subject", map[string]string{
		scheduler.ContentTemplate: "season-assigned",
		"fullName":                "Ada",
		"seasonName":              "Summer",
	}, fixedNow())
	require.NoError(t, err)

	require.NoError(t, handler.Handle(context.Background(), job))
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Subject", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Summer")

	job.Payload[scheduler.PayloadContent] = "{not json"
	assert.Error(t, handler.Handle(context.Background(), job))
}

func TestReminderJobHandlerFillsTemplateFromPayload(t *testing.T) {
	sender := &fakeSender{}
	handler := NewReminderJobHandler(NewDispatcher(sender, nil, BreakerConfig{}, fixedNow, quietLogger()))

	job, err := scheduler.NewReminderJob(scheduler.Reminder{
		Kind:           scheduler.ReminderStartDate,
		SeasonID:       "s1",
		SeasonName:     "Summer",
		RecipientEmail: "mentor@example.com",
		FullName:       "Grace Hopper",
		StartDate:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		FireAt:         fixedNow(),
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(context.Background(), job))
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "mentor@example.com", sent[0].To)
	assert.Equal(t, "Season Summer starts soon", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Hello Grace Hopper,")
	assert.Contains(t, sent[0].Body, "starts on 2024-06-01")
}

func TestRegisterWiresSchedulerHandlers(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}
	store := scheduler.NewMemoryStore(fixedNow)
	s := scheduler.New(store, scheduler.Config{MaxRetries: 1, FallbackRecipient: "admin@example.com"}, nil, fixedNow, quietLogger())
	Register(s, NewDispatcher(sender, nil, BreakerConfig{}, fixedNow, quietLogger()))

	require.NoError(t, s.ScheduleEmail(context.Background(), "a@example.com", "s", map[string]string{scheduler.ContentMessage: "x"}))

	for i := 0; i < 5; i++ {
		if _, err := s.RunDue(context.Background()); err != nil {
			t.Fatalf("RunDue returned error: %v", err)
		}
	}
	assert.Zero(t, store.Len(), "original and fallback both exhausted")

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	require.NoError(t, s.ScheduleEmail(context.Background(), "a@example.com", "s", map[string]string{scheduler.ContentMessage: "x"}))
	n, err := s.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sender.Sent(), 1)
}

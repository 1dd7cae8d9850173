package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/internship-platform/internal/scheduler"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (s *fakeSender) Send(ctx context.Context, mail Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, mail)
	return nil
}

func (s *fakeSender) Sent() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherSendsLiteralMessage(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, BreakerConfig{}, fixedNow, quietLogger())

	err := d.Send(context.Background(), "a@example.com", "Hello", map[string]string{scheduler.ContentMessage: "plain body"})
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, Mail{To: "a@example.com", Subject: "Hello", Body: "plain body", SentAt: fixedNow()}, sent[0])
}

func TestDispatcherRendersTemplate(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, DefaultTemplates(), BreakerConfig{}, fixedNow, quietLogger())

	err := d.Send(context.Background(), "a@example.com", "Status", map[string]string{
		scheduler.ContentTemplate: "request-status",
		"fullName":                "Ada Lovelace",
		"kind":                    "event",
		"title":                   "Demo day",
		"status":                  "APPROVED",
		"comment":                 "well done",
	})
	require.NoError(t, err)

	body := sender.Sent()[0].Body
	assert.Contains(t, body, "Hello Ada Lovelace")
	assert.Contains(t, body, `your event request "Demo day" is now APPROVED.`)
	assert.Contains(t, body, "Comment: well done")
}

func TestDispatcherRejectsInvalidInput(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, BreakerConfig{}, fixedNow, quietLogger())
	ctx := context.Background()

	assert.ErrorIs(t, d.Send(ctx, "a@example.com", "s", map[string]string{}), scheduler.ErrInvalidContent)
	assert.Error(t, d.Send(ctx, " ", "s", map[string]string{scheduler.ContentMessage: "x"}))
	assert.ErrorIs(t, d.Send(ctx, "a@example.com", "s", map[string]string{scheduler.ContentTemplate: "nope"}), ErrUnknownTemplate)
	assert.Empty(t, sender.Sent())

	var nilDispatcher *Dispatcher
	assert.Error(t, nilDispatcher.Send(ctx, "a@example.com", "s", map[string]string{scheduler.ContentMessage: "x"}))
}

func TestDispatcherCountsRenderFailures(t *testing.T) {
	sender := &fakeSender{}
	templates := NewTemplates()
	require.NoError(t, templates.Register("strict", `Hello {{template "signature" .}}`))
	d := NewDispatcher(sender, templates, BreakerConfig{}, fixedNow, quietLogger())
	ctx := context.Background()

	unknown := testutil.ToFloat64(renderFailures.WithLabelValues("unknown_template"))
	execute := testutil.ToFloat64(renderFailures.WithLabelValues("execute"))

	assert.ErrorIs(t, d.Send(ctx, "a@example.com", "s", map[string]string{scheduler.ContentTemplate: "nope"}), ErrUnknownTemplate)
	assert.Error(t, d.Send(ctx, "a@example.com", "s", map[string]string{scheduler.ContentTemplate: "strict", "fullName": "Ada"}))

	assert.Equal(t, unknown+1, testutil.ToFloat64(renderFailures.WithLabelValues("unknown_template")))
	assert.Equal(t, execute+1, testutil.ToFloat64(renderFailures.WithLabelValues("execute")))
	assert.Empty(t, sender.Sent())
}

func TestDispatcherWrapsTransportFailure(t *testing.T) {
	transportErr := errors.New("connection refused")
	d := NewDispatcher(&fakeSender{err: transportErr}, nil, BreakerConfig{}, fixedNow, quietLogger())

	err := d.Send(context.Background(), "a@example.com", "s", map[string]string{scheduler.ContentMessage: "x"})

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "a@example.com", dispatchErr.Recipient)
	assert.ErrorIs(t, err, transportErr)
}

func TestDispatcherCircuitBreakerOpens(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}
	d := NewDispatcher(sender, nil, BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Hour,
		FailureThreshold: 2,
	}, fixedNow, quietLogger())
	ctx := context.Background()
	content := map[string]string{scheduler.ContentMessage: "x"}

	for i := 0; i < 2; i++ {
		err := d.Send(ctx, "a@example.com", "s", content)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	err := d.Send(ctx, "a@example.com", "s", content)
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Empty(t, sender.Sent(), "open breaker must not reach the transport")
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, uint32(5), cfg.FailureThreshold)
}

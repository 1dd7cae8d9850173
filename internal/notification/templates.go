package notification

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"text/template"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "internship_notifications_sent_total",
	Help: "Notification relay attempts by outcome",
}, []string{"outcome"}) // outcome=success|failure

var renderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "internship_notification_render_failures_total",
	Help: "Notifications dropped before relay because their body could not be rendered",
}, []string{"reason"}) // reason=unknown_template|execute

// ErrUnknownTemplate is returned when content names a template that is not registered.
var ErrUnknownTemplate = errors.New("notification: unknown template")

var builtinTemplates = map[string]string{
	"request-status": `Hello {{.fullName}},

your {{.kind}} request{{with .title}} "{{.}}"{{end}} is now {{.status}}.
{{- with .comment}}

Comment: {{.}}{{end}}
`,
	"request-submitted": `Hello {{.fullName}},

{{.requesterName}} submitted a new {{.kind}} request{{with .title}} "{{.}}"{{end}} in {{.seasonName}}.
`,
	"season-assigned": `Hello {{.fullName}},

you have been added to the season {{.seasonName}} ({{.startDate}} - {{.endDate}}).
`,
	"season-startDate-reminder": `Hello {{.fullName}},

the season {{.seasonName}} starts on {{.startDate}}.
{{- with .information}}

{{.}}{{end}}
`,
	"season-endDate-reminder": `Hello {{.fullName}},

the season {{.seasonName}} ends on {{.endDate}}.
{{- with .information}}

{{.}}{{end}}
`,
}

// Templates is a registry of named message templates.
type Templates struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewTemplates returns an empty registry.
func NewTemplates() *Templates {
	return &Templates{templates: make(map[string]*template.Template)}
}

// DefaultTemplates returns a registry holding the built-in templates.
func DefaultTemplates() *Templates {
	t := NewTemplates()
	for name, text := range builtinTemplates {
		if err := t.Register(name, text); err != nil {
			panic(fmt.Sprintf("builtin template %s: %v", name, err))
		}
	}
	return t
}

// Register parses text and stores it under name.
func (t *Templates) Register(name, text string) error {
	parsed, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	t.mu.Lock()
	t.templates[name] = parsed
	t.mu.Unlock()
	return nil
}

// Render fills the template name from data.
func (t *Templates) Render(name string, data map[string]string) (string, error) {
	t.mu.RLock()
	tmpl, ok := t.templates[name]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Package notification delivers operational alerts (abnormal vitals, stock
// running low, ward admissions) by email and over a pub/sub channel, and
// keeps a bounded in-memory history for the admin API.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Kinds and templates
// ---------------------------------------------------------------------------

const (
	KindVitalAlert    = "vitals.alert"
	KindLowStock      = "inventory.low_stock"
	KindWardAdmission = "ward.admission"
)

// Template is the subject/body pair rendered for one notification kind.
type Template struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			Kind:    KindVitalAlert,
			Subject: "Abnormal {{type}} for patient {{patient_id}}",
			Body:    "Reading {{value}} {{unit}} is outside the normal range {{min}}-{{max}} (device {{device_id}}, {{timestamp}}).",
		},
		{
			Kind:    KindLowStock,
			Subject: "Stock alert: {{name}} is {{status}}",
			Body:    "{{name}} has {{quantity}} units left (reorder level {{reorder_level}}).",
		},
		{
			Kind:    KindWardAdmission,
			Subject: "Patient {{patient_id}} admitted to ward {{ward_number}}",
			Body:    "Bed {{bed}} assigned with compatibility score {{score}}. Expected discharge {{expected_discharge}}.",
		},
	} {
		t := t
		e.templates[t.Kind] = &t
	}
	return e
}

// Register adds or replaces the template for t.Kind.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Kind] = &t
}

// Render fills the template for kind. Placeholders without data stay as-is.
func (e *TemplateEngine) Render(kind string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[kind]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", kind)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Delivery channels
// ---------------------------------------------------------------------------

// EmailSender sends a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Publisher fans a JSON payload out on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Notification is one delivered (or failed) alert.
type Notification struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient,omitempty"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const historySize = 200

// Manager renders, delivers and records notifications. Either channel may
// be nil; with neither configured alerts are only logged.
type Manager struct {
	email     EmailSender
	recipient string
	publisher Publisher
	templates *TemplateEngine
	logger    zerolog.Logger

	mu      sync.RWMutex
	history []*Notification
}

func NewManager(email EmailSender, recipient string, publisher Publisher, logger zerolog.Logger) *Manager {
	return &Manager{
		email:     email,
		recipient: recipient,
		publisher: publisher,
		templates: NewTemplateEngine(),
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// Notify renders the template for kind, publishes payload on the kind's
// channel and emails the alert recipient. Delivery failures are joined and
// returned; the notification is recorded either way.
func (m *Manager) Notify(ctx context.Context, kind string, data map[string]string, payload interface{}) error {
	subject, body, err := m.templates.Render(kind, data)
	if err != nil {
		return err
	}

	n := &Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Recipient: m.recipient,
		Subject:   subject,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	var errs []error
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, kind, payload); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if m.email != nil && m.recipient != "" {
		if err := m.email.SendEmail(ctx, m.recipient, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	sendErr := errors.Join(errs...)
	n.Status = "sent"
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	}
	m.record(n)

	evt := m.logger.Info()
	if sendErr != nil {
		evt = m.logger.Warn().Err(sendErr)
	}
	evt.Str("kind", kind).Str("subject", subject).Msg("notification")

	return sendErr
}

func (m *Manager) record(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, n)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// Recent returns up to limit notifications, newest first, optionally
// filtered by kind.
func (m *Manager) Recent(kind string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Notification, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && m.history[i].Kind != kind {
			continue
		}
		out = append(out, m.history[i])
	}
	return out
}

// Stats counts recorded notifications by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range m.history {
		stats[n.Status]++
	}
	return stats
}

// Package notification provides alert delivery to external channels
// (Telegram, webhooks, WebSocket clients, the log) for gear firings.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spreadwatch/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`

	// Event is the firing behind the alert, when there is one.
	Event *model.AlertEvent `json:"event,omitempty"`
}

// Text is the plain-text rendering used by transports without formatting.
func (a Alert) Text() string {
	if a.Title == "" {
		return a.Message
	}
	return a.Title + "\n" + a.Message
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	// Callers treat failures as non-fatal; retries belong to the backend.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log (useful for development).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.Info("alert",
		slog.String("alert_level", string(alert.Level)),
		slog.String("text", alert.Text()))
	return nil
}

// Multi fans an alert out to every backend. Every backend is attempted; the
// failures are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for i, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d (%T): %w", i, n, err))
		}
	}
	return errors.Join(errs...)
}

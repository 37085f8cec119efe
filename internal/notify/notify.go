// Package notify delivers best-effort notifications: desktop toasts via the
// system notification daemon, and optionally email. Delivery failures are
// reported to callers for logging but must never abort a poll cycle.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier shows a notification.
type Notifier interface {
	Show(title, body string) error
}

// Desktop sends notifications through the OS notification daemon.
type Desktop struct {
	logger *slog.Logger
}

// NewDesktop creates a desktop notifier.
func NewDesktop(logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{logger: logger}
}

// Show displays a desktop notification.
func (d *Desktop) Show(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Noop discards notifications. Used in tests and when notifications are
// disabled.
type Noop struct{}

// Show does nothing.
func (Noop) Show(title, body string) error { return nil }

// Multi fans a notification out to several sinks. The first error is
// returned after all sinks were attempted.
type Multi []Notifier

// Show delivers to every sink.
func (m Multi) Show(title, body string) error {
	var first error
	for _, n := range m {
		if err := n.Show(title, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Email adapts an SMTPMailer to the Notifier interface.
type Email struct {
	mailer *SMTPMailer
}

// NewEmail creates an email notifier.
func NewEmail(mailer *SMTPMailer) *Email {
	return &Email{mailer: mailer}
}

// Show sends the notification as an email.
func (e *Email) Show(title, body string) error {
	return e.mailer.Send(title, body)
}

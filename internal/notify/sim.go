package notify

import (
	"context"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/go-core/log"
)

// Simulated channels. Real SMS/email/siren integrations slot in behind the
// same Channel interface; until then dispatch is a structured log line.

// SMS simulates text messages to the emergency contact list.
type SMS struct {
	logger log.Logger
}

// NewSMS creates the simulated SMS channel.
func NewSMS(logger log.Logger) *SMS {
	if logger == nil {
		logger = log.Nop()
	}
	return &SMS{logger: logger}
}

func (s *SMS) Name() string   { return "sms" }
func (s *SMS) Action() string { return "SMS Sent to Emergency Contacts" }

func (s *SMS) Send(ctx context.Context, a *alert.Alert) error {
	s.logger.Info(ctx, "sms simulation", "to", "emergency-contacts", "message", Message(a))
	return nil
}

// Email simulates mail to the site administrator.
type Email struct {
	logger log.Logger
}

// NewEmail creates the simulated email channel.
func NewEmail(logger log.Logger) *Email {
	if logger == nil {
		logger = log.Nop()
	}
	return &Email{logger: logger}
}

func (e *Email) Name() string   { return "email" }
func (e *Email) Action() string { return "Email Sent to Admin" }

func (e *Email) Send(ctx context.Context, a *alert.Alert) error {
	e.logger.Info(ctx, "email simulation", "to", "admin", "message", Message(a))
	return nil
}

// Siren simulates triggering the on-site audio alarm.
type Siren struct {
	logger log.Logger
}

// NewSiren creates the simulated siren channel.
func NewSiren(logger log.Logger) *Siren {
	if logger == nil {
		logger = log.Nop()
	}
	return &Siren{logger: logger}
}

func (s *Siren) Name() string   { return "siren" }
func (s *Siren) Action() string { return "On-site Siren Triggered" }

func (s *Siren) Send(ctx context.Context, a *alert.Alert) error {
	s.logger.Info(ctx, "siren simulation", "location", a.Location)
	return nil
}

// Package notify implements severity-based notification fan-out. Channels
// are fire-and-forget: a channel failure is logged and counted but never
// affects the alert mutation that triggered it.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/firewatch/internal/alert"
)

// Channel is one notification target.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Action is the human-readable action string recorded on dispatch.
	Action() string

	// Send delivers the notification.
	Send(ctx context.Context, a *alert.Alert) error
}

// Message renders the notification body for an alert.
func Message(a *alert.Alert) string {
	return fmt.Sprintf("ALERT: %s severity %s detected at %s.",
		strings.ToUpper(string(a.Severity)), a.Type, a.Location)
}

func severityRank(s alert.Severity) int {
	switch s {
	case alert.SeverityHigh:
		return 2
	case alert.SeverityMedium:
		return 1
	default:
		return 0
	}
}

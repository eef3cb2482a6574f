package alert

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the coarse urgency tier derived from the detection label.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// SeverityForLabel maps a detection class label to its severity tier.
func SeverityForLabel(label string) Severity {
	switch strings.ToLower(label) {
	case "fire":
		return SeverityHigh
	case "smoke":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Worthy decides whether a detection produces an alert at all: medium and
// high severities always do, low only above the confidence threshold.
func Worthy(sev Severity, confidence, threshold float64) bool {
	if sev == SeverityHigh || sev == SeverityMedium {
		return true
	}
	return confidence >= threshold
}

// Alert is one actionable detection event and its lifecycle state.
type Alert struct {
	ID               int64      `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	Severity         Severity   `json:"severity"`
	Location         string     `json:"location"`
	Message          string     `json:"message"`
	Type             string     `json:"type"`
	Confidence       float64    `json:"confidence"`
	Acknowledged     bool       `json:"acknowledged"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	NotificationSent bool       `json:"notification_sent"`
}

// Status is derived, never stored: resolved wins over acknowledged.
func (a *Alert) Status() string {
	switch {
	case a.ResolvedAt != nil:
		return "resolved"
	case a.Acknowledged:
		return "acknowledged"
	default:
		return "active"
	}
}

// View is the wire shape of an Alert. It carries the computed status, the
// description alias kept for older dashboard clients, and a human-readable
// duration.
type View struct {
	ID               int64      `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	Severity         Severity   `json:"severity"`
	Location         string     `json:"location"`
	Message          string     `json:"message"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Type             string     `json:"type"`
	Confidence       float64    `json:"confidence"`
	Acknowledged     bool       `json:"acknowledged"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	NotificationSent bool       `json:"notification_sent"`
	Duration         string     `json:"duration"`
}

// ToView projects an Alert into its wire shape. Pure; the domain type never
// carries the computed aliases.
func ToView(a *Alert, now time.Time) View {
	return View{
		ID:               a.ID,
		Timestamp:        a.Timestamp,
		Severity:         a.Severity,
		Location:         a.Location,
		Message:          a.Message,
		Description:      a.Message,
		Status:           a.Status(),
		Type:             a.Type,
		Confidence:       a.Confidence,
		Acknowledged:     a.Acknowledged,
		AcknowledgedAt:   a.AcknowledgedAt,
		ResolvedAt:       a.ResolvedAt,
		NotificationSent: a.NotificationSent,
		Duration:         formatDuration(a, now),
	}
}

// formatDuration renders time from creation to resolution (or now) the way
// the dashboard expects: "2h 5m", "3m 12s", "45s".
func formatDuration(a *Alert, now time.Time) string {
	end := now
	if a.ResolvedAt != nil {
		end = *a.ResolvedAt
	}
	total := int(end.Sub(a.Timestamp).Seconds())
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Draft carries the caller-supplied fields for a new alert. The store fills
// in identity and timestamps.
type Draft struct {
	Severity   Severity `json:"severity"`
	Location   string   `json:"location"`
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`

	// NotificationSent is decided by the service's fan-out policy, never by
	// the caller.
	NotificationSent bool `json:"-"`
}

// Normalize fills defaults and validates required fields.
func (d *Draft) Normalize() error {
	if d.Message == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}
	if d.Location == "" {
		d.Location = "Unknown"
	}
	if d.Type == "" {
		d.Type = "unknown"
	}
	if d.Severity == "" {
		d.Severity = SeverityLow
	}
	if !d.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown tier %q", d.Severity)}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}
	return nil
}

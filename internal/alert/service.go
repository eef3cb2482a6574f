package alert

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
)

// Notifier dispatches notification channels for an alert. Implemented by
// notify.Fanout; faked in tests.
type Notifier interface {
	// WillNotify reports whether the severity policy selects any
	// non-dashboard channel.
	WillNotify(sev Severity) bool

	// Dispatch fires the selected channels and returns the action strings.
	// Channel failures are logged by the implementation, never returned.
	Dispatch(ctx context.Context, a *Alert) []string
}

// Publisher pushes lifecycle events to dashboard subscribers. Implemented by
// realtime.Broadcaster.
type Publisher interface {
	AlertCreated(a *Alert)
	AlertUpdated(a *Alert)
	AlertsCleared()
}

// Service is the business boundary for alert operations. It owns the
// mutation-to-side-effect ordering: store write first, then fan-out, then
// broadcast. Side effects never roll back a committed write.
type Service struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	metrics   *Metrics
	logger    log.Logger
}

// NewService creates the alert service. notifier, publisher and metrics may
// be nil (disabled).
func NewService(store Store, notifier Notifier, publisher Publisher, metrics *Metrics, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create validates the draft, persists the alert and fans out notifications.
// notification_sent is decided by policy at creation time: it is true iff
// the severity selects any non-dashboard channel.
func (s *Service) Create(ctx context.Context, d Draft) (*Alert, []string, error) {
	if err := d.Normalize(); err != nil {
		return nil, nil, err
	}

	if s.notifier != nil {
		d.NotificationSent = s.notifier.WillNotify(d.Severity)
	}

	a, err := s.store.Create(ctx, d)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.AlertsTotal.WithLabelValues(string(a.Severity), a.Type).Inc()
	}

	actions := []string{"Web Dashboard Updated"}
	if s.notifier != nil {
		actions = append(actions, s.notifier.Dispatch(ctx, a)...)
	}

	if s.publisher != nil {
		s.publisher.AlertCreated(a)
	}

	s.logger.Info(ctx, "alert created",
		"id", a.ID,
		"severity", a.Severity,
		"type", a.Type,
		"location", a.Location,
		"confidence", a.Confidence,
		"notification_sent", a.NotificationSent,
	)
	return a, actions, nil
}

// Acknowledge transitions an active alert to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id int64) (*Alert, error) {
	a, err := s.store.Acknowledge(ctx, id)
	s.observeTransition("acknowledge", err)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.AlertUpdated(a)
	}
	s.logger.Info(ctx, "alert acknowledged", "id", a.ID)
	return a, nil
}

// Resolve transitions an alert to its terminal resolved state, acknowledging
// it first if needed.
func (s *Service) Resolve(ctx context.Context, id int64) (*Alert, error) {
	a, err := s.store.Resolve(ctx, id)
	s.observeTransition("resolve", err)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.AlertUpdated(a)
	}
	s.logger.Info(ctx, "alert resolved", "id", a.ID)
	return a, nil
}

// List returns a newest-first snapshot of all alerts.
func (s *Service) List(ctx context.Context) ([]Alert, error) {
	return s.store.List(ctx)
}

// Get returns one alert or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Alert, error) {
	return s.store.Get(ctx, id)
}

// Clear empties the store and tells subscribers to drop their state.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.AlertsCleared()
	}
	s.logger.Info(ctx, "alert store cleared")
	return nil
}

func (s *Service) observeTransition(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case IsInvalidTransition(err):
		outcome = "invalid_transition"
	case err != nil:
		outcome = "error"
	}
	s.metrics.TransitionsTotal.WithLabelValues(op, outcome).Inc()
}

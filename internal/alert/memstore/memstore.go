// Package memstore provides an in-memory implementation of alert.Store.
// It is the ephemeral primary-path backing: state is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/firewatch/internal/alert"
)

// Store holds alerts in memory, newest first. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	alerts []*alert.Alert // index 0 is the most recent
	byID   map[int64]*alert.Alert
	nextID int64
	now    func() time.Time
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		byID:   make(map[int64]*alert.Alert),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Test use only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create assigns the next id and creation time and inserts at the head.
func (s *Store) Create(_ context.Context, d alert.Draft) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &alert.Alert{
		ID:               s.nextID,
		Timestamp:        s.now(),
		Severity:         d.Severity,
		Location:         d.Location,
		Message:          d.Message,
		Type:             d.Type,
		Confidence:       d.Confidence,
		NotificationSent: d.NotificationSent,
	}
	s.nextID++

	s.alerts = append([]*alert.Alert{a}, s.alerts...)
	s.byID[a.ID] = a

	cp := *a
	return &cp, nil
}

// List returns a newest-first snapshot copy.
func (s *Store) List(_ context.Context) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]alert.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[i] = *a
	}
	return out, nil
}

// Get retrieves an alert by id. Returns a copy.
func (s *Store) Get(_ context.Context, id int64) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Acknowledge marks an active alert acknowledged exactly once.
func (s *Store) Acknowledge(_ context.Context, id int64) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	if a.ResolvedAt != nil {
		return nil, alert.ErrAlreadyResolved
	}
	if a.Acknowledged {
		return nil, alert.ErrAlreadyAcknowledged
	}

	now := s.now()
	a.Acknowledged = true
	a.AcknowledgedAt = &now

	cp := *a
	return &cp, nil
}

// Resolve marks an alert resolved, acknowledging it in the same transition
// when it was still active. Resolved is terminal.
func (s *Store) Resolve(_ context.Context, id int64) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	if a.ResolvedAt != nil {
		return nil, alert.ErrAlreadyResolved
	}

	now := s.now()
	a.ResolvedAt = &now
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedAt = &now
	}

	cp := *a
	return &cp, nil
}

// Clear empties the store. The id counter keeps running so ids are never
// reused within a store instance.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = nil
	s.byID = make(map[int64]*alert.Alert)
	return nil
}

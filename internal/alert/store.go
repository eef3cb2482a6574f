package alert

import (
	"context"
	"errors"
	"fmt"
)

// Store is the persistence contract for alerts. Two implementations exist:
// memstore (ephemeral, primary-path shape) and pgstore (durable, fallback
// path). Both must satisfy the same transition semantics.
type Store interface {
	// Create assigns an id and creation timestamp and inserts the alert.
	// Id assignment is atomic: concurrent creates never share an id.
	Create(ctx context.Context, d Draft) (*Alert, error)

	// List returns a newest-first snapshot.
	List(ctx context.Context) ([]Alert, error)

	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id int64) (*Alert, error)

	// Acknowledge sets acknowledged/acknowledged_at. Repeat calls fail with
	// ErrAlreadyAcknowledged; resolved alerts fail with ErrAlreadyResolved.
	Acknowledge(ctx context.Context, id int64) (*Alert, error)

	// Resolve sets resolved_at, acknowledging first if needed, as one
	// transition. Repeat calls fail with ErrAlreadyResolved.
	Resolve(ctx context.Context, id int64) (*Alert, error)

	// Clear empties the store. Administrative and test use only.
	Clear(ctx context.Context) error
}

// Sentinel errors surfaced at the HTTP boundary as 404/400.
var (
	ErrNotFound            = errors.New("alert not found")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
	ErrAlreadyResolved     = errors.New("alert already resolved")
)

// ValidationError reports a rejected draft field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s %s", e.Field, e.Reason)
}

// IsInvalidTransition reports whether err is one of the 400-class lifecycle
// rejections.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrAlreadyAcknowledged) || errors.Is(err, ErrAlreadyResolved)
}

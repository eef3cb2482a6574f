// Package pgstore provides a PostgreSQL implementation of alert.Store. It is
// the durable fallback-path backing: alerts created here survive restarts.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/firewatch/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/firewatch/internal/alert/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool stays owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, created_at, severity, location, message, type,
	confidence, acknowledged, acknowledged_at, resolved_at, notification_sent`

// Create inserts a new alert. The database assigns the id, so concurrent
// creates can never collide.
func (s *Store) Create(ctx context.Context, d alert.Draft) (*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO alerts (created_at, severity, location, message, type, confidence, notification_sent)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + alertColumns

	a, err := scanAlert(s.pool.QueryRow(ctx, query,
		time.Now().UTC(), string(d.Severity), d.Location, d.Message, d.Type,
		d.Confidence, d.NotificationSent,
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return a, nil
}

// List returns all alerts, newest first.
func (s *Store) List(ctx context.Context) ([]alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// Get retrieves one alert by id.
func (s *Store) Get(ctx context.Context, id int64) (*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alert.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return a, nil
}

// Acknowledge marks an active alert acknowledged. The row lock serializes
// concurrent transitions on the same id.
func (s *Store) Acknowledge(ctx context.Context, id int64) (*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Acknowledge", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	a, err := s.transition(ctx, id, func(cur *alert.Alert) error {
		if cur.ResolvedAt != nil {
			return alert.ErrAlreadyResolved
		}
		if cur.Acknowledged {
			return alert.ErrAlreadyAcknowledged
		}
		now := time.Now().UTC()
		cur.Acknowledged = true
		cur.AcknowledgedAt = &now
		return nil
	})
	if err != nil && !errors.Is(err, alert.ErrNotFound) && !alert.IsInvalidTransition(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return a, err
}

// Resolve marks an alert resolved, acknowledging it in the same transaction
// when it was still active.
func (s *Store) Resolve(ctx context.Context, id int64) (*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Resolve", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	a, err := s.transition(ctx, id, func(cur *alert.Alert) error {
		if cur.ResolvedAt != nil {
			return alert.ErrAlreadyResolved
		}
		now := time.Now().UTC()
		cur.ResolvedAt = &now
		if !cur.Acknowledged {
			cur.Acknowledged = true
			cur.AcknowledgedAt = &now
		}
		return nil
	})
	if err != nil && !errors.Is(err, alert.ErrNotFound) && !alert.IsInvalidTransition(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return a, err
}

// Clear deletes all alerts. DELETE keeps the identity sequence running so
// ids are never reused.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "pgstore.Clear", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM alerts`); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("clear alerts: %w", err)
	}
	return nil
}

// transition loads the row under FOR UPDATE, applies mutate, and writes the
// lifecycle columns back.
func (s *Store) transition(ctx context.Context, id int64, mutate func(*alert.Alert) error) (*alert.Alert, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	a, err := scanAlert(tx.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alert.ErrNotFound
		}
		return nil, err
	}

	if err := mutate(a); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE alerts SET acknowledged = $2, acknowledged_at = $3, resolved_at = $4 WHERE id = $1`,
		id, a.Acknowledged, a.AcknowledgedAt, a.ResolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update alert %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// scanAlert scans a single row into an alert.Alert.
func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a        alert.Alert
		severity string
	)
	err := row.Scan(
		&a.ID, &a.Timestamp, &severity, &a.Location, &a.Message, &a.Type,
		&a.Confidence, &a.Acknowledged, &a.AcknowledgedAt, &a.ResolvedAt,
		&a.NotificationSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	a.Severity = alert.Severity(severity)
	return &a, nil
}

// Package cloudsink pushes alert notifications to a cloud-visible Redis
// list. The sink is append-only from this service's point of view: mobile
// and cloud consumers read the list, we only ever push.
package cloudsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/firewatch/internal/notify"
)

const pushTimeout = 5 * time.Second

// Record is the wire shape of one pushed notification.
type Record struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink appends notification records to a named Redis list. It implements
// notify.Channel.
type Sink struct {
	client *redis.Client
	list   string
}

// New creates a Sink pushing to the given list.
func New(client *redis.Client, list string) *Sink {
	return &Sink{client: client, list: list}
}

func (s *Sink) Name() string   { return "cloud_sink" }
func (s *Sink) Action() string { return "Cloud Notification Pushed" }

// Send appends one {message, time} record. No read contract: failures here
// only mean cloud consumers miss this record.
func (s *Sink) Send(ctx context.Context, a *alert.Alert) error {
	rec := Record{
		ID:      ulid.Make().String(),
		Message: notify.Message(a),
		Time:    time.Now().UTC(),
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cloudsink: marshal record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := s.client.RPush(ctx, s.list, payload).Err(); err != nil {
		return fmt.Errorf("cloudsink: rpush %s: %w", s.list, err)
	}
	return nil
}

// Package realtime pushes alert lifecycle events to dashboard subscribers
// over server-sent events. Delivery is best-effort and at-most-once: there
// is no replay buffer, and a slow subscriber never delays the mutation that
// produced the event.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	sse "github.com/r3labs/sse/v2"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/go-core/log"
)

const streamID = "alerts"

// Event names on the wire.
const (
	EventNewAlert      = "new_alert"
	EventAlertUpdated  = "alert_updated"
	EventAlertsCleared = "alerts_cleared"
)

// Broadcaster fans lifecycle events out to all connected SSE subscribers.
// It implements alert.Publisher.
type Broadcaster struct {
	server *sse.Server
	logger log.Logger
}

// New creates a Broadcaster with replay disabled.
func New(logger log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Nop()
	}
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(streamID)
	return &Broadcaster{server: s, logger: logger}
}

// AlertCreated publishes a new_alert event carrying the alert view.
func (b *Broadcaster) AlertCreated(a *alert.Alert) {
	b.publish(EventNewAlert, alert.ToView(a, time.Now().UTC()))
}

// AlertUpdated publishes an alert_updated event carrying the alert view.
func (b *Broadcaster) AlertUpdated(a *alert.Alert) {
	b.publish(EventAlertUpdated, alert.ToView(a, time.Now().UTC()))
}

// AlertsCleared tells subscribers to drop their alert state.
func (b *Broadcaster) AlertsCleared() {
	b.publishRaw(EventAlertsCleared, []byte("{}"))
}

// Handler serves the SSE subscription endpoint. The stream name is fixed, so
// clients need no query parameters.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("stream") == "" {
			q.Set("stream", streamID)
			r.URL.RawQuery = q.Encode()
		}
		b.server.ServeHTTP(w, r)
	})
}

// Close disconnects all subscribers.
func (b *Broadcaster) Close() {
	b.server.Close()
}

func (b *Broadcaster) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error(context.Background(), err, "failed to encode sse payload", "event", event)
		return
	}
	b.publishRaw(event, data)
}

// publishRaw uses TryPublish so a full stream buffer drops the event instead
// of blocking the caller.
func (b *Broadcaster) publishRaw(event string, data []byte) {
	ok := b.server.TryPublish(streamID, &sse.Event{
		Event: []byte(event),
		Data:  data,
	})
	if !ok {
		b.logger.Warn(context.Background(), "sse event dropped, stream buffer full", "event", event)
	}
}

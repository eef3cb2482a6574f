package notify

import (
	"context"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/go-core/log"
)

// Fanout selects and fires channels by severity policy. It implements
// alert.Notifier.
type Fanout struct {
	logger  log.Logger
	observe func(channel string, err error)
	entries []entry
}

type entry struct {
	ch  Channel
	min alert.Severity
}

// NewFanout creates an empty fan-out. observe may be nil (no metrics).
func NewFanout(logger log.Logger, observe func(channel string, err error)) *Fanout {
	if logger == nil {
		logger = log.Nop()
	}
	return &Fanout{logger: logger, observe: observe}
}

// Register adds a channel that fires for alerts at min severity or above.
func (f *Fanout) Register(ch Channel, min alert.Severity) {
	f.entries = append(f.entries, entry{ch: ch, min: min})
}

// WillNotify reports whether the policy selects any channel for sev.
func (f *Fanout) WillNotify(sev alert.Severity) bool {
	for _, e := range f.entries {
		if severityRank(sev) >= severityRank(e.min) {
			return true
		}
	}
	return false
}

// Dispatch fires every selected channel and returns their action strings.
// Failures are swallowed: logged, observed, never returned.
func (f *Fanout) Dispatch(ctx context.Context, a *alert.Alert) []string {
	var actions []string
	for _, e := range f.entries {
		if severityRank(a.Severity) < severityRank(e.min) {
			continue
		}

		err := e.ch.Send(ctx, a)
		if f.observe != nil {
			f.observe(e.ch.Name(), err)
		}
		if err != nil {
			f.logger.Error(ctx, err, "notification channel failed",
				"channel", e.ch.Name(), "alert_id", a.ID)
		}
		actions = append(actions, e.ch.Action())
	}
	return actions
}

package detect

import (
	"sync"
	"time"
)

// CooldownScope selects how emission throttling is keyed.
type CooldownScope string

const (
	// ScopeCondition throttles per (type, location) pair, so a fire alert
	// never suppresses an unrelated smoke alert.
	ScopeCondition CooldownScope = "condition"

	// ScopeGlobal is the legacy single-timer behavior, kept as a
	// compatibility mode only.
	ScopeGlobal CooldownScope = "global"
)

// Cooldown is a rate limiter for alert emission on a continuous detection
// stream. The last-fire time advances only when Allow grants a firing.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	scope  CooldownScope
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldown creates a limiter with the given window and scope.
func NewCooldown(window time.Duration, scope CooldownScope) *Cooldown {
	if scope != ScopeGlobal {
		scope = ScopeCondition
	}
	return &Cooldown{
		window: window,
		scope:  scope,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (c *Cooldown) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Allow reports whether an alert for the given condition may fire now, and
// records the firing when it does.
func (c *Cooldown) Allow(detectionType, location string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := ""
	if c.scope == ScopeCondition {
		key = detectionType + "\x00" + location
	}

	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[key] = now
	return true
}

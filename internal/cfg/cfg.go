package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds the firewatch-specific configuration fields, following the
// common cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	PrimaryEndpoint       string
	PrimaryTimeoutSeconds int
	DatabaseURL           string
	RedisAddr             string
	RedisList             string
	ClassifierEndpoint    string
	ImageDir              string
	WatchDir              string
	WatchLocation         string
	AlertConfThreshold    float64
	CooldownSeconds       int
	CooldownScope         string
	AdminToken            string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.PrimaryEndpoint, "primary-endpoint", "", "Base URL of the primary alert/detection service (empty = local path only)")
	fs.IntVar(&c.PrimaryTimeoutSeconds, "primary-timeout-seconds", 5, "Per-request timeout for primary service calls (1..60)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the durable fallback store (empty = in-memory store)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the cloud notification sink (empty = sink disabled)")
	fs.StringVar(&c.RedisList, "redis-list", "alerts", "Redis list name notification records are pushed to")
	fs.StringVar(&c.ClassifierEndpoint, "classifier-endpoint", "", "Base URL of the inference service (empty = filename heuristic only)")
	fs.StringVar(&c.ImageDir, "image-dir", "data/images", "Directory bare filenames in detect requests resolve against")
	fs.StringVar(&c.WatchDir, "watch-dir", "", "Snapshot directory for continuous detection (empty = watcher disabled)")
	fs.StringVar(&c.WatchLocation, "watch-location", "Unknown", "Location tag for alerts from the snapshot watcher")
	fs.Float64Var(&c.AlertConfThreshold, "alert-conf-threshold", 0.50, "Confidence floor for alerting on low-severity detections (0..1)")
	fs.IntVar(&c.CooldownSeconds, "cooldown-seconds", 10, "Minimum seconds between alert emissions per detection condition (1..3600)")
	fs.StringVar(&c.CooldownScope, "cooldown-scope", "condition", "Cooldown keying: condition (per type+location) or global (legacy single timer)")
	fs.StringVar(&c.AdminToken, "admin-token", "", "Bearer token for the admin clear endpoint (empty = admin routes disabled)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.PrimaryTimeoutSeconds <= 0 || c.PrimaryTimeoutSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid PRIMARY_TIMEOUT_SECONDS %d (must be 1..60)", c.PrimaryTimeoutSeconds))
	}

	if c.AlertConfThreshold < 0 || c.AlertConfThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid ALERT_CONF_THRESHOLD %g (must be 0..1)", c.AlertConfThreshold))
	}

	if c.CooldownSeconds <= 0 || c.CooldownSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid COOLDOWN_SECONDS %d (must be 1..3600)", c.CooldownSeconds))
	}

	if c.CooldownScope != "condition" && c.CooldownScope != "global" {
		errs = append(errs, fmt.Errorf("invalid COOLDOWN_SCOPE %q (must be condition or global)", c.CooldownScope))
	}

	// The cloud sink needs a list name when enabled
	if c.RedisAddr != "" && c.RedisList == "" {
		errs = append(errs, errors.New("REDIS_LIST is required when REDIS_ADDR is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

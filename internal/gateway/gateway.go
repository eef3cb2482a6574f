// Package gateway implements the dual-backend resilience layer. Every alert
// operation is attempted against the primary service first; any failure of
// that attempt routes the request to the local fallback path instead.
// Exactly one backend handles each request, and both paths are normalized to
// the same response shape. The backends are not reconciled: an alert created
// while the primary was down stays invisible to primary-backed reads.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/firewatch/internal/detect"
	"github.com/linnemanlabs/go-core/log"
)

// Degraded detection constants for the upload path when both the primary
// and the local classifier are unusable.
const (
	degradedConfidence = 0.15
	degradedType       = "unknown"
)

// ErrImageNotFound is surfaced as a 404 for detect requests naming a file
// that does not exist locally.
var ErrImageNotFound = errors.New("image not found")

// DetectRequest names an image by path or by filename under the configured
// image directory.
type DetectRequest struct {
	ImagePath string `json:"image_path,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// DetectResult is a detection verdict without alert creation.
type DetectResult struct {
	Confidence float64        `json:"confidence"`
	Severity   alert.Severity `json:"severity"`
}

// DetectOutcome is a detection verdict plus the alert it produced, if any.
type DetectOutcome struct {
	Confidence float64        `json:"confidence"`
	Severity   alert.Severity `json:"severity"`
	Type       string         `json:"type,omitempty"`
	Message    string         `json:"message,omitempty"`
	Alert      *alert.View    `json:"alert,omitempty"`
}

// Config carries gateway policy knobs.
type Config struct {
	// ImageDir resolves bare filenames in detect requests.
	ImageDir string

	// ConfThreshold is the alert-worthiness floor for low severity.
	ConfThreshold float64
}

// Gateway orchestrates primary-then-fallback for all alert operations.
// It holds no alert state of its own.
type Gateway struct {
	cfg     Config
	primary *Client // nil means no primary configured, always fallback
	local   *alert.Service
	adapter *detect.Adapter
	metrics *Metrics
	logger  log.Logger
}

// New creates a Gateway. primary, adapter and metrics may be nil.
func New(cfg Config, primary *Client, local *alert.Service, adapter *detect.Adapter, metrics *Metrics, logger log.Logger) *Gateway {
	if logger == nil {
		logger = log.Nop()
	}
	return &Gateway{
		cfg:     cfg,
		primary: primary,
		local:   local,
		adapter: adapter,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns all alerts from whichever backend answers.
func (g *Gateway) List(ctx context.Context) ([]alert.View, error) {
	if g.primary != nil {
		alerts, err := g.primary.ListAlerts(ctx)
		if err == nil {
			g.observe("list", "primary", nil)
			return viewsOf(alerts), nil
		}
		g.fellBack(ctx, "list", err)
	}

	alerts, err := g.local.List(ctx)
	g.observe("list", "fallback", err)
	if err != nil {
		return nil, err
	}
	return viewsOf(alerts), nil
}

// Create writes the alert to exactly one backend: the primary when it
// answers, the local store otherwise. Never both.
func (g *Gateway) Create(ctx context.Context, d alert.Draft) (alert.View, error) {
	if err := d.Normalize(); err != nil {
		return alert.View{}, err
	}

	if g.primary != nil {
		a, err := g.primary.CreateAlert(ctx, d)
		if err == nil {
			g.observe("create", "primary", nil)
			return alert.ToView(a, time.Now().UTC()), nil
		}
		g.fellBack(ctx, "create", err)
	}

	a, _, err := g.local.Create(ctx, d)
	g.observe("create", "fallback", err)
	if err != nil {
		return alert.View{}, err
	}
	return alert.ToView(a, time.Now().UTC()), nil
}

// Acknowledge transitions an alert on whichever backend answers.
func (g *Gateway) Acknowledge(ctx context.Context, id int64) (alert.View, error) {
	if g.primary != nil {
		a, err := g.primary.Acknowledge(ctx, id)
		if err == nil {
			g.observe("acknowledge", "primary", nil)
			return alert.ToView(a, time.Now().UTC()), nil
		}
		g.fellBack(ctx, "acknowledge", err)
	}

	a, err := g.local.Acknowledge(ctx, id)
	g.observe("acknowledge", "fallback", err)
	if err != nil {
		return alert.View{}, err
	}
	return alert.ToView(a, time.Now().UTC()), nil
}

// Resolve transitions an alert on whichever backend answers.
func (g *Gateway) Resolve(ctx context.Context, id int64) (alert.View, error) {
	if g.primary != nil {
		a, err := g.primary.Resolve(ctx, id)
		if err == nil {
			g.observe("resolve", "primary", nil)
			return alert.ToView(a, time.Now().UTC()), nil
		}
		g.fellBack(ctx, "resolve", err)
	}

	a, err := g.local.Resolve(ctx, id)
	g.observe("resolve", "fallback", err)
	if err != nil {
		return alert.View{}, err
	}
	return alert.ToView(a, time.Now().UTC()), nil
}

// Detect runs detection without alert creation, degrading to the local
// adapter when the primary is unavailable.
func (g *Gateway) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	if g.primary != nil {
		res, err := g.primary.Detect(ctx, req)
		if err == nil {
			g.observe("detect", "primary", nil)
			return *res, nil
		}
		g.fellBack(ctx, "detect", err)
	}

	path, err := g.resolveImage(req)
	if err != nil {
		g.observe("detect", "fallback", err)
		return DetectResult{}, err
	}

	res := g.adapter.Classify(ctx, path)
	g.observe("detect", "fallback", nil)
	return DetectResult{
		Confidence: res.Confidence,
		Severity:   alert.SeverityForLabel(res.Label),
	}, nil
}

// DetectAndAlert runs detection and creates an alert when the result is
// alert-worthy. On fallback the local pipeline handles both steps.
func (g *Gateway) DetectAndAlert(ctx context.Context, req DetectRequest) (DetectOutcome, error) {
	if g.primary != nil {
		out, err := g.primary.DetectAndAlert(ctx, req)
		if err == nil {
			g.observe("detect_and_alert", "primary", nil)
			return *out, nil
		}
		g.fellBack(ctx, "detect_and_alert", err)
	}

	path, err := g.resolveImage(req)
	if err != nil {
		g.observe("detect_and_alert", "fallback", err)
		return DetectOutcome{}, err
	}

	res := g.adapter.Classify(ctx, path)
	sev := alert.SeverityForLabel(res.Label)
	out := DetectOutcome{Confidence: res.Confidence, Severity: sev, Type: res.Label}

	if alert.Worthy(sev, res.Confidence, g.cfg.ConfThreshold) {
		a, _, err := g.local.Create(ctx, alert.Draft{
			Severity:   sev,
			Location:   "Unknown",
			Message:    fmt.Sprintf("Detection: %s in %s", res.Label, filepath.Base(path)),
			Type:       res.Label,
			Confidence: res.Confidence,
		})
		if err != nil {
			g.observe("detect_and_alert", "fallback", err)
			return DetectOutcome{}, err
		}
		v := alert.ToView(a, time.Now().UTC())
		out.Alert = &v
	}

	g.observe("detect_and_alert", "fallback", nil)
	return out, nil
}

// UploadDetect forwards the raw payload to the primary detection endpoint.
// When that fails a degraded outcome is synthesized — low fixed confidence,
// unknown type, no alert — so uploads never hard-fail even with every
// detection backend down.
func (g *Gateway) UploadDetect(ctx context.Context, filename string, content []byte) (DetectOutcome, error) {
	if g.primary != nil {
		out, err := g.primary.UploadDetect(ctx, filename, content)
		if err == nil {
			g.observe("upload", "primary", nil)
			return *out, nil
		}
		g.fellBack(ctx, "upload", err)
	}

	g.observe("upload", "degraded", nil)
	return DetectOutcome{
		Confidence: degradedConfidence,
		Severity:   alert.SeverityLow,
		Type:       degradedType,
		Message:    fmt.Sprintf("Image uploaded: %s (awaiting processing)", filename),
	}, nil
}

func (g *Gateway) resolveImage(req DetectRequest) (string, error) {
	candidate := req.ImagePath
	if candidate == "" && req.Filename != "" {
		candidate = filepath.Join(g.cfg.ImageDir, req.Filename)
	}
	if candidate == "" {
		return "", &alert.ValidationError{Field: "image_path", Reason: "image_path or filename required"}
	}
	if info, err := os.Stat(candidate); err != nil || info.IsDir() {
		return "", ErrImageNotFound
	}
	return candidate, nil
}

// fellBack records one primary failure. The error is never surfaced to the
// caller; the fallback result is.
func (g *Gateway) fellBack(ctx context.Context, op string, err error) {
	if g.metrics != nil {
		g.metrics.FallbacksTotal.WithLabelValues(op).Inc()
	}
	g.logger.Warn(ctx, "primary unavailable, using fallback", "op", op, "error", err)
}

func (g *Gateway) observe(op, backend string, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.RequestsTotal.WithLabelValues(op, backend, outcome).Inc()
}

func viewsOf(alerts []alert.Alert) []alert.View {
	now := time.Now().UTC()
	out := make([]alert.View, len(alerts))
	for i := range alerts {
		out[i] = alert.ToView(&alerts[i], now)
	}
	return out
}

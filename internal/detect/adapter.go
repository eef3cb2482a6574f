// Package detect wraps the opaque image-classifier capability behind an
// Adapter that always produces a usable result: real model output when the
// classifier is reachable, a filename heuristic when it is not. It also owns
// the cooldown limiter and the snapshot-directory watcher for the
// continuous-detection loop.
package detect

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Known normalized labels.
const (
	LabelFire  = "fire"
	LabelSmoke = "smoke"
	LabelNone  = "none"
)

// Heuristic confidences used when the classifier is unavailable.
const (
	heuristicFireConfidence  = 0.82
	heuristicSmokeConfidence = 0.72
	heuristicNoneConfidence  = 0.30
)

// Prediction is one candidate from the classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is the adapter's normalized output.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the opaque image-classification capability. Unavailability
// is a steady-state condition, not a per-call error.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) ([]Prediction, error)
	Available(ctx context.Context) bool
}

// Adapter turns classifier output into a normalized detection result and
// degrades to the heuristic when no classifier is usable. It never fails:
// the pipeline must not block on classifier unavailability.
type Adapter struct {
	classifier Classifier
	metrics    *Metrics
	logger     log.Logger
}

// NewAdapter creates an Adapter. classifier and metrics may be nil.
func NewAdapter(classifier Classifier, metrics *Metrics, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Available reports whether the underlying classifier can serve inference.
func (a *Adapter) Available(ctx context.Context) bool {
	return a.classifier != nil && a.classifier.Available(ctx)
}

// Classify runs inference when possible, else the filename heuristic.
// Classifier errors degrade to {none, 0} rather than propagating.
func (a *Adapter) Classify(ctx context.Context, imagePath string) Result {
	if !a.Available(ctx) {
		r := heuristic(imagePath)
		a.observe(r.Label, "heuristic")
		return r
	}

	preds, err := a.classifier.Classify(ctx, imagePath)
	if err != nil {
		a.logger.Warn(ctx, "classifier error, degrading", "image", imagePath, "error", err)
		a.observe(LabelNone, "error")
		return Result{Label: LabelNone, Confidence: 0.0}
	}

	best := pickBest(preds)
	r := Result{Label: normalizeLabel(best.Label), Confidence: best.Confidence}
	a.observe(r.Label, "model")
	return r
}

func (a *Adapter) observe(label, mode string) {
	if a.metrics != nil {
		a.metrics.DetectionsTotal.WithLabelValues(label, mode).Inc()
	}
}

// pickBest selects the maximum-confidence candidate; ties keep the
// first-seen prediction.
func pickBest(preds []Prediction) Prediction {
	best := Prediction{Label: LabelNone}
	for _, p := range preds {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best
}

// normalizeLabel maps raw class names onto the domain labels by
// case-insensitive substring match.
func normalizeLabel(raw string) string {
	l := strings.ToLower(raw)
	switch {
	case strings.Contains(l, LabelFire):
		return LabelFire
	case strings.Contains(l, LabelSmoke):
		return LabelSmoke
	default:
		return LabelNone
	}
}

// heuristic is the content-free degraded path: inspect the image path for
// the class substrings and assign a fixed low confidence.
func heuristic(imagePath string) Result {
	p := strings.ToLower(imagePath)
	switch {
	case strings.Contains(p, LabelFire):
		return Result{Label: LabelFire, Confidence: heuristicFireConfidence}
	case strings.Contains(p, LabelSmoke):
		return Result{Label: LabelSmoke, Confidence: heuristicSmokeConfidence}
	default:
		return Result{Label: LabelNone, Confidence: heuristicNoneConfidence}
	}
}

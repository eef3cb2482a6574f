package detect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/go-core/log"
)

// Creator is where worthy detections become alerts. The gateway implements
// it, so stream detections follow the same primary-then-fallback policy as
// API-created alerts.
type Creator interface {
	Create(ctx context.Context, d alert.Draft) (alert.View, error)
}

// WatcherConfig configures a snapshot-directory watcher.
type WatcherConfig struct {
	// Dir is the directory cameras drop snapshot images into.
	Dir string

	// Location tags alerts from this stream, e.g. a camera site name.
	Location string

	// ConfThreshold is the alert-worthiness confidence floor for
	// low-severity detections.
	ConfThreshold float64
}

// Watcher runs the continuous-detection regime: one sequential loop that
// classifies every new snapshot and emits alerts through the cooldown gate.
type Watcher struct {
	cfg      WatcherConfig
	adapter  *Adapter
	cooldown *Cooldown
	creator  Creator
	metrics  *Metrics
	logger   log.Logger
}

// NewWatcher creates a Watcher. metrics may be nil.
func NewWatcher(cfg WatcherConfig, adapter *Adapter, cooldown *Cooldown, creator Creator, metrics *Metrics, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{
		cfg:      cfg,
		adapter:  adapter,
		cooldown: cooldown,
		creator:  creator,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run watches the snapshot directory until ctx is canceled. Frames are
// processed one at a time; there are no concurrent detections per stream.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	w.logger.Info(ctx, "snapshot watcher started", "dir", w.cfg.Dir, "location", w.cfg.Location)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isImage(ev.Name) {
				continue
			}
			w.process(ctx, ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if w.metrics != nil {
				w.metrics.WatcherErrorsTotal.Inc()
			}
			w.logger.Warn(ctx, "watcher error", "error", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if w.metrics != nil {
		w.metrics.WatcherFilesTotal.Inc()
	}

	// Writers may still be flushing when the create event fires.
	time.Sleep(50 * time.Millisecond)

	res := w.adapter.Classify(ctx, path)
	sev := alert.SeverityForLabel(res.Label)

	if !alert.Worthy(sev, res.Confidence, w.cfg.ConfThreshold) {
		w.logger.Info(ctx, "detection below alert threshold",
			"image", filepath.Base(path), "label", res.Label, "confidence", res.Confidence)
		return
	}

	if !w.cooldown.Allow(res.Label, w.cfg.Location) {
		if w.metrics != nil {
			w.metrics.SuppressedTotal.Inc()
		}
		w.logger.Info(ctx, "detection suppressed by cooldown",
			"label", res.Label, "location", w.cfg.Location)
		return
	}

	_, err := w.creator.Create(ctx, alert.Draft{
		Severity:   sev,
		Location:   w.cfg.Location,
		Message:    fmt.Sprintf("Detection: %s in %s", res.Label, filepath.Base(path)),
		Type:       res.Label,
		Confidence: res.Confidence,
	})
	if err != nil {
		if w.metrics != nil {
			w.metrics.WatcherErrorsTotal.Inc()
		}
		w.logger.Error(ctx, err, "failed to create alert from detection",
			"image", filepath.Base(path), "label", res.Label)
	}
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

package detect

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the detection subsystem.
type Metrics struct {
	DetectionsTotal    *prometheus.CounterVec
	SuppressedTotal    prometheus.Counter
	WatcherFilesTotal  prometheus.Counter
	WatcherErrorsTotal prometheus.Counter
}

// NewMetrics registers and returns detection metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_detections_total",
			Help: "Total classifications by normalized label and inference mode.",
		}, []string{"label", "mode"}),
		SuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firewatch_detections_suppressed_total",
			Help: "Alert-worthy detections suppressed by the cooldown window.",
		}),
		WatcherFilesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firewatch_watcher_files_total",
			Help: "Snapshot files picked up by the directory watcher.",
		}),
		WatcherErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firewatch_watcher_errors_total",
			Help: "Watcher loop errors (fsnotify and alert creation).",
		}),
	}

	reg.MustRegister(
		m.DetectionsTotal,
		m.SuppressedTotal,
		m.WatcherFilesTotal,
		m.WatcherErrorsTotal,
	)

	return m
}

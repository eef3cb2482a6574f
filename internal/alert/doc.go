// Package alert provides the business boundary for Firewatch's detection
// alerting. It defines the Alert model and lifecycle, the severity
// classifier, the Store interface (persistence), and the Service that ties
// mutations to notification fan-out and realtime broadcast.
package alert

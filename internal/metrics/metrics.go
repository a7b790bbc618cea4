// Package metrics provides Prometheus metrics for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Preview metrics
	PreviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_import_previews_total",
			Help: "Total number of import previews by outcome",
		},
		[]string{"outcome"},
	)

	RowsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_import_rows_validated_total",
			Help: "Total number of rows validated by resulting status",
		},
		[]string{"status"},
	)

	FileRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_import_file_rejections_total",
			Help: "Total number of files rejected before row validation",
		},
		[]string{"reason"},
	)

	// Commit metrics
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_import_commits_total",
			Help: "Total number of commit attempts by outcome",
		},
		[]string{"outcome"},
	)

	RecordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_import_records_created_total",
			Help: "Total number of inventory records created by imports",
		},
		[]string{"category"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_import_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	ImportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inventory_import_in_flight",
			Help: "Number of imports currently holding a limiter slot",
		},
	)

	PreviewsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_import_previews_swept_total",
			Help: "Total number of expired previews removed by the sweeper",
		},
	)
)

// Stage labels for StageDuration.
const (
	StageParse    = "parse"
	StageValidate = "validate"
	StageCommit   = "commit"
)

// RecordPreview records a finished preview and its per-row statuses.
func RecordPreview(outcome string, valid, warned, rejected int) {
	PreviewsTotal.WithLabelValues(outcome).Inc()
	RowsValidated.WithLabelValues("valid").Add(float64(valid))
	RowsValidated.WithLabelValues("warned").Add(float64(warned))
	RowsValidated.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordFileRejection records a file-level rejection.
func RecordFileRejection(reason string) {
	FileRejections.WithLabelValues(reason).Inc()
}

// RecordCommit records a commit attempt.
func RecordCommit(outcome string) {
	CommitsTotal.WithLabelValues(outcome).Inc()
}

// RecordCreated records records created in a category.
func RecordCreated(category string, n int) {
	RecordsCreated.WithLabelValues(category).Add(float64(n))
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Timer is a helper for measuring stage durations.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer starts timing stage.
func NewTimer(stage string) *Timer {
	return &Timer{start: time.Now(), stage: stage}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	ObserveStage(t.stage, d)
	return d
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blobtag"

// Metrics holds the Prometheus counters, histograms, and gauges for a tagging job.
type Metrics struct {
	JobRunning prometheus.Gauge

	// Pairing metrics.
	TimestepsMatched prometheus.Counter
	MatchFailures    prometheus.Counter
	Pairings         *prometheus.CounterVec // labels: method={radius,bbox,unpaired,preassigned}

	// Propagation metrics.
	LabelsAssigned *prometheus.CounterVec // labels: label
	SlicesWritten  prometheus.Counter
	CoverageErrors prometheus.Counter

	EventsPublished prometheus.Counter
	StageDuration   *prometheus.HistogramVec // labels: stage={load,match,classify,table,raster,publish}
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.JobRunning,
		m.TimestepsMatched,
		m.MatchFailures,
		m.Pairings,
		m.LabelsAssigned,
		m.SlicesWritten,
		m.CoverageErrors,
		m.EventsPublished,
		m.StageDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while a tagging job is in progress, 0 otherwise.",
		}),
		TimestepsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timesteps_matched_total",
			Help:      "Timesteps whose blobs finished matching.",
		}),
		MatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_failures_total",
			Help:      "Pairing stages aborted by a failing timestep.",
		}),
		Pairings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairings_total",
			Help:      "Blob pairings by method.",
		}, []string{"method"}),
		LabelsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_assigned_total",
			Help:      "Blobs tagged per label.",
		}, []string{"label"}),
		SlicesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raster_slices_written_total",
			Help:      "Relabeled raster time slices written.",
		}),
		CoverageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raster_coverage_errors_total",
			Help:      "Raster writes aborted by an uncovered blob value.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Tagged-blob events written to Kafka.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each job stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
	}
}

// Package metrics exposes Prometheus collectors for the extraction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statement_extractor"

// Recorder is what the pipeline reports into. A nil *Metrics is a valid
// no-op Recorder.
type Recorder interface {
	ObserveRun(backend, outcome string, d time.Duration, records int)
	PageProcessed(backend string)
	PageFailed(backend, phase string)
	ObserveOCRConfidence(conf float32)
}

type Metrics struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    prometheus.Histogram
	pages      *prometheus.CounterVec
	pageErrors *prometheus.CounterVec
	confidence prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction runs by backend and terminal outcome.",
		}, []string{"backend", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of extraction runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"backend"}),
		records: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_extraction",
			Help:      "Records delivered by completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Pages read by each backend.",
		}, []string{"backend"}),
		pageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_failures_total",
			Help:      "Page-level failures that were recovered locally.",
		}, []string{"backend", "phase"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_page_confidence",
			Help:      "Mean word confidence of recognized pages.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.records, m.pages, m.pageErrors, m.confidence)
	return m
}

func (m *Metrics) ObserveRun(backend, outcome string, d time.Duration, records int) {
	if m == nil {
		return
	}
	if backend == "" {
		backend = "none"
	}
	m.runs.WithLabelValues(backend, outcome).Inc()
	m.duration.WithLabelValues(backend).Observe(d.Seconds())
	if outcome == "completed" {
		m.records.Observe(float64(records))
	}
}

func (m *Metrics) PageProcessed(backend string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(backend).Inc()
}

func (m *Metrics) PageFailed(backend, phase string) {
	if m == nil {
		return
	}
	m.pageErrors.WithLabelValues(backend, phase).Inc()
}

func (m *Metrics) ObserveOCRConfidence(conf float32) {
	if m == nil || conf <= 0 {
		return
	}
	m.confidence.Observe(float64(conf))
}

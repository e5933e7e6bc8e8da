package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun("OCR", "completed", 2*time.Second, 12)
	m.ObserveRun("", "failed", time.Second, 0)
	m.PageProcessed("OCR")
	m.PageProcessed("OCR")
	m.PageFailed("OCR", "recognize")
	m.ObserveOCRConfidence(0.9)
	m.ObserveOCRConfidence(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("OCR", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("none", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages.WithLabelValues("OCR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pageErrors.WithLabelValues("OCR", "recognize")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.confidence))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("OCR", "completed", time.Second, 1)
		m.PageProcessed("OCR")
		m.PageFailed("OCR", "rasterize")
		m.ObserveOCRConfidence(0.5)
	})
}

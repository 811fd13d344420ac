package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsIngestion struct {
	once sync.Once

	runs         *prometheus.CounterVec
	retries      *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lupa_ingestion_runs_total", Help: "Snapshot runs by type and final status"}, []string{"type", "status"})
		m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lupa_ingestion_step_retries_total", Help: "Step retries by step"}, []string{"step"})

		buckets := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
		m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "lupa_ingestion_run_seconds", Help: "Snapshot run duration", Buckets: buckets}, []string{"type"})
		m.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "lupa_ingestion_step_seconds", Help: "Step duration including retries", Buckets: buckets}, []string{"step"})

		prometheus.MustRegister(m.runs, m.retries, m.runDuration, m.stepDuration)
	})
}

func recordRun(t SnapshotType, s Status, d time.Duration) {
	ingMetrics.init()
	ingMetrics.runs.WithLabelValues(string(t), string(s)).Inc()
	ingMetrics.runDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

func recordRetry(step string) { ingMetrics.init(); ingMetrics.retries.WithLabelValues(step).Inc() }

func recordStep(step string, d time.Duration) {
	ingMetrics.init()
	ingMetrics.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

package service

import (
	"sync"
	"time"

	"lupa-be/internal/entity"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsService struct {
	once sync.Once

	environmentChanges *prometheus.CounterVec
	environmentLatency prometheus.Histogram
	builds             *prometheus.CounterVec
	buildDuration      prometheus.Histogram
	searches           *prometheus.CounterVec
}

var svcMetrics metricsService

func (m *metricsService) init() {
	m.once.Do(func() {
		m.environmentChanges = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lupa_deployment_environment_changes_total", Help: "Environment assignments by target and result"}, []string{"environment", "result"})
		m.environmentLatency = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "lupa_deployment_environment_change_seconds", Help: "Environment change transaction duration", Buckets: prometheus.DefBuckets})
		m.builds = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lupa_deployment_builds_total", Help: "Deployment builds by final status"}, []string{"status"})
		m.buildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "lupa_deployment_build_seconds", Help: "Deployment build duration", Buckets: prometheus.ExponentialBuckets(0.5, 2, 12)})
		m.searches = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lupa_search_requests_total", Help: "Search requests by backend and result"}, []string{"backend", "result"})

		prometheus.MustRegister(m.environmentChanges, m.environmentLatency, m.builds, m.buildDuration, m.searches)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func recordPromotion(target *entity.Environment, err error, d time.Duration) {
	svcMetrics.init()
	env := "none"
	if target != nil {
		env = string(*target)
	}
	svcMetrics.environmentChanges.WithLabelValues(env, resultLabel(err)).Inc()
	svcMetrics.environmentLatency.Observe(d.Seconds())
}

func recordBuild(status entity.DeploymentStatus, d time.Duration) {
	svcMetrics.init()
	svcMetrics.builds.WithLabelValues(string(status)).Inc()
	svcMetrics.buildDuration.Observe(d.Seconds())
}

func recordSearch(backend string, err error) {
	svcMetrics.init()
	svcMetrics.searches.WithLabelValues(backend, resultLabel(err)).Inc()
}

package vector

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsVector struct {
	once sync.Once

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheCorrupt prometheus.Counter
}

var vecMetrics metricsVector

func (m *metricsVector) init() {
	m.once.Do(func() {
		m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "lupa_vector_cache_hits_total", Help: "Vector config served from cache"})
		m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{Name: "lupa_vector_cache_misses_total", Help: "Vector config resolved through the management API"})
		m.cacheCorrupt = prometheus.NewCounter(prometheus.CounterOpts{Name: "lupa_vector_cache_corrupt_total", Help: "Cached vector configs that failed to decode or decrypt"})

		prometheus.MustRegister(m.cacheHits, m.cacheMisses, m.cacheCorrupt)
	})
}

func recordCacheHit()     { vecMetrics.init(); vecMetrics.cacheHits.Inc() }
func recordCacheMiss()    { vecMetrics.init(); vecMetrics.cacheMisses.Inc() }
func recordCacheCorrupt() { vecMetrics.init(); vecMetrics.cacheCorrupt.Inc() }

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("FIRECRAWL_API_KEYS", "")
	t.Setenv("VECTOR_CACHE_TTL", "")

	cfg := Load()
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Empty(t, cfg.Crawl.Keys)
	assert.Equal(t, 8, cfg.Ingestion.GeneralConcurrency)
	assert.Equal(t, 12, cfg.Ingestion.WebsiteConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.Ingestion.RefreshInterval)
	assert.Equal(t, 60*time.Minute, cfg.Vector.CacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FIRECRAWL_API_KEYS", " k1, ,k2,k3 ")
	t.Setenv("FIRECRAWL_RATE_PER_SECOND", "0.5")
	t.Setenv("VECTOR_CACHE_TTL", "90m")
	t.Setenv("INGESTION_CONCURRENCY", "not-a-number")
	t.Setenv("GO_ENV", "production")

	cfg := Load()
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Crawl.Keys)
	assert.Equal(t, 0.5, cfg.Crawl.RatePerSecond)
	assert.Equal(t, 90*time.Minute, cfg.Vector.CacheTTL)
	assert.Equal(t, 8, cfg.Ingestion.GeneralConcurrency)
	assert.True(t, cfg.IsProduction())
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Nats      NatsConfig
	Crawl     CrawlConfig
	Blob      BlobConfig
	Vector    VectorConfig
	Parser    ParserConfig
	Ingestion IngestionConfig
	Embedding EmbeddingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	JWTSecret          string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver     string
	Connection string
}

type RedisConfig struct {
	// URL is empty in memory mode.
	URL string
}

type NatsConfig struct {
	URL string
}

type CrawlConfig struct {
	BaseURL string
	// Keys are the firecrawl API keys; key n serves the firecrawl_n tag.
	Keys          []string
	RatePerSecond float64
	Timeout       time.Duration
	WaitFor       time.Duration
}

type BlobConfig struct {
	// Driver is "local" or "http".
	Driver    string
	LocalRoot string
	BaseURL   string
	Token     string
}

type VectorConfig struct {
	ManagementURL string
	APIKey        string
	// CacheSecret derives the key sealing cached index tokens.
	CacheSecret string
	CacheTTL    time.Duration
}

type ParserConfig struct {
	LlamaParseKey string
	LlamaParseURL string
}

type IngestionConfig struct {
	GeneralConcurrency int
	WebsiteConcurrency int
	RefreshInterval    time.Duration
}

type EmbeddingConfig struct {
	Provider      string // "gemini", "ollama", "jina" or "none"
	GeminiKey     string
	JinaKey       string
	OllamaBaseURL string
	OllamaModel   string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Nats: NatsConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Crawl: CrawlConfig{
			BaseURL:       getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
			Keys:          getEnvAsList("FIRECRAWL_API_KEYS"),
			RatePerSecond: getEnvAsFloat("FIRECRAWL_RATE_PER_SECOND", 2),
			Timeout:       getEnvAsDuration("FIRECRAWL_TIMEOUT", 30*time.Second),
			WaitFor:       getEnvAsDuration("FIRECRAWL_WAIT_FOR", time.Second),
		},
		Blob: BlobConfig{
			Driver:    getEnv("BLOB_DRIVER", "local"),
			LocalRoot: getEnv("BLOB_LOCAL_ROOT", "./uploads"),
			BaseURL:   getEnv("BLOB_BASE_URL", "http://localhost:3000/uploads"),
			Token:     getEnv("BLOB_READ_WRITE_TOKEN", ""),
		},
		Vector: VectorConfig{
			ManagementURL: getEnv("VECTOR_MANAGEMENT_URL", ""),
			APIKey:        getEnv("VECTOR_MANAGEMENT_API_KEY", ""),
			CacheSecret:   getEnv("VECTOR_CACHE_SECRET", ""),
			CacheTTL:      getEnvAsDuration("VECTOR_CACHE_TTL", 60*time.Minute),
		},
		Parser: ParserConfig{
			LlamaParseKey: getEnv("LLAMA_CLOUD_API_KEY", ""),
			LlamaParseURL: getEnv("LLAMA_CLOUD_BASE_URL", ""),
		},
		Ingestion: IngestionConfig{
			GeneralConcurrency: getEnvAsInt("INGESTION_CONCURRENCY", 8),
			WebsiteConcurrency: getEnvAsInt("INGESTION_WEBSITE_CONCURRENCY", 12),
			RefreshInterval:    getEnvAsDuration("REFRESH_INTERVAL", 15*time.Minute),
		},
		Embedding: EmbeddingConfig{
			Provider:      getEnv("EMBEDDING_PROVIDER", "none"),
			GeminiKey:     getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JinaKey:       getEnv("JINA_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	defaultCoinMarketCapBaseURL = "https://pro-api.coinmarketcap.com"
	defaultSentimentBaseURL     = "http://localhost:11434"
	defaultSentimentModel       = "llama3"
	defaultDatabasePath         = "./crypto_sentiment.db"
	defaultServiceName          = "crypto-sentiment"
	defaultOTLPEndpoint         = "localhost:4317"
	minFetchIntervalMs          = 1000
)

// Config is built once at startup and passed to every component that needs it.
type Config struct {
	CoinMarketCapAPIKey  string
	CoinMarketCapBaseURL string

	SentimentBaseURL string
	SentimentModel   string
	SentimentAPIKey  string

	DatabasePath string
	DatabaseURL  string

	RedisURL          string
	QuoteCacheTTLSecs int

	FetchMinIntervalMs int
	RequestTimeoutSecs int

	LogLevel string

	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string
}

// Get returns the raw value of an environment variable, or "" if unset.
func (c *Config) Get(key string) string {
	return os.Getenv(key)
}

// UsePostgres reports whether DatabaseURL points at a Postgres server
// rather than the local database file.
func (c *Config) UsePostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

func Load() *Config {
	cfg := &Config{
		CoinMarketCapAPIKey: os.Getenv("COINMARKETCAP_API_KEY"),
		SentimentAPIKey:     os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:            strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	if cfg.CoinMarketCapAPIKey == "" {
		log.Warn("COINMARKETCAP_API_KEY not set, quote requests will be rejected")
	}

	cfg.CoinMarketCapBaseURL = stringOr("COINMARKETCAP_BASE_URL", defaultCoinMarketCapBaseURL)
	cfg.SentimentBaseURL = strings.TrimRight(stringOr("OLLAMA_API_URL", defaultSentimentBaseURL), "/")
	cfg.SentimentModel = stringOr("SENTIMENT_MODEL", defaultSentimentModel)
	cfg.DatabasePath = stringOr("DATABASE_PATH", defaultDatabasePath)

	if cfg.DatabaseURL != "" && !cfg.UsePostgres() {
		log.Warn("DATABASE_URL is not a postgres URL, using local database file", "path", cfg.DatabasePath)
		cfg.DatabaseURL = ""
	}

	cfg.QuoteCacheTTLSecs = 60
	if v := strings.TrimSpace(os.Getenv("QUOTE_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuoteCacheTTLSecs = n
		} else {
			log.Warn("invalid QUOTE_CACHE_TTL_SECS, using default", "value", v, "default", cfg.QuoteCacheTTLSecs)
		}
	}

	cfg.FetchMinIntervalMs = minFetchIntervalMs
	if v := strings.TrimSpace(os.Getenv("FETCH_MIN_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= minFetchIntervalMs {
			cfg.FetchMinIntervalMs = n
		} else {
			log.Warn("invalid FETCH_MIN_INTERVAL_MS, using default", "value", v, "default", cfg.FetchMinIntervalMs)
		}
	}

	cfg.RequestTimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSecs = n
		} else {
			log.Warn("invalid REQUEST_TIMEOUT_SECS, using default", "value", v, "default", cfg.RequestTimeoutSecs)
		}
	}

	cfg.LogLevel = strings.ToLower(stringOr("LOG_LEVEL", "info"))

	if v := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			log.Warn("invalid TRACING_ENABLED, tracing disabled", "value", v)
		}
		cfg.TracingEnabled = enabled
	}
	cfg.OTLPEndpoint = stringOr("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint)
	cfg.ServiceName = stringOr("OTEL_SERVICE_NAME", defaultServiceName)

	return cfg
}

func stringOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings, sourced from the environment.
type Config struct {
	Port        string
	Environment string

	// Storage. DatabaseURL selects the Postgres store; when empty the
	// tracker runs on a local SQLite file instead. MongoURI enables the
	// optional snapshot archive mirror.
	DatabaseURL string
	SQLitePath  string
	MongoURI    string

	// Optional Redis backend for the history response cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Upstream provider. The request budget is undocumented upstream, so
	// the per-minute rate defaults low.
	CoinGeckoBaseURL   string
	CoinGeckoAPIKey    string
	UpstreamTimeout    time.Duration
	UpstreamRatePerMin float64

	// Ingestion cadence.
	FetchInterval time.Duration
	TopAssetLimit int

	// API surface.
	HistoryCacheTTL time.Duration
	MaxWSClients    int
	APIRatePerSec   float64
	APIBurst        int
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/market.db"),
		MongoURI:    getEnv("MONGODB_URI", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CoinGeckoBaseURL:   getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:    getEnv("COINGECKO_API_KEY", ""),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamRatePerMin: getEnvFloat("UPSTREAM_RATE_PER_MIN", 10),

		FetchInterval: getEnvDuration("FETCH_INTERVAL", time.Minute),
		TopAssetLimit: getEnvInt("TOP_ASSET_LIMIT", 100),

		HistoryCacheTTL: getEnvDuration("HISTORY_CACHE_TTL", time.Minute),
		MaxWSClients:    getEnvInt("MAX_WS_CLIENTS", 100),
		APIRatePerSec:   getEnvFloat("API_RATE_PER_SEC", 10),
		APIBurst:        getEnvInt("API_BURST", 20),
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using default")
		return defaultValue
	}
	return n
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid float in environment, using default")
		return defaultValue
	}
	return f
}

// getEnvDuration gets a duration environment variable (e.g. "90s", "2m")
// or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration in environment, using default")
		return defaultValue
	}
	return d
}

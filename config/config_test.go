package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "data/market.db", cfg.SQLitePath)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGeckoBaseURL)
	assert.Equal(t, time.Minute, cfg.FetchInterval)
	assert.Equal(t, 100, cfg.TopAssetLimit)
	assert.Equal(t, 100, cfg.MaxWSClients)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")
	t.Setenv("FETCH_INTERVAL", "90s")
	t.Setenv("TOP_ASSET_LIMIT", "50")
	t.Setenv("UPSTREAM_RATE_PER_MIN", "25.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/tracker", cfg.DatabaseURL)
	assert.Equal(t, 90*time.Second, cfg.FetchInterval)
	assert.Equal(t, 50, cfg.TopAssetLimit)
	assert.Equal(t, 25.5, cfg.UpstreamRatePerMin)
}

func TestGetEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("TOP_ASSET_LIMIT", "not-a-number")
	t.Setenv("FETCH_INTERVAL", "soon")
	t.Setenv("UPSTREAM_RATE_PER_MIN", "fast")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.TopAssetLimit)
	assert.Equal(t, time.Minute, cfg.FetchInterval)
	assert.Equal(t, float64(10), cfg.UpstreamRatePerMin)
}

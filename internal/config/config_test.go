package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Quota.DailyCap)
	assert.Equal(t, 5, cfg.Sweep.MaxPages)
	assert.Equal(t, 1800, cfg.Sweep.IdleIntervalSecs)
	assert.Equal(t, int64(1_000_000), cfg.Extract.PriceMin)
	assert.Equal(t, int64(1_000_000_000), cfg.Extract.PriceMax)
	assert.Equal(t, 1, cfg.Cian.RegionID)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RENTSCOUT_QUOTA_DAILY_CAP", "25")
	t.Setenv("RENTSCOUT_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Quota.DailyCap)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}

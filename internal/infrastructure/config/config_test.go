package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dplus-backend", cfg.App.Name)
	assert.Equal(t, "dplus.db", cfg.Database.Path)
	assert.Equal(t, "Asia/Bangkok", cfg.Ingest.Timezone)
	assert.Equal(t, []string{"*.csv", "*.csv.gz"}, cfg.Ingest.TikTokPatterns)
	assert.Equal(t, []string{"*.xlsx"}, cfg.Ingest.ShopeePatterns)
	assert.NotEmpty(t, cfg.Ingest.DenylistKeywords)
	assert.Contains(t, cfg.Ingest.DenylistKeywords, "case")

	assert.Equal(t, 0.20, cfg.Segmentation.RevenueTopFraction)
	assert.Equal(t, 0.20, cfg.Segmentation.RevenueBottomFraction)
	assert.Equal(t, 1.2, cfg.Segmentation.AOVHighMultiplier)
	assert.Equal(t, 0.8, cfg.Segmentation.AOVLowMultiplier)
	assert.Equal(t, 0.67, cfg.Segmentation.ProductHeroShare)
	assert.Equal(t, 5, cfg.Segmentation.MinPopulation)
	assert.Equal(t, 0.10, cfg.Validation.DataLossTolerance)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DPLUS_DATABASE_PATH", "/tmp/orders.db")
	t.Setenv("DPLUS_INGEST_TIMEZONE", "Asia/Jakarta")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/orders.db", cfg.Database.Path)
	assert.Equal(t, "Asia/Jakarta", cfg.Ingest.Timezone)
}

func TestValidate_RejectsBadTimezone(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Ingest.Timezone = "Mars/Olympus"

	err := cfg.validate()
	assert.Error(t, err)
}

func TestValidate_RejectsInvertedAOVMultipliers(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Segmentation.AOVLowMultiplier = 1.5

	err := cfg.validate()
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	loc, err := cfg.Ingest.Location()
	require.NoError(t, err)

	// Bangkok has a fixed +07:00 offset, no DST.
	_, offset := time.Date(2026, 2, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*3600, offset)
}

func TestDSN_AppliesPragmas(t *testing.T) {
	d := DatabaseConfig{Path: "orders.db", BusyTimeout: 5 * time.Second}
	dsn := d.DSN()
	assert.Contains(t, dsn, "file:orders.db")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Ingest       IngestConfig
	Segmentation SegmentationConfig
	Validation   ValidationConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the local sqlite store settings
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IngestConfig holds source-file discovery and normalization settings
type IngestConfig struct {
	// DataDirs are scanned for export files on every ingestion run.
	DataDirs []string
	// TikTokPatterns / ShopeePatterns identify each platform's exports
	// by filename glob.
	TikTokPatterns []string
	ShopeePatterns []string
	// Timezone is the fixed business timezone every naive source
	// timestamp is localized into, exactly once.
	Timezone string
	// DenylistKeywords excludes rows whose product name contains any of
	// these substrings (case-insensitive) before dedup and storage.
	DenylistKeywords []string
	// MaxRowErrors bounds how many row errors are kept per run report.
	MaxRowErrors int
	// MalformedRowTolerance is the fraction of malformed rows above
	// which a whole file is rejected instead of partially ingested.
	MalformedRowTolerance float64
}

// SegmentationConfig lifts the tier thresholds out of the algorithms so
// they are substitutable without touching the segmentation engine.
type SegmentationConfig struct {
	RevenueTopFraction    float64 // share of entities labeled Max (default 0.20)
	RevenueBottomFraction float64 // share of entities labeled Min (default 0.20)
	AOVHighMultiplier     float64 // strictly above mean*multiplier -> Max (default 1.2)
	AOVLowMultiplier      float64 // strictly below mean*multiplier -> Min (default 0.8)
	ProductHeroShare      float64 // cumulative revenue share for Hero products (default 0.67)
	MinPopulation         int     // below this, everything is Middle (default 5)
}

// ValidationConfig holds the merge-gate tolerances
type ValidationConfig struct {
	// DataLossTolerance is the relative shrink in rows or revenue a
	// merge may cause before it is aborted as suspected data loss.
	DataLossTolerance float64
	// SaneDateFloor rejects store dates older than this year during
	// integrity scans.
	SaneDateFloor int
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with DPLUS_ prefix (e.g., DPLUS_DATABASE_PATH)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DPLUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Path:        v.GetString("database.path"),
			BusyTimeout: v.GetDuration("database.busy_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Ingest: IngestConfig{
			DataDirs:              v.GetStringSlice("ingest.data_dirs"),
			TikTokPatterns:        v.GetStringSlice("ingest.tiktok_patterns"),
			ShopeePatterns:        v.GetStringSlice("ingest.shopee_patterns"),
			Timezone:              v.GetString("ingest.timezone"),
			DenylistKeywords:      v.GetStringSlice("ingest.denylist_keywords"),
			MaxRowErrors:          v.GetInt("ingest.max_row_errors"),
			MalformedRowTolerance: v.GetFloat64("ingest.malformed_row_tolerance"),
		},
		Segmentation: SegmentationConfig{
			RevenueTopFraction:    v.GetFloat64("segmentation.revenue_top_fraction"),
			RevenueBottomFraction: v.GetFloat64("segmentation.revenue_bottom_fraction"),
			AOVHighMultiplier:     v.GetFloat64("segmentation.aov_high_multiplier"),
			AOVLowMultiplier:      v.GetFloat64("segmentation.aov_low_multiplier"),
			ProductHeroShare:      v.GetFloat64("segmentation.product_hero_share"),
			MinPopulation:         v.GetInt("segmentation.min_population"),
		},
		Validation: ValidationConfig{
			DataLossTolerance: v.GetFloat64("validation.data_loss_tolerance"),
			SaneDateFloor:     v.GetInt("validation.sane_date_floor"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultDenylist excludes third-party electronics that occasionally show
// up in marketplace exports alongside the brand's own catalogue.
var defaultDenylist = []string{
	"apple", "iphone", "ipad", "macbook", "airpods", "apple watch",
	"samsung", "galaxy", "case", "charger", "cable", "headphone",
	"earphone", "earbuds", "electronics", "accessories", "adapter",
	"tempered glass", "screen protector", "phone cover", "phone case",
	"wireless charger", "power bank", "usb", "lightning", "type-c",
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dplus-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "dplus.db"
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(cfg.Ingest.DataDirs) == 0 {
		cfg.Ingest.DataDirs = []string{"data"}
	}
	if len(cfg.Ingest.TikTokPatterns) == 0 {
		cfg.Ingest.TikTokPatterns = []string{"*.csv", "*.csv.gz"}
	}
	if len(cfg.Ingest.ShopeePatterns) == 0 {
		cfg.Ingest.ShopeePatterns = []string{"*.xlsx"}
	}
	if cfg.Ingest.Timezone == "" {
		cfg.Ingest.Timezone = "Asia/Bangkok"
	}
	if cfg.Ingest.DenylistKeywords == nil {
		cfg.Ingest.DenylistKeywords = defaultDenylist
	}
	if cfg.Ingest.MaxRowErrors == 0 {
		cfg.Ingest.MaxRowErrors = 100
	}
	if cfg.Ingest.MalformedRowTolerance == 0 {
		cfg.Ingest.MalformedRowTolerance = 0.25
	}
	if cfg.Segmentation.RevenueTopFraction == 0 {
		cfg.Segmentation.RevenueTopFraction = 0.20
	}
	if cfg.Segmentation.RevenueBottomFraction == 0 {
		cfg.Segmentation.RevenueBottomFraction = 0.20
	}
	if cfg.Segmentation.AOVHighMultiplier == 0 {
		cfg.Segmentation.AOVHighMultiplier = 1.2
	}
	if cfg.Segmentation.AOVLowMultiplier == 0 {
		cfg.Segmentation.AOVLowMultiplier = 0.8
	}
	if cfg.Segmentation.ProductHeroShare == 0 {
		cfg.Segmentation.ProductHeroShare = 0.67
	}
	if cfg.Segmentation.MinPopulation == 0 {
		cfg.Segmentation.MinPopulation = 5
	}
	if cfg.Validation.DataLossTolerance == 0 {
		cfg.Validation.DataLossTolerance = 0.10
	}
	if cfg.Validation.SaneDateFloor == 0 {
		cfg.Validation.SaneDateFloor = 2020
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		return fmt.Errorf("ingest.timezone %q is not a valid IANA timezone: %w", c.Ingest.Timezone, err)
	}
	if c.Ingest.MalformedRowTolerance < 0 || c.Ingest.MalformedRowTolerance > 1 {
		return fmt.Errorf("ingest.malformed_row_tolerance must be within [0,1], got %f", c.Ingest.MalformedRowTolerance)
	}
	if c.Segmentation.RevenueTopFraction+c.Segmentation.RevenueBottomFraction >= 1 {
		return fmt.Errorf("segmentation top+bottom fractions must sum below 1")
	}
	if c.Segmentation.AOVLowMultiplier >= c.Segmentation.AOVHighMultiplier {
		return fmt.Errorf("segmentation.aov_low_multiplier must be below aov_high_multiplier")
	}
	if c.Segmentation.ProductHeroShare <= 0 || c.Segmentation.ProductHeroShare > 1 {
		return fmt.Errorf("segmentation.product_hero_share must be within (0,1], got %f", c.Segmentation.ProductHeroShare)
	}
	if c.Validation.DataLossTolerance < 0 || c.Validation.DataLossTolerance > 1 {
		return fmt.Errorf("validation.data_loss_tolerance must be within [0,1], got %f", c.Validation.DataLossTolerance)
	}
	return nil
}

// Location resolves the canonical business timezone.
func (c *IngestConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DSN returns the sqlite connection string with pragmas applied.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		d.Path, d.BusyTimeout.Milliseconds())
}

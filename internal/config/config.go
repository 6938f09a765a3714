package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultReviewRecentDays is the window within which a review counts as recent.
	DefaultReviewRecentDays = 365

	// DefaultMinReviewsBasic is the review count treated as a recent-activity
	// hint before listing details are available.
	DefaultMinReviewsBasic = 3

	// DefaultVisitorActivityMinReviews is the review count implying real foot
	// traffic when a listing exposes no review timestamps.
	DefaultVisitorActivityMinReviews = 10

	// DefaultLowActivityMedian is the cohort median above which a zero-review
	// provider is flagged as a low-activity outlier.
	DefaultLowActivityMedian = 5.0

	// DefaultHighActivityPercentile is the cohort percentile above which a
	// provider is flagged as a high-activity outlier.
	DefaultHighActivityPercentile = 0.9
)

// Config holds all configuration for provwatch.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Search     SearchConfig     `mapstructure:"search"`
	Places     PlacesConfig     `mapstructure:"places"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Vocab      VocabConfig      `mapstructure:"vocab"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Export     ExportConfig     `mapstructure:"export"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	API        APIConfig        `mapstructure:"api"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SearchConfig holds the scan region and the discovery search phrases.
// The fixture paths point at JSON listing files replayed as the ad-platform
// and directory channels; empty means the channel contributes nothing.
type SearchConfig struct {
	Region             string   `mapstructure:"region"`
	Keywords           []string `mapstructure:"keywords"`
	AdsFixture         string   `mapstructure:"ads_fixture"`
	DirectoriesFixture string   `mapstructure:"directories_fixture"`
}

// PlacesConfig holds map places API settings.
type PlacesConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxResults   int           `mapstructure:"max_results"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

// String returns a safe representation of PlacesConfig with the API key masked.
func (c PlacesConfig) String() string {
	return fmt.Sprintf("PlacesConfig{APIKey:%s, BaseURL:%s, MaxResults:%d}",
		maskSecret(c.APIKey), c.BaseURL, c.MaxResults)
}

// EnrichConfig controls the per-provider enrichment stage.
type EnrichConfig struct {
	Workers     int           `mapstructure:"workers"`
	Website     bool          `mapstructure:"website"`
	Social      bool          `mapstructure:"social"`
	Registries  bool          `mapstructure:"registries"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// ThresholdsConfig holds the signal thresholds and review windows.
type ThresholdsConfig struct {
	ReviewRecentDays          int     `mapstructure:"review_recent_days"`
	MinReviewsBasic           int     `mapstructure:"min_reviews_basic"`
	VisitorActivityMinReviews int     `mapstructure:"visitor_activity_min_reviews"`
	LowActivityMedian         float64 `mapstructure:"low_activity_median"`
	HighActivityPercentile    float64 `mapstructure:"high_activity_percentile"`
}

// VocabConfig overrides the region-specific keyword vocabularies. Empty
// slices mean "use the built-in defaults".
type VocabConfig struct {
	LocationTerms  []string `mapstructure:"location_terms"`
	RegulatorTerms []string `mapstructure:"regulator_terms"`
}

// RedisConfig holds the registry-lookup cache settings.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig holds PostgreSQL persistence settings.
type StorageConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DSN        string `mapstructure:"dsn"`
	Tag        string `mapstructure:"tag"`
	SoftDelete bool   `mapstructure:"soft_delete"`
}

// String returns a safe representation of StorageConfig with the DSN masked.
func (c StorageConfig) String() string {
	return fmt.Sprintf("StorageConfig{Enabled:%t, DSN:%s, Tag:%s}",
		c.Enabled, maskSecret(c.DSN), c.Tag)
}

// ExportConfig controls report output.
type ExportConfig struct {
	OutputDir    string  `mapstructure:"output_dir"`
	EvidenceDir  string  `mapstructure:"evidence_dir"` // empty = under output_dir
	CSV          bool    `mapstructure:"csv"`
	XLSX         bool    `mapstructure:"xlsx"`
	Redact       bool    `mapstructure:"redact"`
	MinSuspicion float64 `mapstructure:"min_suspicion"`
	Top          int     `mapstructure:"top"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	ServerName string `mapstructure:"server_name"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(secret string) string {
	const visible = 4
	if len(secret) <= visible*2 {
		return "***"
	}
	return secret[:visible] + "****" + secret[len(secret)-visible:]
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("search.region", "Washington State")
	v.SetDefault("search.keywords", []string{
		"daycare", "childcare", "child care", "preschool",
		"infant care", "home daycare",
	})
	v.SetDefault("search.ads_fixture", "")
	v.SetDefault("search.directories_fixture", "")

	v.SetDefault("places.api_key", "")
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.max_results", 60)
	v.SetDefault("places.request_delay", "2s")
	v.SetDefault("places.http_timeout", "20s")

	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.website", true)
	v.SetDefault("enrich.social", true)
	v.SetDefault("enrich.registries", true)
	v.SetDefault("enrich.http_timeout", "15s")
	v.SetDefault("enrich.user_agent", "provwatch/1.0 (childcare oversight research)")

	v.SetDefault("thresholds.review_recent_days", DefaultReviewRecentDays)
	v.SetDefault("thresholds.min_reviews_basic", DefaultMinReviewsBasic)
	v.SetDefault("thresholds.visitor_activity_min_reviews", DefaultVisitorActivityMinReviews)
	v.SetDefault("thresholds.low_activity_median", DefaultLowActivityMedian)
	v.SetDefault("thresholds.high_activity_percentile", DefaultHighActivityPercentile)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.tag", "")
	v.SetDefault("storage.soft_delete", true)

	v.SetDefault("export.output_dir", "provwatch_output")
	v.SetDefault("export.evidence_dir", "")
	v.SetDefault("export.csv", true)
	v.SetDefault("export.xlsx", false)
	v.SetDefault("export.redact", false)
	v.SetDefault("export.min_suspicion", 0.0)
	v.SetDefault("export.top", 10)

	v.SetDefault("mcp.server_name", "provwatch")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".provwatch"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("PROVWATCH")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("places.api_key", "PROVWATCH_PLACES_API_KEY", "MAPS_API_KEY")
	_ = v.BindEnv("storage.dsn", "PROVWATCH_STORAGE_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "PROVWATCH_REDIS_ADDR")
	_ = v.BindEnv("redis.password", "PROVWATCH_REDIS_PASSWORD")
	_ = v.BindEnv("logging.level", "PROVWATCH_LOG_LEVEL")
	_ = v.BindEnv("api.listen_addr", "PROVWATCH_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "PROVWATCH_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, defaults + env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Search.Region == "" {
		return fmt.Errorf("search.region must not be empty")
	}
	if c.Places.MaxResults <= 0 {
		return fmt.Errorf("places.max_results must be greater than 0")
	}
	if c.Places.HTTPTimeout <= 0 {
		return fmt.Errorf("places.http_timeout must be greater than 0")
	}
	if c.Places.RequestDelay < 0 {
		return fmt.Errorf("places.request_delay must be >= 0")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers must be greater than 0")
	}
	if c.Enrich.HTTPTimeout <= 0 {
		return fmt.Errorf("enrich.http_timeout must be greater than 0")
	}
	if c.Thresholds.ReviewRecentDays <= 0 {
		return fmt.Errorf("thresholds.review_recent_days must be greater than 0")
	}
	if c.Thresholds.MinReviewsBasic < 0 {
		return fmt.Errorf("thresholds.min_reviews_basic must be >= 0")
	}
	if c.Thresholds.VisitorActivityMinReviews < 0 {
		return fmt.Errorf("thresholds.visitor_activity_min_reviews must be >= 0")
	}
	if c.Thresholds.LowActivityMedian < 0 {
		return fmt.Errorf("thresholds.low_activity_median must be >= 0")
	}
	if c.Thresholds.HighActivityPercentile < 0 || c.Thresholds.HighActivityPercentile > 1 {
		return fmt.Errorf("thresholds.high_activity_percentile must be between 0 and 1")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty when redis is enabled")
	}
	if c.Storage.Enabled && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must not be empty when storage is enabled")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir must not be empty")
	}
	if c.Export.Top < 0 {
		return fmt.Errorf("export.top must be >= 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Package config provides configuration management for the analytics pipeline.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"custetl/pkg/utils"
)

// Configuration validation errors.
var (
	ErrInvalidClusterCount      = errors.New("pipeline.cluster_count must be at least 1")
	ErrInvalidMaxIterations     = errors.New("pipeline.max_iterations must be at least 1")
	ErrInvalidRestarts          = errors.New("pipeline.restarts must be at least 1")
	ErrNoDateFormats            = errors.New("pipeline.date_formats must list at least one layout")
	ErrInvalidAsOf              = errors.New("pipeline.as_of must be a YYYY-MM-DD date")
	ErrMissingCustomersPath     = errors.New("extract.customers_path is required")
	ErrMissingAPIURL            = errors.New("extract.purchase_api_url is required")
	ErrInvalidAPIURL            = errors.New("extract.purchase_api_url must be an absolute http(s) URL")
	ErrInvalidMobileDigits      = errors.New("extract.min_mobile_digits must be at least 1")
	ErrInvalidMaxAttempts       = errors.New("extract.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("extract.retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("extract.retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("extract.retry.timeout_sec must be at least 1")
	ErrMissingOutputDir         = errors.New("output.dir is required")
	ErrInvalidStorageDriver     = errors.New("storage.driver must be one of: none, sqlite, postgres")
	ErrMissingStorageDSN        = errors.New("storage.dsn is required for the selected driver")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidDebounce          = errors.New("watch.debounce_ms must be non-negative")
)

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AsOfLayout is the layout of pipeline.as_of.
const AsOfLayout = "2006-01-02"

// Config represents the complete pipeline configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Extract  ExtractConfig  `yaml:"extract"`
	Output   OutputConfig   `yaml:"output"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
}

// PipelineConfig contains the transform parameters.
type PipelineConfig struct {
	// DateFormats are Go time layouts tried in order when parsing purchase dates.
	DateFormats   []string `yaml:"date_formats"`
	AsOf          string   `yaml:"as_of"`
	ClusterCount  int      `yaml:"cluster_count"`
	RandomSeed    uint64   `yaml:"random_seed"`
	MaxIterations int      `yaml:"max_iterations"`
	Restarts      int      `yaml:"restarts"`
}

// ExtractConfig defines where customer and purchase data come from.
type ExtractConfig struct {
	CustomersPath   string      `yaml:"customers_path"`
	PurchaseAPIURL  string      `yaml:"purchase_api_url"`
	Retry           RetryPolicy `yaml:"retry"`
	MinMobileDigits int         `yaml:"min_mobile_digits"`
}

// RetryPolicy defines retry behavior for the purchase-history request.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// OutputConfig defines where artifacts are written.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	ReportPath string `yaml:"report_path"`
}

// StorageConfig selects the database sink.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WatchConfig controls the input watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// Default returns a complete, valid configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			ClusterCount:  3,
			RandomSeed:    42,
			MaxIterations: 300,
			Restarts:      10,
			DateFormats:   []string{"2006-01-02", "02-01-2006"},
		},
		Extract: ExtractConfig{
			CustomersPath:   "data/customer_profiles.csv",
			PurchaseAPIURL:  "http://127.0.0.1:8000/purchase-history",
			MinMobileDigits: 10,
			Retry: RetryPolicy{
				MaxAttempts:       1,
				InitialDelayMs:    500,
				MaxDelayMs:        30000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
		},
		Output: OutputConfig{
			Dir:        "data",
			ReportPath: "data/segment_report.md",
		},
		Storage: StorageConfig{Driver: DriverNone},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Watch:   WatchConfig{DebounceMs: 500},
	}
}

// LoadConfig loads configuration from a YAML file layered over Default, then
// applies .env and environment overrides.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to a YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads an optional .env file and lets the environment override
// endpoint and storage settings. Database credentials follow the DB_* naming
// used by the reporting database deployment.
func (c *Config) ApplyEnv() {
	// .env is optional
	_ = godotenv.Load()

	if v := os.Getenv("PURCHASE_API_URL"); v != "" {
		c.Extract.PurchaseAPIURL = v
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv("PIPELINE_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Pipeline.RandomSeed = seed
		}
	}

	if c.Storage.Driver == DriverPostgres && c.Storage.DSN == "" {
		c.Storage.DSN = postgresDSNFromEnv()
	}
}

func postgresDSNFromEnv() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("DB_USER", "postgres"), getEnv("DB_PASSWORD", "postgres")),
		Host:   getEnv("DB_HOST", "localhost") + ":" + getEnv("DB_PORT", "5432"),
		Path:   "/" + getEnv("DB_NAME", "customer_reporting"),
	}

	q := u.Query()
	q.Set("sslmode", getEnv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()

	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ClusterCount < 1 {
		return ErrInvalidClusterCount
	}

	if p.MaxIterations < 1 {
		return ErrInvalidMaxIterations
	}

	if p.Restarts < 1 {
		return ErrInvalidRestarts
	}

	if len(p.DateFormats) == 0 {
		return ErrNoDateFormats
	}

	for i, layout := range p.DateFormats {
		if layout == "" {
			return fmt.Errorf("%w: date_formats[%d] is empty", ErrNoDateFormats, i)
		}
	}

	if p.AsOf != "" {
		if _, err := time.Parse(AsOfLayout, p.AsOf); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAsOf, err)
		}
	}

	// Validate extract config
	if c.Extract.CustomersPath == "" {
		return ErrMissingCustomersPath
	}

	if c.Extract.PurchaseAPIURL == "" {
		return ErrMissingAPIURL
	}

	if !utils.NewHTTPHelper().IsValidURL(c.Extract.PurchaseAPIURL) {
		return ErrInvalidAPIURL
	}

	if c.Extract.MinMobileDigits < 1 {
		return ErrInvalidMobileDigits
	}

	// Validate retry policy
	r := c.Extract.Retry
	if r.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if r.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if r.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if r.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	switch c.Storage.Driver {
	case DriverNone:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: %s", ErrMissingStorageDSN, c.Storage.Driver)
		}
	default:
		return ErrInvalidStorageDriver
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	if c.Watch.DebounceMs < 0 {
		return ErrInvalidDebounce
	}

	return nil
}

// AsOf returns the reference date for recency metrics: the configured as_of,
// or today in UTC. The result is always midnight UTC.
func (c *Config) AsOf() time.Time {
	if c.Pipeline.AsOf != "" {
		if t, err := time.Parse(AsOfLayout, c.Pipeline.AsOf); err == nil {
			return t
		}
	}

	now := time.Now().UTC()

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// ArtifactPath returns the path of a named artifact inside the output directory.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.Output.Dir, name+".csv")
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Clusters: %d, Seed: %d, API: %s, Output: %s, Storage: %s}",
		c.Pipeline.ClusterCount,
		c.Pipeline.RandomSeed,
		c.Extract.PurchaseAPIURL,
		c.Output.Dir,
		c.Storage.Driver,
	)
}

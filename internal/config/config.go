// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Valuation ValuationConfig `yaml:"valuation"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Sync      SyncConfig      `yaml:"sync"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings. Driver "memory"
// selects the in-process store for single-node use and tests.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// CatalogConfig defines the reference catalog source.
type CatalogConfig struct {
	// Path to a CSV catalog; empty selects the embedded default dataset.
	Path string `yaml:"path"`
}

// ValuationConfig defines depreciation curve and classifier tuning.
type ValuationConfig struct {
	// Curve points as age→factor pairs; empty selects the stock curve.
	Curve []CurvePointConfig `yaml:"curve"`
	// Floor is the minimum fraction of MSRP (default 0.20).
	Floor float64 `yaml:"floor"`
	// OutlierIQRMultiplier tunes the statistical fallback (default 1.5).
	OutlierIQRMultiplier float64 `yaml:"outlier_iqr_multiplier"`
	// AnalyzeWorkers bounds batch-analysis parallelism (default 4).
	AnalyzeWorkers int `yaml:"analyze_workers"`
}

// CurvePointConfig is one depreciation breakpoint.
type CurvePointConfig struct {
	AgeYears int     `yaml:"age_years"`
	Factor   float64 `yaml:"factor"`
}

// DedupConfig defines fuzzy-duplicate detection thresholds.
type DedupConfig struct {
	// TitleSimilarity in [0,1]; pairs above it with close prices are flagged
	// (default 0.85).
	TitleSimilarity float64 `yaml:"title_similarity"`
	// PriceTolerance as a fraction of the larger price (default 0.05).
	PriceTolerance float64 `yaml:"price_tolerance"`
	// PriceConflictWindow bounds "near-simultaneous" for price escalation
	// (default 5m).
	PriceConflictWindow time.Duration `yaml:"price_conflict_window"`
}

// SyncConfig defines transport settings.
type SyncConfig struct {
	Blob      BlobConfig      `yaml:"blob"`
	CloudCode CloudCodeConfig `yaml:"cloud_code"`
	QR        QRConfig        `yaml:"qr"`
	Live      LiveConfig      `yaml:"live"`
}

// BlobConfig defines the local-file fallback transport.
type BlobConfig struct {
	// Path of the exported dataset blob (default "pwc-listings.json").
	Path string `yaml:"path"`
}

// CloudCodeConfig defines the short-lived cloud code transport.
type CloudCodeConfig struct {
	// Providers are tried in order; each entry is a provider base URL.
	Providers []string `yaml:"providers"`
	// TTL is advisory; the backing provider enforces expiry (default 24h).
	TTL time.Duration `yaml:"ttl"`
	// Timeout per provider attempt (default 10s).
	Timeout time.Duration `yaml:"timeout"`
	// RatePerSecond and Burst bound provider calls (defaults 5, 10).
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// QRConfig defines QR payload chunking.
type QRConfig struct {
	// ChunkSize is the max encoded bytes per code (default 1800).
	ChunkSize int `yaml:"chunk_size"`
	// Dir receives rendered chunk images on push and is scanned for decoded
	// chunk files on pull (default "qr-sync").
	Dir string `yaml:"dir"`
}

// LiveConfig defines the live session channel.
type LiveConfig struct {
	// RelayURL is the websocket relay endpoint.
	RelayURL string `yaml:"relay_url"`
	// PingInterval keeps idle sessions alive (default 30s).
	PingInterval time.Duration `yaml:"ping_interval"`
}

// ScheduleConfig defines cron intervals.
type ScheduleConfig struct {
	TrendRefreshInterval time.Duration `yaml:"trend_refresh_interval"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a config with all defaults applied and the in-memory
// store selected; used when no config file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Driver = "memory"
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyValuationDefaults(&cfg.Valuation)
	applyDedupDefaults(&cfg.Dedup)
	applySyncDefaults(&cfg.Sync)
	applyScheduleDefaults(&cfg.Schedule)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = "postgres"
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyValuationDefaults(v *ValuationConfig) {
	if v.Floor == 0 {
		v.Floor = 0.20
	}
	if v.OutlierIQRMultiplier == 0 {
		v.OutlierIQRMultiplier = 1.5
	}
	if v.AnalyzeWorkers == 0 {
		v.AnalyzeWorkers = 4
	}
}

func applyDedupDefaults(d *DedupConfig) {
	if d.TitleSimilarity == 0 {
		d.TitleSimilarity = 0.85
	}
	if d.PriceTolerance == 0 {
		d.PriceTolerance = 0.05
	}
	if d.PriceConflictWindow == 0 {
		d.PriceConflictWindow = 5 * time.Minute
	}
}

func applySyncDefaults(s *SyncConfig) {
	if s.Blob.Path == "" {
		s.Blob.Path = "pwc-listings.json"
	}
	if s.QR.Dir == "" {
		s.QR.Dir = "qr-sync"
	}
	if s.CloudCode.TTL == 0 {
		s.CloudCode.TTL = 24 * time.Hour
	}
	if s.CloudCode.Timeout == 0 {
		s.CloudCode.Timeout = 10 * time.Second
	}
	if s.CloudCode.RatePerSecond == 0 {
		s.CloudCode.RatePerSecond = 5.0
	}
	if s.CloudCode.Burst == 0 {
		s.CloudCode.Burst = 10
	}
	if s.QR.ChunkSize == 0 {
		s.QR.ChunkSize = 1800
	}
	if s.Live.PingInterval == 0 {
		s.Live.PingInterval = 30 * time.Second
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.TrendRefreshInterval == 0 {
		s.TrendRefreshInterval = 6 * time.Hour
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required for the postgres driver"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required for the postgres driver"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, errors.New("database.user is required for the postgres driver"))
		}
	case "memory":
		// nothing to validate
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", cfg.Database.Driver))
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}

	if cfg.Dedup.TitleSimilarity < 0 || cfg.Dedup.TitleSimilarity > 1 {
		errs = append(errs, fmt.Errorf("dedup.title_similarity %v must be in [0,1]", cfg.Dedup.TitleSimilarity))
	}

	if cfg.Valuation.Floor < 0 || cfg.Valuation.Floor >= 1 {
		errs = append(errs, fmt.Errorf("valuation.floor %v must be in [0,1)", cfg.Valuation.Floor))
	}

	prev := 0.0
	for i, p := range cfg.Valuation.Curve {
		if i > 0 && p.Factor > prev {
			errs = append(errs, fmt.Errorf("valuation.curve must be non-increasing (point %d)", i))
			break
		}
		prev = p.Factor
	}

	return errors.Join(errs...)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/gains/internal/db"
	"github.com/rustyeddy/gains/quote"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Quote    QuoteConfig    `json:"quote" yaml:"quote"`
	Report   ReportConfig   `json:"report" yaml:"report"`
	Source   SourceConfig   `json:"source" yaml:"source"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// ServerConfig contains HTTP listener parameters
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	Mode            string        `json:"mode" yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite3" or "mysql"
	DSN    string `json:"dsn" yaml:"dsn"`
}

// QuoteConfig configures the price oracle. The API token is never stored in
// the file; it is read from TokenEnv or TokenFile.
type QuoteConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	TokenEnv  string `json:"token_env" yaml:"token_env"`
	TokenFile string `json:"token_file,omitempty" yaml:"token_file,omitempty"`
	Token     string `json:"-" yaml:"-"`

	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	Attempts        int           `json:"attempts" yaml:"attempts"`
	Backoff         time.Duration `json:"backoff" yaml:"backoff"`
	MaxBackoff      time.Duration `json:"max_backoff" yaml:"max_backoff"`
	RateLimit       float64       `json:"rate_limit" yaml:"rate_limit"`
	Burst           int           `json:"burst" yaml:"burst"`
	CacheTTL        time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	BreakerFailures uint32        `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
	Workers         int           `json:"workers" yaml:"workers"`
}

// ReportConfig contains report defaults
type ReportConfig struct {
	Long           bool `json:"long" yaml:"long"`
	ReportOversell bool `json:"report_oversell" yaml:"report_oversell"`
}

type SourceConfig struct {
	Type string `json:"type" yaml:"type"` // "mock" or "sql"
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // "json" or "text"
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"json", "text"}
	sourceTypes = []string{"mock", "sql"}
	ginModes    = []string{"debug", "release", "test"}
)

// Load builds the effective configuration: defaults, then the file at path
// (if any), then .env and the process environment, then the quote token.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.ResolveToken(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML) on top of the
// defaults and validates it. The environment is not consulted.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides file values with GAINS_* environment variables.
func (c *Config) ApplyEnv() {
	set := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	set("GAINS_ADDR", &c.Server.Addr)
	set("GAINS_DB_DRIVER", &c.Database.Driver)
	set("GAINS_DB_DSN", &c.Database.DSN)
	set("GAINS_LOG_LEVEL", &c.Log.Level)
	set("GAINS_QUOTE_URL", &c.Quote.BaseURL)
	set("GAINS_SOURCE", &c.Source.Type)
}

// ResolveToken fills Quote.Token from the environment, falling back to the
// token file. Having no token at all is not an error; open positions are then
// reported without a price.
func (c *Config) ResolveToken() error {
	if c.Quote.TokenEnv != "" {
		if v := strings.TrimSpace(os.Getenv(c.Quote.TokenEnv)); v != "" {
			c.Quote.Token = v
			return nil
		}
	}
	if c.Quote.TokenFile != "" {
		b, err := os.ReadFile(c.Quote.TokenFile)
		if err != nil {
			return fmt.Errorf("read quote token file: %w", err)
		}
		c.Quote.Token = strings.TrimSpace(string(b))
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(slices.Contains(ginModes, c.Server.Mode), "server.mode must be one of %v", ginModes)
	check(c.Server.ReadTimeout >= 0 && c.Server.WriteTimeout >= 0, "server timeouts must not be negative")

	check(db.Supported(c.Database.Driver), "database.driver must be one of %v", db.Drivers)
	check(c.Database.DSN != "" || c.Source.Type == "mock", "database.dsn is required")

	check(c.Quote.BaseURL != "", "quote.base_url is required")
	check(c.Quote.Timeout > 0, "quote.timeout must be positive")
	check(c.Quote.Attempts >= 1, "quote.attempts must be at least 1")
	check(c.Quote.RateLimit >= 0, "quote.rate_limit must not be negative")
	check(c.Quote.RateLimit == 0 || c.Quote.Burst >= 1, "quote.burst must be at least 1 when rate_limit is set")
	check(c.Quote.CacheTTL >= 0, "quote.cache_ttl must not be negative")
	check(c.Quote.Workers >= 1, "quote.workers must be at least 1")

	check(slices.Contains(sourceTypes, c.Source.Type), "source.type must be one of %v", sourceTypes)

	check(slices.Contains(logLevels, c.Log.Level), "log.level must be one of %v", logLevels)
	check(slices.Contains(logFormats, c.Log.Format), "log.format must be one of %v", logFormats)

	return errors.Join(errs...)
}

// ClientConfig converts the section to the quote client's settings.
func (q QuoteConfig) ClientConfig() quote.Config {
	return quote.Config{
		BaseURL:         q.BaseURL,
		Token:           q.Token,
		Timeout:         q.Timeout,
		Attempts:        q.Attempts,
		Backoff:         q.Backoff,
		MaxBackoff:      q.MaxBackoff,
		RateLimit:       q.RateLimit,
		Burst:           q.Burst,
		CacheTTL:        q.CacheTTL,
		BreakerFailures: q.BreakerFailures,
		BreakerCooldown: q.BreakerCooldown,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	qc := quote.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "gains.db",
		},
		Quote: QuoteConfig{
			BaseURL:         qc.BaseURL,
			TokenEnv:        "FINNHUB_TOKEN",
			Timeout:         qc.Timeout,
			Attempts:        qc.Attempts,
			Backoff:         qc.Backoff,
			MaxBackoff:      qc.MaxBackoff,
			RateLimit:       qc.RateLimit,
			Burst:           qc.Burst,
			CacheTTL:        qc.CacheTTL,
			BreakerFailures: qc.BreakerFailures,
			BreakerCooldown: qc.BreakerCooldown,
			Workers:         4,
		},
		Report: ReportConfig{
			Long: true,
		},
		Source: SourceConfig{
			Type: "mock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

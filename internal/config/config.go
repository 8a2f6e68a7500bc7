// Package config loads the service configuration from YAML, .env and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceBadger   = "badger"
	SourceHTTP     = "http"
)

// DefaultHTTPRetries is how many times a failed provider request is retried
const DefaultHTTPRetries = 3

// Config holds all application configuration.
type Config struct {
	Server struct {
		ListenAddr      string        `yaml:"listen_addr"`
		Timezone        string        `yaml:"timezone"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Chart struct {
		BaseCurrency    string        `yaml:"base_currency"`
		DefaultCurrency string        `yaml:"default_currency"`
		DefaultWindow   time.Duration `yaml:"default_window"`
	} `yaml:"chart"`
	Source struct {
		Kind      string `yaml:"kind"`
		DSN       string `yaml:"dsn"`
		BadgerDir string `yaml:"badger_dir"`
		HTTP      struct {
			BaseURL    string        `yaml:"base_url"`
			Timeout    time.Duration `yaml:"timeout"`
			Retries    uint64        `yaml:"retries"`
			RetryDelay time.Duration `yaml:"retry_delay"`
		} `yaml:"http"`
	} `yaml:"source"`
	Cache struct {
		CurrenciesTTL time.Duration `yaml:"currencies_ttl"`
		RedisAddr     string        `yaml:"redis_addr"`
	} `yaml:"cache"`
	Schedule struct {
		CacheCleanupCron    string `yaml:"cache_cleanup_cron"`
		CurrencyRefreshCron string `yaml:"currency_refresh_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Set before the overlay: retries: 0 disables retries
	cfg.Source.HTTP.Retries = DefaultHTTPRetries

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CHART_TIMEZONE"); v != "" {
		c.Server.Timezone = v
	}
	if v := os.Getenv("BASE_CURRENCY"); v != "" {
		c.Chart.BaseCurrency = v
	}
	if v := os.Getenv("DEFAULT_CURRENCY"); v != "" {
		c.Chart.DefaultCurrency = v
	}
	if v := os.Getenv("SOURCE_KIND"); v != "" {
		c.Source.Kind = v
	}
	if v := os.Getenv("SOURCE_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv("BADGER_DIR"); v != "" {
		c.Source.BadgerDir = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Source.HTTP.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_RETRIES"); v != "" {
		retries, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PROVIDER_RETRIES: %w", err)
		}
		c.Source.HTTP.Retries = retries
	}
	if v := os.Getenv("CURRENCIES_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CURRENCIES_TTL: %w", err)
		}
		c.Cache.CurrenciesTTL = ttl
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.Timezone == "" {
		c.Server.Timezone = "Local"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Chart.BaseCurrency == "" {
		c.Chart.BaseCurrency = "MXN"
	}
	if c.Chart.DefaultCurrency == "" {
		c.Chart.DefaultCurrency = "USD"
	}
	if c.Chart.DefaultWindow == 0 {
		c.Chart.DefaultWindow = 7 * 24 * time.Hour
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceSQLite
	}
	c.Source.Kind = strings.ToLower(c.Source.Kind)
	if c.Source.Kind == SourceSQLite && c.Source.DSN == "" {
		c.Source.DSN = "data/exchange_rates.db"
	}
	if c.Source.BadgerDir == "" {
		c.Source.BadgerDir = "data/badger"
	}
	if c.Source.HTTP.Timeout == 0 {
		c.Source.HTTP.Timeout = 10 * time.Second
	}
	if c.Source.HTTP.RetryDelay == 0 {
		c.Source.HTTP.RetryDelay = 500 * time.Millisecond
	}
	if c.Cache.CurrenciesTTL == 0 {
		c.Cache.CurrenciesTTL = 10 * time.Minute
	}
	if c.Schedule.CacheCleanupCron == "" {
		c.Schedule.CacheCleanupCron = "0 */5 * * * *"
	}
	if c.Schedule.CurrencyRefreshCron == "" {
		c.Schedule.CurrencyRefreshCron = "0 0 * * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Location resolves the configured time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("server.timezone: %w", err)
	}
	return loc, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceSQLite, SourcePostgres:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for source.kind %s", c.Source.Kind)
		}
	case SourceBadger:
		if c.Source.BadgerDir == "" {
			return fmt.Errorf("source.badger_dir is required for source.kind badger")
		}
	case SourceHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return fmt.Errorf("source.http.base_url is required for source.kind http")
		}
	default:
		return fmt.Errorf("source.kind must be one of sqlite, postgres, badger, http, got %q", c.Source.Kind)
	}
	if strings.TrimSpace(c.Chart.BaseCurrency) == "" {
		return fmt.Errorf("chart.base_currency is required")
	}
	if c.Chart.DefaultWindow < 0 {
		return fmt.Errorf("chart.default_window must be positive")
	}
	if c.Cache.CurrenciesTTL < 0 {
		return fmt.Errorf("cache.currencies_ttl must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Package config loads server configuration from YAML with environment
// overrides. Every key has a default so the binary runs with no config
// file at all; env vars use the FINPROV_ prefix with dots replaced by
// underscores (FINPROV_SOURCES_POLYGON_API_KEY).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminEndpoints gates the reset and fail-injection routes.
	AdminEndpoints bool `mapstructure:"admin_endpoints"`
}

// Source configures one upstream adapter. Lower priority means tried
// first; priorities must be unique across enabled sources.
type Source struct {
	Enabled   bool    `mapstructure:"enabled"`
	Priority  int     `mapstructure:"priority"`
	APIKey    string  `mapstructure:"api_key"`
	BaseURL   string  `mapstructure:"base_url"`
	UserAgent string  `mapstructure:"user_agent"`
	RPS       float64 `mapstructure:"rps"`
	Burst     int     `mapstructure:"burst"`
}

type Health struct {
	DegradedThreshold    int           `mapstructure:"degraded_threshold"`
	UnavailableThreshold int           `mapstructure:"unavailable_threshold"`
	CoolDown             time.Duration `mapstructure:"cool_down"`
	AuthCoolDown         time.Duration `mapstructure:"auth_cool_down"`
}

type Fetch struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

type Cache struct {
	MaxItems     int           `mapstructure:"max_items"`
	QuoteTTL     time.Duration `mapstructure:"quote_ttl"`
	CompanyTTL   time.Duration `mapstructure:"company_ttl"`
	HistoryTTL   time.Duration `mapstructure:"history_ttl"`
	StatementTTL time.Duration `mapstructure:"statement_ttl"`
}

type Config struct {
	Server  Server            `mapstructure:"server"`
	Sources map[string]Source `mapstructure:"sources"`
	Health  Health            `mapstructure:"health"`
	Fetch   Fetch             `mapstructure:"fetch"`
	Cache   Cache             `mapstructure:"cache"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.admin_endpoints", true)

	v.SetDefault("sources.yahoo.enabled", true)
	v.SetDefault("sources.yahoo.priority", 1)
	v.SetDefault("sources.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.yahoo.rps", 5.0)
	v.SetDefault("sources.yahoo.burst", 10)

	v.SetDefault("sources.polygon.enabled", true)
	v.SetDefault("sources.polygon.priority", 2)
	v.SetDefault("sources.polygon.api_key", "")
	v.SetDefault("sources.polygon.base_url", "https://api.polygon.io")
	v.SetDefault("sources.polygon.rps", 5.0)
	v.SetDefault("sources.polygon.burst", 10)

	v.SetDefault("sources.secdata.enabled", true)
	v.SetDefault("sources.secdata.priority", 3)
	v.SetDefault("sources.secdata.base_url", "https://data.sec.gov")
	v.SetDefault("sources.secdata.user_agent", "")
	v.SetDefault("sources.secdata.rps", 5.0)
	v.SetDefault("sources.secdata.burst", 5)

	v.SetDefault("health.degraded_threshold", 2)
	v.SetDefault("health.unavailable_threshold", 5)
	v.SetDefault("health.cool_down", 5*time.Minute)
	v.SetDefault("health.auth_cool_down", 15*time.Minute)

	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.backoff_initial", 500*time.Millisecond)
	v.SetDefault("fetch.backoff_max", 5*time.Second)
	v.SetDefault("fetch.attempt_timeout", 10*time.Second)
	v.SetDefault("fetch.fetch_timeout", 45*time.Second)

	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("cache.quote_ttl", 15*time.Second)
	v.SetDefault("cache.company_ttl", 24*time.Hour)
	v.SetDefault("cache.history_ttl", time.Hour)
	v.SetDefault("cache.statement_ttl", time.Hour)

	v.SetDefault("log_level", "info")
}

// Load reads config from path (or ./config.yaml when path is empty),
// applies env overrides and validates the result. A missing file is
// fine; defaults carry the whole configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FINPROV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/finance-provider")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	enabled := 0
	byPriority := make(map[int]string)
	for name, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if other, dup := byPriority[src.Priority]; dup {
			return fmt.Errorf("config: sources %q and %q share priority %d", other, name, src.Priority)
		}
		byPriority[src.Priority] = name
	}
	if enabled == 0 {
		return fmt.Errorf("config: no sources enabled")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

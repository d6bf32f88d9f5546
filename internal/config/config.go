// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. GUUGLE_CRAWLER_WORKERS.
const EnvPrefix = "GUUGLE"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig locates the page store. Path is a SQLite file path or a
// postgres:// DSN.
type StoreConfig struct {
	Path            string        `mapstructure:"path"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// CrawlerConfig governs the worker pool and retry behavior.
type CrawlerConfig struct {
	Workers              int           `mapstructure:"workers"`
	Seeds                []string      `mapstructure:"seeds"`
	IdleBackoff          time.Duration `mapstructure:"idle_backoff"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay        time.Duration `mapstructure:"retry_max_delay"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
}

// HTTPConfig configures the outbound fetch client.
type HTTPConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxBodyBytes     int           `mapstructure:"max_body_bytes"`
	RateLimitPerHost float64       `mapstructure:"rate_limit_per_host"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
}

// ServerConfig controls the search HTTP server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAmount      int           `mapstructure:"max_amount"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// MetricsConfig controls the standalone metrics listener used during crawls.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Verbose     bool `mapstructure:"verbose"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"store":        "store.path",
	"verbose":      "logging.verbose",
	"workers":      "crawler.workers",
	"seed":         "crawler.seeds",
	"metrics-addr": "metrics.addr",
	"addr":         "server.addr",
}

// Load builds a Config from defaults, an optional file, the environment and
// any bound command line flags, in increasing order of precedence. flags may
// be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "./database.db3")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.max_conn_lifetime", "30m")
	v.SetDefault("crawler.workers", 5)
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.idle_backoff", "100ms")
	v.SetDefault("crawler.max_retries", 2)
	v.SetDefault("crawler.retry_base_delay", "250ms")
	v.SetDefault("crawler.retry_max_delay", "5s")
	v.SetDefault("crawler.max_consecutive_errors", 5)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "guugle-bot/0.1")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.rate_limit_per_host", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_amount", 100)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.verbose", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path must be set")
	}
	if c.Crawler.Workers <= 0 {
		return errors.New("crawler.workers must be > 0")
	}
	if c.Crawler.IdleBackoff <= 0 {
		return errors.New("crawler.idle_backoff must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return errors.New("crawler.max_retries must be >= 0")
	}
	if c.Crawler.RetryBaseDelay <= 0 || c.Crawler.RetryMaxDelay < c.Crawler.RetryBaseDelay {
		return errors.New("crawler.retry_base_delay must be > 0 and <= crawler.retry_max_delay")
	}
	if c.Crawler.MaxConsecutiveErrors <= 0 {
		return errors.New("crawler.max_consecutive_errors must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.RateLimitPerHost < 0 {
		return errors.New("http.rate_limit_per_host must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// APIKey returns the key the search API should require, or "" when auth is off.
func (c Config) APIKey() string {
	if !c.Auth.Enabled {
		return ""
	}
	return c.Auth.APIKey
}

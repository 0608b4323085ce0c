// Package config loads race-results settings from defaults, an optional
// YAML file and RACE_RESULTS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/race-results/internal/enrich"
	"github.com/pfrederiksen/race-results/internal/logger"
	"github.com/pfrederiksen/race-results/internal/platform"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "RACE_RESULTS"
	DefaultDataDir = "~/.local/share/race-results"
)

// Config holds all configuration for the application
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Data    DataConfig    `mapstructure:"data"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Browser BrowserConfig `mapstructure:"browser"`
	RTRT    RTRTConfig    `mapstructure:"rtrt"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DataConfig holds the order store location
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// HTTPConfig holds settings for the JSON and HTML adapters
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Sessions   int64         `mapstructure:"sessions"`
	ChromePath string        `mapstructure:"chrome_path"`
	Headless   bool          `mapstructure:"headless"`
}

// RTRTConfig holds RTRT API credentials
type RTRTConfig struct {
	AppID string `mapstructure:"app_id"`
	Token string `mapstructure:"token"`
}

// EnrichConfig tunes the enrichment pool
type EnrichConfig struct {
	Workers        int           `mapstructure:"workers"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
}

// Load reads configuration. An explicit path must exist; otherwise
// race-results.yaml is looked up in the working directory and
// ~/.config/race-results and skipped when absent. Overrides, keyed like
// "enrich.workers", win over every other source.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("race-results")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/race-results")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("data.dir", DefaultDataDir)

	v.SetDefault("http.timeout", platform.DefaultHTTPTimeout)
	v.SetDefault("http.user_agent", platform.UserAgent)

	v.SetDefault("browser.timeout", platform.DefaultBrowserTimeout)
	v.SetDefault("browser.sessions", platform.DefaultBrowserSessions)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.headless", true)

	v.SetDefault("rtrt.app_id", "")
	v.SetDefault("rtrt.token", "")

	v.SetDefault("enrich.workers", enrich.DefaultWorkers)
	v.SetDefault("enrich.rate_per_second", enrich.DefaultRatePerSecond)
	v.SetDefault("enrich.max_attempts", enrich.DefaultMaxAttempts)
	v.SetDefault("enrich.initial_backoff", enrich.DefaultInitialBackoff)
	v.SetDefault("enrich.max_backoff", enrich.DefaultMaxBackoff)
	v.SetDefault("enrich.metrics_addr", "")
}

func validate(cfg *Config) error {
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Data.Dir) == "" {
		return fmt.Errorf("data dir is required (set %s_DATA_DIR)", EnvPrefix)
	}
	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got: %s", cfg.HTTP.Timeout)
	}
	if cfg.Browser.Timeout <= 0 {
		return fmt.Errorf("browser timeout must be positive, got: %s", cfg.Browser.Timeout)
	}
	if cfg.Browser.Sessions < 1 {
		return fmt.Errorf("browser sessions must be at least 1, got: %d", cfg.Browser.Sessions)
	}
	if cfg.Enrich.Workers < 1 {
		return fmt.Errorf("enrich workers must be at least 1, got: %d", cfg.Enrich.Workers)
	}
	if cfg.Enrich.RatePerSecond < 0 {
		return fmt.Errorf("enrich rate must not be negative, got: %g", cfg.Enrich.RatePerSecond)
	}
	if cfg.Enrich.MaxAttempts < 1 {
		return fmt.Errorf("enrich max attempts must be at least 1, got: %d", cfg.Enrich.MaxAttempts)
	}
	if cfg.Enrich.MaxBackoff < cfg.Enrich.InitialBackoff {
		return fmt.Errorf("enrich max backoff %s is below initial backoff %s", cfg.Enrich.MaxBackoff, cfg.Enrich.InitialBackoff)
	}
	return nil
}

// LogLevel returns the validated log level
func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// Platform returns the adapter settings
func (c *Config) Platform() platform.Config {
	return platform.Config{
		HTTPTimeout:     c.HTTP.Timeout,
		BrowserTimeout:  c.Browser.Timeout,
		BrowserSessions: c.Browser.Sessions,
		UserAgent:       c.HTTP.UserAgent,
		ChromePath:      c.Browser.ChromePath,
		Headless:        c.Browser.Headless,
		RTRTAppID:       c.RTRT.AppID,
		RTRTToken:       c.RTRT.Token,
	}
}

// Pool returns the enrichment pool settings
func (c *Config) Pool() enrich.Config {
	return enrich.Config{
		Workers:        c.Enrich.Workers,
		RatePerSecond:  c.Enrich.RatePerSecond,
		MaxAttempts:    c.Enrich.MaxAttempts,
		InitialBackoff: c.Enrich.InitialBackoff,
		MaxBackoff:     c.Enrich.MaxBackoff,
	}
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Search    SearchConfig    `mapstructure:"search"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig governs periodic job creation.
type SchedulerConfig struct {
	Cron                   string `mapstructure:"cron"`
	SerpRecheckHours       int    `mapstructure:"serp_recheck_hours"`
	CompetitorRecheckHours int    `mapstructure:"competitor_recheck_hours"`
	ReportHours            int    `mapstructure:"report_hours"`
}

// JobsConfig governs queue claiming and handler execution.
type JobsConfig struct {
	BatchSize             int    `mapstructure:"batch_size"`
	Workers               int    `mapstructure:"workers"`
	HandlerTimeoutSeconds int    `mapstructure:"handler_timeout_seconds"`
	EventTopic            string `mapstructure:"event_topic"`
}

// FetchConfig configures plain HTTP page fetching.
type FetchConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateRPS        float64 `mapstructure:"rate_rps"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SearchConfig holds the SERP API connection settings.
type SearchConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Engine         string `mapstructure:"engine"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// GeminiConfig holds the reasoner model settings.
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxQueries int    `mapstructure:"max_queries"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANKSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.cron", "")
	v.SetDefault("scheduler.serp_recheck_hours", 24)
	v.SetDefault("scheduler.competitor_recheck_hours", 24)
	v.SetDefault("scheduler.report_hours", 168)
	v.SetDefault("jobs.batch_size", 10)
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.handler_timeout_seconds", 300)
	v.SetDefault("fetch.user_agent", "rankscope-bot/0.1")
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.rate_rps", 1)
	v.SetDefault("fetch.rate_burst", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./data/blobs")
	v.SetDefault("search.engine", "google")
	v.SetDefault("search.timeout_seconds", 20)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.max_queries", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("jobs.batch_size must be > 0")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs")
	}
	return nil
}

// HandlerTimeout converts the configured job handler budget into a duration.
func (c Config) HandlerTimeout() time.Duration {
	return time.Duration(c.Jobs.HandlerTimeoutSeconds) * time.Second
}

// SerpRecheckEvery returns the SERP recheck cadence.
func (c Config) SerpRecheckEvery() time.Duration {
	return time.Duration(c.Scheduler.SerpRecheckHours) * time.Hour
}

// CompetitorRecheckEvery returns the competitor SERP recheck cadence.
func (c Config) CompetitorRecheckEvery() time.Duration {
	return time.Duration(c.Scheduler.CompetitorRecheckHours) * time.Hour
}

// ReportEvery returns the AI report cadence.
func (c Config) ReportEvery() time.Duration {
	return time.Duration(c.Scheduler.ReportHours) * time.Hour
}

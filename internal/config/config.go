// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Scorecard ScorecardConfig `yaml:"scorecard" mapstructure:"scorecard"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	WebSearch WebSearchConfig `yaml:"websearch" mapstructure:"websearch"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ScorecardConfig holds College Scorecard API settings.
type ScorecardConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// KnowledgeConfig holds knowledge graph API settings.
type KnowledgeConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WikipediaConfig holds Wikipedia API settings.
type WikipediaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WebSearchConfig holds the JSON search endpoint settings. An empty base
// URL disables the source.
type WebSearchConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SourcesConfig holds cross-source outbound call behavior.
type SourcesConfig struct {
	// RateLimits maps source name to token bucket parameters.
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits" mapstructure:"rate_limits"`

	// PolitenessMillis spaces successive calls to the same source.
	PolitenessMillis int `yaml:"politeness_millis" mapstructure:"politeness_millis"`
}

// RateLimitConfig holds one source's token bucket parameters.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// RetryConfig configures the outbound retry loop.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	FailureThreshold    int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeoutSecs int `yaml:"recovery_timeout_secs" mapstructure:"recovery_timeout_secs"`
}

// ReconcileConfig points at the optional source reliability overrides file.
type ReconcileConfig struct {
	ReliabilityPath string `yaml:"reliability_path" mapstructure:"reliability_path"`
}

// WorkerConfig configures job execution.
type WorkerConfig struct {
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxConcurrent    int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// JobsConfig configures job retention.
type JobsConfig struct {
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	// Optional keys get empty defaults so environment overrides are picked
	// up during unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "enrich.db")
	v.SetDefault("scorecard.key", "")
	v.SetDefault("scorecard.base_url", "https://api.data.gov/ed/collegescorecard")
	v.SetDefault("knowledge.base_url", "https://www.wikidata.org")
	v.SetDefault("wikipedia.base_url", "https://en.wikipedia.org")
	v.SetDefault("websearch.base_url", "")
	v.SetDefault("sources.politeness_millis", 500)
	v.SetDefault("reconcile.reliability_path", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout_secs", 30)
	v.SetDefault("worker.poll_interval_secs", 5)
	v.SetDefault("worker.max_concurrent", 3)
	v.SetDefault("jobs.retention_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

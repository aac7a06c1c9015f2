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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Telegram   TelegramConfig   `yaml:"telegram" mapstructure:"telegram"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, mongo
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	MongoURI      string `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database" mapstructure:"mongo_database"`
}

// AnthropicConfig configures the model client.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxAttempts       int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// TelegramConfig configures the Bot API client. WebhookURL may be the
// webhook itself or a full setWebhook link.
type TelegramConfig struct {
	BotToken   string `yaml:"bot_token" mapstructure:"bot_token"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig controls the stage chain.
type PipelineConfig struct {
	AutoExtract       bool `yaml:"auto_extract" mapstructure:"auto_extract"`
	Workers           int  `yaml:"workers" mapstructure:"workers"`
	QueueSize         int  `yaml:"queue_size" mapstructure:"queue_size"`
	DLQMaxRetries     int  `yaml:"dlq_max_retries" mapstructure:"dlq_max_retries"`
	SweepIntervalSecs int  `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
	SweepLimit        int  `yaml:"sweep_limit" mapstructure:"sweep_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures background alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DLQDepthThreshold    int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional config.yaml and LABSYNC_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LABSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default, even an empty one, for env overrides to
	// reach Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "labsync.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", "labsync")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.initial_backoff_ms", 1000)
	v.SetDefault("anthropic.max_backoff_ms", 20000)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("pipeline.auto_extract", false)
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_size", 256)
	v.SetDefault("pipeline.dlq_max_retries", 3)
	v.SetDefault("pipeline.sweep_interval_secs", 0)
	v.SetDefault("pipeline.sweep_limit", 10)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.dlq_depth_threshold", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode needs: "store" for anything
// touching the database, "pipeline" for model calls, "serve" for the API,
// and "telegram" for webhook setup.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "store":
		problems = c.storeProblems()
	case "pipeline":
		problems = append(c.storeProblems(), c.pipelineProblems()...)
	case "serve":
		problems = append(c.storeProblems(), c.pipelineProblems()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 32 {
			problems = append(problems, "pipeline.workers must be between 1 and 32")
		}
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			problems = append(problems, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
	case "telegram":
		if c.Telegram.BotToken == "" {
			problems = append(problems, "telegram.bot_token is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	case "mongo":
		var p []string
		if c.Store.MongoURI == "" {
			p = append(p, "store.mongo_uri is required")
		}
		if c.Store.MongoDatabase == "" {
			p = append(p, "store.mongo_database is required")
		}
		return p
	default:
		return []string{"store.driver must be one of sqlite, postgres, mongo"}
	}
	return nil
}

func (c *Config) pipelineProblems() []string {
	var p []string
	if c.Anthropic.Key == "" {
		p = append(p, "anthropic.key is required")
	}
	if c.Anthropic.Model == "" {
		p = append(p, "anthropic.model is required")
	}
	if c.Anthropic.MaxTokens <= 0 {
		p = append(p, "anthropic.max_tokens must be > 0")
	}
	return p
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

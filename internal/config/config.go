package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// MINDPATTERN_SERVER__PORT sets server.port.
	EnvPrefix = "MINDPATTERN_"

	DefaultPath = "config.yaml"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Models   ModelsConfig   `koanf:"models"`
	Fallback FallbackConfig `koanf:"fallback"`
	Sessions SessionsConfig `koanf:"sessions"`
	Storage  StorageConfig  `koanf:"storage"`
	Queue    QueueConfig    `koanf:"queue"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Notifier NotifierConfig `koanf:"notifier"`
}

type ServerConfig struct {
	Port           string        `koanf:"port"`
	AllowOrigins   []string      `koanf:"allow_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type ModelsConfig struct {
	Encoder EncoderConfig `koanf:"encoder"`
	Hybrid  AdapterConfig `koanf:"hybrid"`
	Single  AdapterConfig `koanf:"single"`
}

// EncoderConfig points at the model-serving endpoint that runs the neural
// network.
type EncoderConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxConcurrent int           `koanf:"max_concurrent"`
	MaxLength     int           `koanf:"max_length"`
	Retry         RetryConfig   `koanf:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	InitialWait time.Duration `koanf:"initial_wait"`
	MaxWait     time.Duration `koanf:"max_wait"`
	Multiplier  float64       `koanf:"multiplier"`
}

// AdapterConfig locates the artifacts of one learned model.
type AdapterConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Manifest      string   `koanf:"manifest"`
	Model         string   `koanf:"model"`
	Tokenizer     string   `koanf:"tokenizer"`
	WeightsPath   string   `koanf:"weights_path"`
	WeightsFormat string   `koanf:"weights_format"`
	XGBoostPath   string   `koanf:"xgboost_path"`
	Labels        []string `koanf:"labels"`
}

type FallbackConfig struct {
	Variant   string `koanf:"variant"`
	MinLength int    `koanf:"min_length"`
}

type SessionsConfig struct {
	RedisAddr   string        `koanf:"redis_addr"`
	TTL         time.Duration `koanf:"ttl"`
	MaxAnalyses int           `koanf:"max_analyses"`
}

type StorageConfig struct {
	Driver        string        `koanf:"driver"`
	DSN           string        `koanf:"dsn"`
	Retention     time.Duration `koanf:"retention"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type QueueConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type IngestConfig struct {
	Feeds    []string      `koanf:"feeds"`
	Interval time.Duration `koanf:"interval"`
}

type NotifierConfig struct {
	TelegramToken   string   `koanf:"telegram_token"`
	TelegramChatIDs []string `koanf:"telegram_chat_ids"`
	Patterns        []string `koanf:"patterns"`
	MinScore        float64  `koanf:"min_score"`
}

// Path returns the config file location from MINDPATTERN_CONFIG, or the
// default.
func Path() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML file at path, applies environment overrides and fills
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps MINDPATTERN_MODELS__ENCODER__URL to models.encoder.url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":5001"
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}

	enc := &c.Models.Encoder
	if enc.Timeout == 0 {
		enc.Timeout = 15 * time.Second
	}
	if enc.MaxLength == 0 {
		enc.MaxLength = 256
	}
	if enc.Retry.MaxAttempts == 0 {
		enc.Retry.MaxAttempts = 3
	}
	if enc.Retry.InitialWait == 0 {
		enc.Retry.InitialWait = 200 * time.Millisecond
	}
	if enc.Retry.MaxWait == 0 {
		enc.Retry.MaxWait = 2 * time.Second
	}
	if enc.Retry.Multiplier == 0 {
		enc.Retry.Multiplier = 2.0
	}

	if c.Models.Hybrid.Model == "" {
		c.Models.Hybrid.Model = "distilbert-bilstm-hybrid"
	}
	if c.Models.Single.Model == "" {
		c.Models.Single.Model = "distilbert-base-uncased"
	}

	if c.Fallback.Variant == "" {
		c.Fallback.Variant = "exclusive"
	}
	if c.Fallback.MinLength == 0 {
		c.Fallback.MinLength = 5
	}

	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = time.Hour
	}
	if c.Sessions.MaxAnalyses == 0 {
		c.Sessions.MaxAnalyses = 50
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = 30 * 24 * time.Hour
	}
	if c.Storage.PurgeInterval == 0 {
		c.Storage.PurgeInterval = time.Hour
	}

	if c.Queue.Topic == "" {
		c.Queue.Topic = "submissions"
	}
	if c.Queue.GroupID == "" {
		c.Queue.GroupID = "mindpattern-analyzer"
	}

	if c.Ingest.Interval == 0 {
		c.Ingest.Interval = 5 * time.Minute
	}

	if c.Notifier.MinScore == 0 {
		c.Notifier.MinScore = 0.6
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Fallback.Variant {
	case "exclusive", "neutral":
	default:
		return fmt.Errorf("fallback.variant: unknown variant %q", c.Fallback.Variant)
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	if c.Models.Encoder.MaxConcurrent < 0 {
		return fmt.Errorf("models.encoder.max_concurrent must not be negative")
	}

	if c.Notifier.MinScore < 0 || c.Notifier.MinScore > 1 {
		return fmt.Errorf("notifier.min_score must be within [0, 1]")
	}

	return nil
}

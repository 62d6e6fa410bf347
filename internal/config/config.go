// Package config loads server configuration from defaults, an optional
// file and TTT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Type is one of memory, redis, postgres.
	Type        string `mapstructure:"type"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// RealtimeConfig holds per-connection websocket settings.
type RealtimeConfig struct {
	SendBuffer      int           `mapstructure:"send_buffer"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	// PersistTimeout bounds each fire-and-forget persistence call.
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
}

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks all configuration invariants and reports every violation.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 0-65535, got %d", c.Server.Port))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth.secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRealtime(c.Realtime); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Type {
	case StorageMemory:
		return nil
	case StorageRedis:
		if s.RedisURL == "" {
			return errors.New("storage.redis_url is required for redis storage")
		}
		return nil
	case StoragePostgres:
		if s.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for postgres storage")
		}
		return nil
	default:
		return fmt.Errorf("storage.type must be one of [memory, redis, postgres], got %q", s.Type)
	}
}

func validateRealtime(r RealtimeConfig) error {
	var errs []string
	if r.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("realtime.send_buffer must be >= 1, got %d", r.SendBuffer))
	}
	if r.PongWait <= 0 || r.PingPeriod <= 0 {
		errs = append(errs, "realtime.ping_period and realtime.pong_wait must be positive")
	} else if r.PingPeriod >= r.PongWait {
		errs = append(errs, "realtime.ping_period must be shorter than realtime.pong_wait")
	}
	if r.WriteWait <= 0 {
		errs = append(errs, "realtime.write_wait must be positive")
	}
	if r.MaxMessageBytes < 1 {
		errs = append(errs, "realtime.max_message_bytes must be >= 1")
	}
	if r.PersistTimeout <= 0 {
		errs = append(errs, "realtime.persist_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func validateLogging(l LoggingConfig) error {
	if _, ok := logLevels[l.Level]; !ok {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("logging.format must be one of [json, text], got %q", l.Format)
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[l.Level]}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Load reads configuration from path (optional), applies TTT_ environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("TTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// No default secret; the server refuses to start without one
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "tictactoe-live")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("storage.type", StorageMemory)
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("realtime.send_buffer", 64)
	v.SetDefault("realtime.ping_period", "54s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.max_message_bytes", 4096)
	v.SetDefault("realtime.persist_timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Secret:   "s3cret",
			Issuer:   "tictactoe-live",
			TokenTTL: time.Hour,
		},
		Storage: StorageConfig{Type: StorageMemory},
		Realtime: RealtimeConfig{
			SendBuffer:      16,
			PingPeriod:      54 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
			MaxMessageBytes: 4096,
			PersistTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing secret", func(c *Config) { c.Auth.Secret = "" }, "auth.secret"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "storage.type"},
		{"redis without url", func(c *Config) { c.Storage.Type = StorageRedis }, "storage.redis_url"},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = StoragePostgres }, "storage.postgres_dsn"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"ping after pong", func(c *Config) { c.Realtime.PingPeriod = time.Minute }, "realtime.ping_period"},
		{"zero send buffer", func(c *Config) { c.Realtime.SendBuffer = 0 }, "realtime.send_buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = ""
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("TTT_AUTH_SECRET", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 54*time.Second, cfg.Realtime.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadWithoutSecretFails(t *testing.T) {
	t.Setenv("TTT_AUTH_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 9090
auth:
  secret: file-secret
storage:
  type: redis
  redis_url: redis://localhost:6379/0
realtime:
  send_buffer: 32
logging:
  level: debug
  format: text
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, 32, cfg.Realtime.SendBuffer)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  secret: file-secret\nserver:\n  port: 9090\n"), 0o600))
	t.Setenv("TTT_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LoggingConfig{Level: "info", Format: "json"}.NewLogger(&buf).Info("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	LoggingConfig{Level: "info", Format: "text"}.NewLogger(&buf).Info("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

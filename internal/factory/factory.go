package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/tictactoe-live/internal/config"
	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/realtime"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/services/matchmaking"
	"github.com/mcoot/tictactoe-live/internal/services/results"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/session"
	"github.com/mcoot/tictactoe-live/internal/storage"
	"github.com/mcoot/tictactoe-live/internal/storage/memory"
	pgstorage "github.com/mcoot/tictactoe-live/internal/storage/postgres"
	redisstorage "github.com/mcoot/tictactoe-live/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService *auth.Service
	Registry    *session.Registry
	Rooms       *room.Rooms
	Queue       *matchmaking.Queue
	Recorder    *results.Recorder
	Router      *realtime.Router
	Gate        *realtime.Gate

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service.
	// A zero TokenTTL falls back to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// Realtime tunes the websocket transport; zero value means realtime.DefaultConfig()
	Realtime realtime.Config
	// PersistTimeout bounds each persistence call; zero means results.DefaultTimeout
	PersistTimeout time.Duration
}

// ConfigFrom maps loaded server configuration onto factory configuration
func ConfigFrom(c config.Config, logger *slog.Logger) Config {
	cfg := Config{
		AuthConfig: auth.Config{
			Secret:   c.Auth.Secret,
			Issuer:   c.Auth.Issuer,
			TokenTTL: c.Auth.TokenTTL,
		},
		Logger:      logger,
		StorageType: c.Storage.Type,
		Realtime: realtime.Config{
			SendBuffer:      c.Realtime.SendBuffer,
			PingPeriod:      c.Realtime.PingPeriod,
			PongWait:        c.Realtime.PongWait,
			WriteWait:       c.Realtime.WriteWait,
			MaxMessageBytes: c.Realtime.MaxMessageBytes,
		},
		PersistTimeout: c.Realtime.PersistTimeout,
	}

	switch c.Storage.Type {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.Storage.RedisURL
		cfg.RedisConfig = &redisCfg
	case config.StoragePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.DSN = c.Storage.PostgresDSN
		cfg.PostgresConfig = &pgCfg
	}

	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageMemory
	}

	switch storageType {
	case config.StorageMemory:
		store = memory.New()
	case config.StorageRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case config.StoragePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := pgstorage.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting postgres: %w", err)
		}
		store = pgStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	logger.Info("storage ready", slog.String("type", storageType))

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	authCfg := cfg.AuthConfig
	if authCfg.TokenTTL == 0 {
		defaults := auth.DefaultConfig()
		authCfg.TokenTTL = defaults.TokenTTL
		if authCfg.Issuer == "" {
			authCfg.Issuer = defaults.Issuer
		}
	}

	return newWithDependencies(store, clk, rnd, authCfg, cfg.Realtime, cfg.PersistTimeout, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	rtCfg realtime.Config,
	persistTimeout time.Duration,
	logger *slog.Logger,
) *App {
	if rtCfg == (realtime.Config{}) {
		rtCfg = realtime.DefaultConfig()
	}
	if persistTimeout == 0 {
		persistTimeout = results.DefaultTimeout
	}

	// Create services
	authService := auth.New(clk, authCfg)
	registry := session.NewRegistry(clk, rtCfg.SendBuffer, logger)
	rooms := room.NewRooms(rnd, logger)
	queue := matchmaking.NewQueue(rooms, logger)
	recorder := results.New(store, clk, persistTimeout, logger)
	router := realtime.NewRouter(registry, queue, rooms, store, recorder, clk, persistTimeout, logger)
	gate := realtime.NewGate(registry, router, rtCfg, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		AuthService: authService,
		Registry:    registry,
		Rooms:       rooms,
		Queue:       queue,
		Recorder:    recorder,
		Router:      router,
		Gate:        gate,
		Logger:      logger,
	}
}

// Close waits for in-flight persistence calls and releases storage
func (a *App) Close(ctx context.Context) error {
	if err := a.Recorder.Wait(ctx); err != nil {
		a.Logger.Warn("persistence calls still in flight at close", slog.Any("error", err))
	}
	return a.Storage.Close()
}

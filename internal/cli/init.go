// Package cli holds the start-up steps shared by the lovemoney commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"lovemoney/internal/backend"
	"lovemoney/internal/cache"
	"lovemoney/internal/config"
	"lovemoney/internal/log"
	"lovemoney/internal/services"
)

// RedisPrefix namespaces summary keys in a shared Redis.
const RedisPrefix = "lovemoney:summary:"

// LoadEnvFile loads .env for local development. A missing file is ignored.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the text logger at level and makes it the default.
// Unknown levels fall back to info.
func SetupLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.NewText(w, lvl, log.ComponentApp)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore creates the configured document store.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}
	return result, nil
}

// NewSummaryCache builds the summary cache named by CACHE_BACKEND. The
// returned stop func releases it.
func NewSummaryCache(ctx context.Context, logger *log.Logger, cfg *config.Config) (cache.Cache[services.Summary], func()) {
	if cfg.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithComponent(log.ComponentCache).Warn("Redis not reachable, summaries will be recomputed until it is",
				log.FieldError, err)
		}
		c := cache.NewRedisCache[services.Summary](client, RedisPrefix, cfg.CacheTTL, logger)
		return c, func() { _ = client.Close() }
	}

	manager := cache.NewManager(logger)
	lru := cache.NewLRUCache[services.Summary](cfg.CacheSize, cfg.CacheTTL)
	manager.Register(lru)
	manager.StartCleanup(time.Minute)
	return lru, manager.Stop
}

// ShutdownContext is cancelled on SIGINT or SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}

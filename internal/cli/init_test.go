package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lovemoney/internal/cache"
	"lovemoney/internal/config"
	"lovemoney/internal/log"
	"lovemoney/internal/services"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level     string
		wantWarn  bool
		debugSeen bool
	}{
		{"debug", false, true},
		{"info", false, false},
		{"loud", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&buf, tt.level)
			if got := strings.Contains(buf.String(), "Unknown log level"); got != tt.wantWarn {
				t.Errorf("warned = %v, want %v", got, tt.wantWarn)
			}
			buf.Reset()
			logger.Debug("probe")
			if got := strings.Contains(buf.String(), "probe"); got != tt.debugSeen {
				t.Errorf("debug logged = %v, want %v", got, tt.debugSeen)
			}
		})
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_SEED_FILE", "CACHE_SIZE", "CACHE_TTL", "TIMEZONE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AMQP_URL", "")
	if _, err := LoadAndValidateConfig(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}

	t.Setenv("DATA_BACKEND", "postgres")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected unknown backend to be rejected")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:          "8081",
		DataBackend:   "sqlite",
		SQLiteDBPath:  filepath.Join(t.TempDir(), "lovemoney.db"),
		MongoDatabase: "lovemoney",
		CacheBackend:  "memory",
		CacheSize:     8,
		CacheTTL:      time.Minute,
		Timezone:      "UTC",
		LogLevel:      "info",
	}
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)
	result, err := OpenStore(context.Background(), log.Discard(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer result.Cleanup()
	if err := result.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v", err)
	}

	cfg.DataBackend = "nope"
	if _, err := OpenStore(context.Background(), log.Discard(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewSummaryCache_Memory(t *testing.T) {
	c, stop := NewSummaryCache(context.Background(), log.Discard(), testConfig(t))
	defer stop()

	if _, ok := c.(*cache.LRUCache[services.Summary]); !ok {
		t.Fatalf("cache = %T, want LRU", c)
	}
	ctx := context.Background()
	c.Set(ctx, "k", services.Summary{Period: "2024-05"})
	if got, ok := c.Get(ctx, "k"); !ok || got.Period != "2024-05" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
}

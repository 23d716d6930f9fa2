package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lovemoney/internal/config"
	"lovemoney/internal/docstore"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   "mongo",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "lovemoney",
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != MongoBackend || got.MongoURI != cfg.MongoURI || got.MongoDatabase != "lovemoney" {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"mongo without uri", Config{Type: MongoBackend, MongoDatabase: "db"}, "MongoDB URI is required"},
		{"mongo without database", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, "MongoDB database is required"},
		{"unknown", Config{Type: "postgres"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seed, []byte(`{"usuarios/u1/gastos": {"e1": {"descricao": "Café", "valor": 5}}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	ref, _ := docstore.MustCollection("usuarios", "u1", "gastos").Doc("e1")
	doc, err := res.Store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("seeded document missing: %v", err)
	}
	if doc.Fields.String("descricao") != "Café" {
		t.Errorf("descricao = %q", doc.Fields.String("descricao"))
	}
}

func TestFactory_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lovemoney.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.Cleanup == nil {
		t.Fatal("sqlite backend must return a cleanup function")
	}
	if err := res.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Error("expected validation error")
	}
}

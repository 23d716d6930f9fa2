package backend

import (
	"context"

	"lovemoney/internal/docstore"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is the opened store and the function that closes it.
type BackendResult struct {
	Store   docstore.Store
	Cleanup CleanupFunc
}

// Factory opens a document store from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects and parameterises a backend.
type Config struct {
	Type BackendType

	// SQLite
	SQLiteDBPath string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Memory: optional JSON seed
	SeedFile string
}

// BackendType names a document store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}

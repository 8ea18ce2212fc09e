package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no document exists for the requested
// (collection, id) pair.
var ErrNotFound = errors.New("document not found")

// UpdateFunc transforms a stored document during FindOneAndUpdate. It
// receives the current document bytes and returns the replacement.
// Returning an error aborts the update without writing.
type UpdateFunc func(doc []byte) ([]byte, error)

// Store is the document store boundary. Documents are opaque JSON
// blobs addressed by collection and id.
type Store interface {
	// FindOne returns the document, or ErrNotFound.
	FindOne(ctx context.Context, collection, id string) ([]byte, error)

	// FindOneAndUpdate applies update to the document in a
	// read-modify-write cycle and returns the updated document.
	// Returns ErrNotFound when the document does not exist.
	FindOneAndUpdate(ctx context.Context, collection, id string, update UpdateFunc) ([]byte, error)

	// Save upserts the whole document.
	Save(ctx context.Context, collection, id string, doc []byte) error

	// Delete removes the document, or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Type string // "memory", "postgres", "redis"

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
	}
}

// New builds a store for the configured backend type.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(cfg)
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("invalid docstore type: %s (must be memory, postgres, or redis)", cfg.Type)
	}
}

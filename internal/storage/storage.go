// Package storage is the persistence boundary: it answers whether a URL has
// already been ingested and records new MediaRecords.
package storage

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Store is the interface for all storage backends. Identity is the exact URL
// string; redirect and query-string variants of a stored URL are distinct.
type Store interface {
	// Exists reports whether url was inserted before. Safe for concurrent use.
	Exists(ctx context.Context, url string) (bool, error)

	// Insert persists rec and records its URL as seen. Inserting a URL that
	// is already stored writes nothing and returns types.ErrDuplicate.
	Insert(ctx context.Context, rec *types.MediaRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New opens the backend selected by cfg.Type, wrapped in the redis seen-set
// cache when enabled.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "jsonl":
		store, err = NewJSONLStore(cfg.Path, logger)
	case "sqlite":
		store, err = NewSQLiteStore(ctx, cfg.Path, logger)
	case "mongo":
		store, err = NewMongoStore(ctx, &cfg.Mongo, logger)
	default:
		return nil, types.NewConfigError("storage.type", "%q is not supported", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		return NewRedisCache(store, &cfg.Redis, logger), nil
	}
	return store, nil
}

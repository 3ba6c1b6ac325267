// Package catalog provides the read-only product catalog behind the
// product_search tool. Three drivers share one contract: mongo (the
// production store), sql (local file or Turso via libsql) and memory (a YAML
// seed file, optionally hot-reloaded).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shopassist/internal/domain"
)

// ErrUnavailable marks failures talking to the backing store, as opposed to
// bad input. The gateway maps it to 503.
var ErrUnavailable = errors.New("catalog unavailable")

const (
	DriverMongo  = "mongo"
	DriverSQL    = "sql"
	DriverMemory = "memory"
)

// defaultTimeout bounds a single catalog query when the config leaves it unset.
const defaultTimeout = 5 * time.Second

// Store is a CatalogStore that owns a connection and must be closed.
type Store interface {
	domain.CatalogStore
	Close(ctx context.Context) error
}

// Open connects the driver named in cfg.
func Open(ctx context.Context, cfg domain.CatalogConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	switch cfg.Driver {
	case DriverMongo, "":
		return NewMongoStore(ctx, cfg.URI, cfg.Database, cfg.Collection, timeout)
	case DriverSQL:
		return NewSQLStore(ctx, cfg.URI, timeout)
	case DriverMemory:
		store := NewMemoryStore(nil)
		if cfg.SeedFile == "" {
			return store, nil
		}
		if err := store.LoadFile(cfg.SeedFile); err != nil {
			return nil, err
		}
		if cfg.Watch {
			if err := store.Watch(cfg.SeedFile, logger); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("catalog: unknown driver %q", cfg.Driver)
	}
}

// unavailable wraps a backend failure so callers can match ErrUnavailable
// and still see the driver error.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// normalizeLimit turns non-positive limits into "no results" guards.
func normalizeLimit(limit int) (int, bool) {
	if limit <= 0 {
		return 0, false
	}
	return limit, true
}

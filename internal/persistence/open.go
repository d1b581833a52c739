// Package persistence selects and opens the record adapter named by
// configuration.
package persistence

import (
	"context"
	"fmt"
	"io"

	"linkcore/internal/config"
	"linkcore/internal/infra/persistence/memory"
	"linkcore/internal/infra/persistence/postgres"
	"linkcore/internal/infra/persistence/sqlite"
	"linkcore/pkg/domain"
)

// Handle is an opened adapter plus the resources it holds.
type Handle struct {
	domain.Adapter
	closer io.Closer
}

// Close releases the adapter's resources; it is a no-op for memory.
func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Open returns the adapter selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (*Handle, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return &Handle{Adapter: memory.NewStore()}, nil
	case config.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{Adapter: store, closer: store}, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &Handle{Adapter: store, closer: store}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// Package postgres backs the in-memory adapter with a JSONB snapshot row per
// record type.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"linkcore/internal/infra/persistence/memory"
	"linkcore/internal/infra/persistence/snapshot"
	"linkcore/pkg/domain"
)

var _ domain.Adapter = (*Store)(nil)

const defaultDSN = "postgres://localhost/linkcore?sslmode=disable"

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Store serves reads and transactions from memory and writes every commit
// through to Postgres before it becomes visible.
type Store struct {
	*memory.Store
	db    *sql.DB
	table *snapshot.Table
}

// NewStore connects to dsn, or a local default when dsn is empty, and loads
// the stored snapshot.
func NewStore(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	open := sqlOpen
	openMu.Unlock()
	db, err := open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s, err := attach(ctx, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func attach(ctx context.Context, db *sql.DB, opts []memory.Option) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	table, err := snapshot.Open(ctx, db, snapshot.Postgres)
	if err != nil {
		return nil, err
	}
	state, err := table.Load(ctx)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, table: table}
	s.Store = memory.NewStore(append(opts, memory.WithCommitHook(table.Save))...)
	s.ImportState(state)
	return s, nil
}

// DB returns the connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen replaces the function used to open connections until the
// returned restore func runs.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) (restore func()) {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

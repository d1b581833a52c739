// Package sqlite backs the in-memory adapter with a SQLite file. Each commit
// writes the touched record tables to a snapshots table before the new state
// becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"linkcore/internal/infra/persistence/memory"
	"linkcore/internal/infra/persistence/snapshot"
	"linkcore/pkg/domain"
)

var _ domain.Adapter = (*Store)(nil)

const defaultPath = "linkcore.db"

// Store is a memory.Store whose commits are durable in SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens the database at path, creating it and its parent
// directories when missing, and loads the stored snapshot.
func NewStore(path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	ctx := context.Background()
	table, err := snapshot.Open(ctx, db, snapshot.SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	state, err := table.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(append(opts, memory.WithCommitHook(table.Save))...)
	s.ImportState(state)
	return s, nil
}

// DB returns the database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Package snapshot keeps committed record tables as JSON documents in one
// SQL table keyed by record type. The sqlite and postgres adapters share it
// and differ only in dialect.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"linkcore/internal/infra/persistence/memory"
	"linkcore/pkg/domain"
)

// Dialect holds the statements one SQL backend needs.
type Dialect struct {
	Name   string
	Create string
	Select string
	Upsert string
}

// SQLite stores payloads as BLOBs with ? placeholders.
var SQLite = Dialect{
	Name: "sqlite",
	Create: `CREATE TABLE IF NOT EXISTS snapshots (
		record_type TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
	Select: `SELECT record_type, payload FROM snapshots`,
	Upsert: `INSERT INTO snapshots(record_type,payload) VALUES(?,?) ON CONFLICT(record_type) DO UPDATE SET payload=excluded.payload`,
}

// Postgres stores payloads as JSONB with numbered placeholders.
var Postgres = Dialect{
	Name: "postgres",
	Create: `CREATE TABLE IF NOT EXISTS snapshots (
		record_type TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
	Select: `SELECT record_type, payload FROM snapshots`,
	Upsert: `INSERT INTO snapshots(record_type,payload) VALUES($1,$2) ON CONFLICT(record_type) DO UPDATE SET payload=EXCLUDED.payload`,
}

// Table reads and writes the snapshots table through db.
type Table struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open ensures the snapshots table exists.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Table, error) {
	if _, err := db.ExecContext(ctx, dialect.Create); err != nil {
		return nil, fmt.Errorf("ensure snapshots table: %w", err)
	}
	return &Table{db: db, dialect: dialect}, nil
}

// Load reads every stored record table. Empty payloads load as empty tables.
func (t *Table) Load(ctx context.Context) (memory.Snapshot, error) {
	rows, err := t.db.QueryContext(ctx, t.dialect.Select)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := memory.Snapshot{}
	for rows.Next() {
		var recordType string
		var payload []byte
		if err := rows.Scan(&recordType, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		table, err := Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", recordType, err)
		}
		out[recordType] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Save upserts the touched tables in one SQL transaction. It has the
// memory.CommitHook signature, so a failed write vetoes the commit.
func (t *Table) Save(ctx context.Context, state memory.Snapshot, touched []string) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", t.dialect.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, recordType := range touched {
		payload, err := Encode(state[recordType])
		if err != nil {
			return fmt.Errorf("encode %s: %w", recordType, err)
		}
		if _, err := tx.ExecContext(ctx, t.dialect.Upsert, recordType, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", recordType, err)
		}
	}
	return tx.Commit()
}

// Encode renders one record table. A nil table encodes as an empty object.
func Encode(table map[string]domain.Record) ([]byte, error) {
	if table == nil {
		table = map[string]domain.Record{}
	}
	return json.Marshal(table)
}

// Decode parses one record table, keeping numbers as json.Number.
func Decode(payload []byte) (map[string]domain.Record, error) {
	table := map[string]domain.Record{}
	if len(bytes.TrimSpace(payload)) == 0 {
		return table, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&table); err != nil {
		return nil, err
	}
	return table, nil
}

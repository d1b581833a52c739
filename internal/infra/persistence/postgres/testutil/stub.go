// Package testutil fakes the postgres snapshots table behind database/sql so
// the postgres store can be exercised without a server. Upserts issued inside
// a transaction stay pending until Commit.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Faults makes individual driver calls fail. Set fields before the store
// under test touches the database.
type Faults struct {
	Ping   error
	Begin  error
	Commit error
	Select error
	Upsert error
}

// Snapshots holds committed payloads keyed by record type.
type Snapshots struct {
	Fault Faults

	mu         sync.Mutex
	payloads   map[string][]byte
	statements []string
}

// NewStubDB returns a *sql.DB whose connections all share one Snapshots.
func NewStubDB() (*sql.DB, *Snapshots) {
	snaps := &Snapshots{payloads: map[string][]byte{}}
	return sql.OpenDB(connector{snaps: snaps}), snaps
}

// Seed stores a committed payload directly.
func (s *Snapshots) Seed(recordType string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[recordType] = append([]byte(nil), payload...)
}

// Payload returns the committed payload for recordType.
func (s *Snapshots) Payload(recordType string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payloads[recordType]
	return append([]byte(nil), p...), ok
}

// RecordTypes lists the committed record types in sorted order.
func (s *Snapshots) RecordTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTypes()
}

// Statements returns every statement executed so far.
func (s *Snapshots) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statements...)
}

func (s *Snapshots) sortedTypes() []string {
	types := make([]string, 0, len(s.payloads))
	for t := range s.payloads {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

type connector struct {
	snaps *Snapshots
}

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{snaps: c.snaps}, nil
}

func (c connector) Driver() driver.Driver { return stubDriver{snaps: c.snaps} }

type stubDriver struct {
	snaps *Snapshots
}

func (d stubDriver) Open(string) (driver.Conn, error) { return &conn{snaps: d.snaps}, nil }

type conn struct {
	snaps   *Snapshots
	pending map[string][]byte
	inTx    bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if err := c.fault(func(f Faults) error { return f.Begin }); err != nil {
		return nil, err
	}
	c.inTx = true
	c.pending = map[string][]byte{}
	return c, nil
}

func (c *conn) Ping(context.Context) error {
	return c.fault(func(f Faults) error { return f.Ping })
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.record(query)
	switch statementKind(query) {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
	default:
		return nil, fmt.Errorf("unsupported statement: %s", query)
	}
	if err := c.fault(func(f Faults) error { return f.Upsert }); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("upsert wants 2 args, got %d", len(args))
	}
	recordType, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("record_type must be a string, got %T", args[0].Value)
	}
	payload, ok := args[1].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("payload must be bytes, got %T", args[1].Value)
	}
	if c.inTx {
		c.pending[recordType] = append([]byte(nil), payload...)
	} else {
		c.snaps.Seed(recordType, payload)
	}
	return driver.RowsAffected(1), nil
}

func (c *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.record(query)
	if statementKind(query) != "SELECT" {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	if err := c.fault(func(f Faults) error { return f.Select }); err != nil {
		return nil, err
	}
	c.snaps.mu.Lock()
	defer c.snaps.mu.Unlock()
	rows := &rows{}
	for _, t := range c.snaps.sortedTypes() {
		rows.values = append(rows.values, []driver.Value{t, append([]byte(nil), c.snaps.payloads[t]...)})
	}
	return rows, nil
}

func (c *conn) Commit() error {
	defer c.reset()
	if err := c.fault(func(f Faults) error { return f.Commit }); err != nil {
		return err
	}
	c.snaps.mu.Lock()
	defer c.snaps.mu.Unlock()
	for t, p := range c.pending {
		c.snaps.payloads[t] = p
	}
	return nil
}

func (c *conn) Rollback() error {
	if !c.inTx {
		return errors.New("rollback outside transaction")
	}
	c.reset()
	return nil
}

func (c *conn) reset() {
	c.inTx = false
	c.pending = nil
}

func (c *conn) record(query string) {
	c.snaps.mu.Lock()
	defer c.snaps.mu.Unlock()
	c.snaps.statements = append(c.snaps.statements, strings.TrimSpace(query))
}

func (c *conn) fault(pick func(Faults) error) error {
	c.snaps.mu.Lock()
	defer c.snaps.mu.Unlock()
	return pick(c.snaps.Fault)
}

func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

type rows struct {
	values [][]driver.Value
	next   int
}

func (r *rows) Columns() []string { return []string{"record_type", "payload"} }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

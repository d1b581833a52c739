// Package memory provides an in-memory implementation of the record adapter
// used for tests, ephemeral environments, and as the transactional core of
// the snapshotting SQL stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"linkcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the adapter interface.
var _ domain.Adapter = (*Store)(nil)

var (
	// ErrDuplicateID is returned when a create collides with an existing id.
	ErrDuplicateID = errors.New("memory store: duplicate id")
	// ErrTransactionClosed is returned when a finished transaction is used again.
	ErrTransactionClosed = errors.New("memory store: transaction already ended")
)

// Snapshot captures a point-in-time clone of the store state keyed by record
// type then id.
type Snapshot map[string]map[string]domain.Record

// CommitHook runs after a transaction's writes are staged and before they
// become visible. touched lists the record types the transaction wrote. A
// hook error aborts the commit.
type CommitHook func(ctx context.Context, snapshot Snapshot, touched []string) error

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the generator used for records created without an id.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithCommitHook appends a hook invoked on every commit.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

type memoryState map[string]map[string]domain.Record

// shallow copies the type index only; tables are cloned on first write.
func (s memoryState) shallow() memoryState {
	out := make(memoryState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s memoryState) snapshot(types []string) Snapshot {
	out := make(Snapshot, len(types))
	for _, t := range types {
		table := s[t]
		cloned := make(map[string]domain.Record, len(table))
		for id, record := range table {
			cloned[id] = record.Clone()
		}
		out[t] = cloned
	}
	return out
}

func (s memoryState) types() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Store is an in-memory record adapter. Transactions are exclusive: a second
// BeginTransaction blocks until the first ends or its context is cancelled.
// Reads never block on a running transaction and observe committed state
// only.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	sem   chan struct{}
	newID func() string
	hooks []CommitHook
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: make(memoryState),
		sem:   make(chan struct{}, 1),
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot(s.state.types())
}

// ImportState replaces the committed state with a deep copy of snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := make(memoryState, len(snapshot))
	for t, table := range snapshot {
		cloned := make(map[string]domain.Record, len(table))
		for id, record := range table {
			r := record.Clone()
			if r == nil {
				r = domain.Record{}
			}
			r[domain.PrimaryKey] = id
			cloned[id] = r
		}
		state[t] = cloned
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Find returns committed records of recordType. With no ids it returns every
// record sorted by id; otherwise it returns the records that exist, in the
// order requested, skipping duplicates.
func (s *Store) Find(ctx context.Context, recordType string, ids []string, opts *domain.Options) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields := opts.FieldsOrNil()
	s.mu.RLock()
	defer s.mu.RUnlock()
	table := s.state[recordType]
	if len(ids) == 0 {
		keys := make([]string, 0, len(table))
		for id := range table {
			keys = append(keys, id)
		}
		sort.Strings(keys)
		ids = keys
	}
	out := make([]domain.Record, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		record, ok := table[id]
		if !ok {
			continue
		}
		if len(fields) > 0 {
			out = append(out, record.Project(fields))
			continue
		}
		out = append(out, record.Clone())
	}
	return out, nil
}

// BeginTransaction acquires the store's write slot and stages a private copy
// of the state.
func (s *Store) BeginTransaction(ctx context.Context) (domain.Transaction, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.RLock()
	staged := s.state.shallow()
	s.mu.RUnlock()
	return &transaction{
		store:   s,
		state:   staged,
		touched: make(map[string]struct{}),
	}, nil
}

type transaction struct {
	store   *Store
	mu      sync.Mutex
	state   memoryState
	touched map[string]struct{}
	done    bool
}

// table returns a writable table for recordType, cloning it the first time
// this transaction writes to it. Callers hold tx.mu.
func (tx *transaction) table(recordType string) map[string]domain.Record {
	if _, ok := tx.touched[recordType]; ok {
		return tx.state[recordType]
	}
	current := tx.state[recordType]
	cloned := make(map[string]domain.Record, len(current))
	for id, record := range current {
		cloned[id] = record
	}
	tx.state[recordType] = cloned
	tx.touched[recordType] = struct{}{}
	return cloned
}

func (tx *transaction) Create(ctx context.Context, recordType string, records []domain.Record, _ *domain.Options) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTransactionClosed
	}
	table := tx.table(recordType)
	staged := make([]domain.Record, 0, len(records))
	batch := make(map[string]struct{}, len(records))
	for _, record := range records {
		r := record.Clone()
		id := r.ID()
		if id == "" {
			id = tx.store.newID()
			r[domain.PrimaryKey] = id
		}
		if _, exists := table[id]; exists {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateID, recordType, id)
		}
		if _, exists := batch[id]; exists {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateID, recordType, id)
		}
		batch[id] = struct{}{}
		staged = append(staged, r)
	}
	out := make([]domain.Record, 0, len(staged))
	for _, r := range staged {
		table[r.ID()] = r
		out = append(out, r.Clone())
	}
	return out, nil
}

func (tx *transaction) Update(ctx context.Context, recordType string, updates []domain.Update, _ *domain.Options) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return 0, ErrTransactionClosed
	}
	table := tx.table(recordType)
	count := 0
	for _, update := range updates {
		record, ok := table[update.ID]
		if !ok {
			continue
		}
		table[update.ID] = update.Apply(record)
		count++
	}
	return count, nil
}

func (tx *transaction) Delete(ctx context.Context, recordType string, ids []string, _ *domain.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTransactionClosed
	}
	table := tx.table(recordType)
	for _, id := range ids {
		delete(table, id)
	}
	return nil
}

// EndTransaction commits when cause is nil and discards the staged state
// otherwise. The write slot is released either way.
func (tx *transaction) EndTransaction(ctx context.Context, cause error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTransactionClosed
	}
	tx.done = true
	defer func() { <-tx.store.sem }()
	if cause != nil {
		return nil
	}
	touched := make([]string, 0, len(tx.touched))
	for t := range tx.touched {
		touched = append(touched, t)
	}
	sort.Strings(touched)
	if len(tx.store.hooks) > 0 && len(touched) > 0 {
		snapshot := tx.state.snapshot(touched)
		for _, hook := range tx.store.hooks {
			if err := hook(ctx, snapshot, touched); err != nil {
				return fmt.Errorf("commit: %w", err)
			}
		}
	}
	tx.store.mu.Lock()
	tx.store.state = tx.state
	tx.store.mu.Unlock()
	return nil
}

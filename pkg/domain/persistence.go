package domain

import "context"

// Options carries per-request adapter hints.
type Options struct {
	// Fields limits the fields returned by Find. The primary key is always
	// included.
	Fields []string `json:"fields,omitempty"`
}

// FieldsOrNil returns the projection list, tolerating a nil receiver.
func (o *Options) FieldsOrNil() []string {
	if o == nil {
		return nil
	}
	return o.Fields
}

// Adapter is the storage backend the dispatcher drives. It owns persistence
// and id assignment; the engine only orchestrates.
type Adapter interface {
	// Find returns the records of recordType with the given ids. Missing ids
	// are skipped. An empty id list returns every record of the type.
	Find(ctx context.Context, recordType string, ids []string, opts *Options) ([]Record, error)
	// BeginTransaction opens a handle held exclusively by the caller until
	// EndTransaction.
	BeginTransaction(ctx context.Context) (Transaction, error)
}

// Transaction bounds the primary operation and its derived updates.
type Transaction interface {
	// Create persists records and returns them with primary ids assigned.
	Create(ctx context.Context, recordType string, records []Record, opts *Options) ([]Record, error)
	// Update applies patches and returns the number of records changed.
	// Patches naming missing records are skipped.
	Update(ctx context.Context, recordType string, updates []Update, opts *Options) (int, error)
	// Delete removes the records with the given ids.
	Delete(ctx context.Context, recordType string, ids []string, opts *Options) error
	// EndTransaction commits when cause is nil and aborts otherwise.
	EndTransaction(ctx context.Context, cause error) error
}

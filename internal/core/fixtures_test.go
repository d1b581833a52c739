package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"linkcore/internal/infra/persistence/memory"
	"linkcore/pkg/domain"
)

// blogSchema models users, posts and tags with one link of every arity
// combination plus a one-way link and a denormalized inverse.
func blogSchema() domain.Schema {
	return domain.Schema{
		"user": {
			"name":      {Type: domain.ValueString, Required: true},
			"posts":     {Link: "post", Inverse: "author", IsArray: true},
			"favorite":  {Link: "post", Inverse: "fans"},
			"reviewing": {Link: "post", Inverse: "reviewer", IsArray: true, DenormalizedInverse: true},
		},
		"post": {
			"title":       {Type: domain.ValueString},
			"views":       {Type: domain.ValueInteger},
			"score":       {Type: domain.ValueNumber},
			"draft":       {Type: domain.ValueBoolean},
			"publishedAt": {Type: domain.ValueTime},
			"meta":        {Type: domain.ValueObject},
			"labels":      {Type: domain.ValueString, IsArray: true},
			"author":      {Link: "user", Inverse: "posts"},
			"fans":        {Link: "user", Inverse: "favorite", IsArray: true},
			"tags":        {Link: "tag", Inverse: "posts", IsArray: true},
			"reviewer":    {Link: "user", Inverse: "reviewing"},
			"editor":      {Link: "user"},
		},
		"tag": {
			"label": {Type: domain.ValueString},
			"posts": {Link: "post", Inverse: "tags", IsArray: true},
		},
	}
}

// seededStore returns a memory store holding two users and one tag.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.ImportState(memory.Snapshot{
		"user": {
			"u1": {"name": "Ada", "posts": []string{}},
			"u2": {"name": "Grace", "posts": []string{}},
		},
		"tag": {
			"t1": {"label": "go", "posts": []string{}},
		},
	})
	return store
}

func mustFind(t *testing.T, adapter domain.Adapter, recordType, id string) domain.Record {
	t.Helper()
	found, err := adapter.Find(context.Background(), recordType, []string{id}, nil)
	if err != nil {
		t.Fatalf("find %s/%s: %v", recordType, id, err)
	}
	if len(found) != 1 {
		t.Fatalf("find %s/%s: got %d records", recordType, id, len(found))
	}
	return found[0]
}

var errInjected = errors.New("injected failure")

// faultAdapter wraps an adapter, counts calls, and fails chosen operations.
type faultAdapter struct {
	inner domain.Adapter

	mu            sync.Mutex
	finds         int
	begins        int
	creates       int
	updates       int
	deletes       int
	ends          []error
	failFind      error
	failBegin     error
	failCreate    error
	failUpdate    map[string]error
	failDelete    error
	failCommit    error
	rewriteCreate func([]domain.Record) []domain.Record
	// vanished lists ids per type that updates no longer match, as if a
	// concurrent request removed them after the links were checked.
	vanished map[string][]string
}

func newFaultAdapter(inner domain.Adapter) *faultAdapter {
	return &faultAdapter{inner: inner, failUpdate: map[string]error{}}
}

func (a *faultAdapter) Find(ctx context.Context, recordType string, ids []string, opts *domain.Options) ([]domain.Record, error) {
	a.mu.Lock()
	a.finds++
	fail := a.failFind
	a.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return a.inner.Find(ctx, recordType, ids, opts)
}

func (a *faultAdapter) BeginTransaction(ctx context.Context) (domain.Transaction, error) {
	a.mu.Lock()
	a.begins++
	fail := a.failBegin
	a.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	tx, err := a.inner.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &faultTx{inner: tx, parent: a}, nil
}

func (a *faultAdapter) writes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creates + a.updates + a.deletes
}

func (a *faultAdapter) endCauses() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.ends...)
}

type faultTx struct {
	inner  domain.Transaction
	parent *faultAdapter
}

func (tx *faultTx) Create(ctx context.Context, recordType string, records []domain.Record, opts *domain.Options) ([]domain.Record, error) {
	a := tx.parent
	a.mu.Lock()
	a.creates++
	fail, rewrite := a.failCreate, a.rewriteCreate
	a.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	created, err := tx.inner.Create(ctx, recordType, records, opts)
	if err != nil || rewrite == nil {
		return created, err
	}
	return rewrite(created), nil
}

func (tx *faultTx) Update(ctx context.Context, recordType string, updates []domain.Update, opts *domain.Options) (int, error) {
	a := tx.parent
	a.mu.Lock()
	a.updates++
	fail := a.failUpdate[recordType]
	gone := a.vanished[recordType]
	a.mu.Unlock()
	if fail != nil {
		return 0, fail
	}
	kept := make([]domain.Update, 0, len(updates))
	for _, u := range updates {
		if !slices.Contains(gone, u.ID) {
			kept = append(kept, u)
		}
	}
	return tx.inner.Update(ctx, recordType, kept, opts)
}

func (tx *faultTx) Delete(ctx context.Context, recordType string, ids []string, opts *domain.Options) error {
	a := tx.parent
	a.mu.Lock()
	a.deletes++
	fail := a.failDelete
	a.mu.Unlock()
	if fail != nil {
		return fail
	}
	return tx.inner.Delete(ctx, recordType, ids, opts)
}

func (tx *faultTx) EndTransaction(ctx context.Context, cause error) error {
	a := tx.parent
	a.mu.Lock()
	a.ends = append(a.ends, cause)
	fail := a.failCommit
	a.mu.Unlock()
	if cause == nil && fail != nil {
		if err := tx.inner.EndTransaction(ctx, fail); err != nil {
			return err
		}
		return fail
	}
	return tx.inner.EndTransaction(ctx, cause)
}

package integration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"linkcore/internal/core"
	"linkcore/internal/infra/persistence/memory"
	"linkcore/internal/infra/persistence/postgres"
	"linkcore/internal/infra/persistence/postgres/testutil"
	"linkcore/internal/infra/persistence/sqlite"
	"linkcore/internal/schema"
	"linkcore/pkg/domain"
)

const blogSchema = `
types:
  user:
    name:
      type: string
      required: true
    posts:
      link: post
      inverse: author
      isArray: true
    favorite:
      link: post
      inverse: fans
  post:
    title:
      type: string
    author:
      link: user
      inverse: posts
    fans:
      link: user
      inverse: favorite
      isArray: true
    tags:
      link: tag
      inverse: posts
      isArray: true
  tag:
    label:
      type: string
    posts:
      link: post
      inverse: tags
      isArray: true
`

func loadSchema(t *testing.T) domain.Schema {
	t.Helper()
	reg, err := schema.Parse(strings.NewReader(blogSchema))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return reg
}

// adapterVariant opens one storage backend; reopen is nil when the backend
// cannot be reopened from the test.
type adapterVariant struct {
	name   string
	open   func(t *testing.T) domain.Adapter
	reopen func(t *testing.T) domain.Adapter
}

func adapterVariants() []adapterVariant {
	var sqlitePath string
	return []adapterVariant{
		{
			name: "memory",
			open: func(_ *testing.T) domain.Adapter { return memory.NewStore() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) domain.Adapter {
				sqlitePath = filepath.Join(t.TempDir(), "links.db")
				return openSQLite(t, sqlitePath)
			},
			reopen: func(t *testing.T) domain.Adapter { return openSQLite(t, sqlitePath) },
		},
		{
			name: "postgres-stub",
			open: func(t *testing.T) domain.Adapter {
				db, _ := testutil.NewStubDB()
				restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
				t.Cleanup(restore)
				store, err := postgres.NewStore(context.Background(), "")
				if err != nil {
					t.Fatalf("open postgres: %v", err)
				}
				t.Cleanup(func() { _ = store.Close() })
				return store
			},
		},
	}
}

func openSQLite(t *testing.T, path string) domain.Adapter {
	t.Helper()
	store, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func create(t *testing.T, svc *core.Service, recordType, payload string) *domain.Response {
	t.Helper()
	resp, err := svc.Create(context.Background(), &domain.Request{Type: recordType, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("create %s: %v", recordType, err)
	}
	return resp
}

func find(t *testing.T, adapter domain.Adapter, recordType, id string) domain.Record {
	t.Helper()
	found, err := adapter.Find(context.Background(), recordType, []string{id}, nil)
	if err != nil {
		t.Fatalf("find %s/%s: %v", recordType, id, err)
	}
	if len(found) != 1 {
		t.Fatalf("expected %s/%s to exist", recordType, id)
	}
	return found[0]
}

func linked(record domain.Record, field string) []string {
	return domain.IDs(record[field])
}

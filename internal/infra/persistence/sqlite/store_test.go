package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"linkcore/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := openStore(t, path)

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "user", []domain.Record{{"id": "u1", "name": "Ada", "age": 36, "posts": []string{}}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = store.Close()

	reloaded := openStore(t, path)
	got, err := reloaded.Find(ctx, "user", []string{"u1"}, nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 user after reload, got %d", len(got))
	}
	if got[0]["name"] != "Ada" || got[0]["age"] != json.Number("36") {
		t.Fatalf("unexpected reloaded record: %#v", got[0])
	}
	if posts := got[0]["posts"]; !reflect.DeepEqual(posts, []any{}) {
		t.Fatalf("expected empty posts array, got %#v", posts)
	}
	if reloaded.Path() != path {
		t.Fatalf("expected path %s, got %s", path, reloaded.Path())
	}
}

func TestSQLiteStoreAbortWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "post", []domain.Record{{"id": "p1"}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, errors.New("abort")); err != nil {
		t.Fatalf("abort: %v", err)
	}

	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no snapshot rows after abort, got %d", count)
	}
}

func TestSQLiteStoreOnlyRewritesTouchedTypes(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))

	commit := func(recordType string, id string) {
		t.Helper()
		tx, err := store.BeginTransaction(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if _, err := tx.Create(ctx, recordType, []domain.Record{{"id": id}}, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := tx.EndTransaction(ctx, nil); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	commit("user", "u1")
	commit("post", "p1")

	rows, err := store.DB().Query(`SELECT record_type FROM snapshots ORDER BY record_type`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var types []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		types = append(types, name)
	}
	if !reflect.DeepEqual(types, []string{"post", "user"}) {
		t.Fatalf("expected snapshot rows for post and user, got %v", types)
	}
}

func TestSQLiteStoreCommitFailsWhenDatabaseClosed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	_ = store.DB().Close()

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "user", []domain.Record{{"id": "u1"}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, nil); err == nil {
		t.Fatalf("expected commit to fail when snapshot cannot be written")
	}
	if got, _ := store.Find(ctx, "user", nil, nil); len(got) != 0 {
		t.Fatalf("expected failed commit to leave state unchanged, got %+v", got)
	}
}

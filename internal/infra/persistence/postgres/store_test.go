package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"linkcore/internal/infra/persistence/postgres/testutil"
	"linkcore/pkg/domain"
)

func openStub(t *testing.T, seed func(*testutil.Snapshots)) (*Store, *testutil.Snapshots) {
	t.Helper()
	db, snaps := testutil.NewStubDB()
	if seed != nil {
		seed(snaps)
	}
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Errorf("unexpected driver %q", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, snaps
}

func TestNewStoreCreatesTableAndLoadsSnapshot(t *testing.T) {
	store, snaps := openStub(t, func(s *testutil.Snapshots) {
		s.Seed("user", []byte(`{"u1":{"id":"u1","posts":["p1"]}}`))
		s.Seed("tag", nil)
	})

	stmts := snaps.Statements()
	if len(stmts) == 0 || !strings.Contains(stmts[0], "JSONB") {
		t.Fatalf("expected JSONB table DDL first, got %v", stmts)
	}
	got, err := store.Find(context.Background(), "user", []string{"u1"}, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected u1 loaded, got %v (err=%v)", got, err)
	}
	if ids := domain.IDs(got[0]["posts"]); len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("expected posts [p1], got %v", got[0]["posts"])
	}
	if tags, err := store.Find(context.Background(), "tag", nil, nil); err != nil || len(tags) != 0 {
		t.Fatalf("expected empty tag table, got %v (err=%v)", tags, err)
	}
}

func TestCommitWritesTouchedTypes(t *testing.T) {
	ctx := context.Background()
	store, snaps := openStub(t, func(s *testutil.Snapshots) {
		s.Seed("user", []byte(`{"u1":{"id":"u1"}}`))
	})

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "post", []domain.Record{{"id": "p1", "title": "Hello"}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if types := snaps.RecordTypes(); len(types) != 2 || types[0] != "post" || types[1] != "user" {
		t.Fatalf("unexpected stored types %v", types)
	}
	payload, _ := snaps.Payload("post")
	var table map[string]domain.Record
	if err := json.Unmarshal(payload, &table); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if table["p1"]["title"] != "Hello" {
		t.Fatalf("unexpected payload: %v", table)
	}
	if user, _ := snaps.Payload("user"); string(user) != `{"u1":{"id":"u1"}}` {
		t.Fatalf("untouched user table rewritten: %s", user)
	}
}

func TestCommitFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	store, snaps := openStub(t, nil)
	snaps.Fault.Commit = errors.New("commit refused")

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "post", []domain.Record{{"id": "p1"}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, nil); err == nil || !strings.Contains(err.Error(), "commit refused") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if got, _ := store.Find(ctx, "post", nil, nil); len(got) != 0 {
		t.Fatalf("expected no committed posts, got %v", got)
	}
	if types := snaps.RecordTypes(); len(types) != 0 {
		t.Fatalf("expected nothing stored, got %v", types)
	}
}

func TestUpsertFailureVetoesCommit(t *testing.T) {
	ctx := context.Background()
	store, snaps := openStub(t, nil)
	snaps.Fault.Upsert = errors.New("disk full")

	tx, err := store.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Create(ctx, "tag", []domain.Record{{"id": "t1"}}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.EndTransaction(ctx, nil); err == nil || !strings.Contains(err.Error(), "upsert tag") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
	if got, _ := store.Find(ctx, "tag", nil, nil); len(got) != 0 {
		t.Fatalf("expected no committed tags, got %v", got)
	}
}

func TestNewStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name string
		seed func(*testutil.Snapshots)
		open error
		want string
	}{
		{name: "open", open: errors.New("dial refused"), want: "open postgres"},
		{name: "ping", seed: func(s *testutil.Snapshots) { s.Fault.Ping = boom }, want: "ping postgres"},
		{name: "load", seed: func(s *testutil.Snapshots) { s.Fault.Select = boom }, want: "select snapshots"},
		{name: "decode", seed: func(s *testutil.Snapshots) { s.Seed("user", []byte("not json")) }, want: "decode user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, snaps := testutil.NewStubDB()
			if tc.seed != nil {
				tc.seed(snaps)
			}
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
				if tc.open != nil {
					return nil, tc.open
				}
				return db, nil
			})
			defer restore()
			_, err := NewStore(context.Background(), "postgres://example")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"linkcore/internal/infra/persistence/memory"
	"linkcore/pkg/domain"
)

func openTable(t *testing.T) (*Table, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	table, err := Open(context.Background(), db, SQLite)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return table, db
}

func TestSaveWritesOnlyTouchedTypes(t *testing.T) {
	ctx := context.Background()
	table, _ := openTable(t)
	state := memory.Snapshot{
		"user": {"u1": {"id": "u1", "age": 36}},
		"post": {"p1": {"id": "p1"}},
	}
	if err := table.Save(ctx, state, []string{"user"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := table.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := loaded["post"]; ok {
		t.Fatalf("untouched type written: %v", loaded)
	}
	if got := loaded["user"]["u1"]["age"]; got != json.Number("36") {
		t.Fatalf("expected json.Number age, got %#v", got)
	}

	state["user"]["u1"] = domain.Record{"id": "u1", "age": 37}
	if err := table.Save(ctx, state, []string{"user", "post"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	loaded, err = table.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded) != 2 || loaded["user"]["u1"]["age"] != json.Number("37") {
		t.Fatalf("expected upserted rows, got %v", loaded)
	}
}

func TestSaveFailsOnClosedDB(t *testing.T) {
	table, db := openTable(t)
	_ = db.Close()
	if err := table.Save(context.Background(), memory.Snapshot{}, []string{"user"}); err == nil {
		t.Fatalf("expected save to fail")
	}
	if _, err := table.Load(context.Background()); err == nil {
		t.Fatalf("expected load to fail")
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(nil)
	if err != nil || string(data) != "{}" {
		t.Fatalf("nil table encoded as %q (%v)", data, err)
	}
	for _, payload := range [][]byte{nil, []byte("  ")} {
		table, err := Decode(payload)
		if err != nil || len(table) != 0 {
			t.Fatalf("blank payload decoded as %v (%v)", table, err)
		}
	}
	table, err := Decode([]byte(`{"t1":{"id":"t1","posts":["p1"],"score":1.5}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]domain.Record{"t1": {"id": "t1", "posts": []any{"p1"}, "score": json.Number("1.5")}}
	if !reflect.DeepEqual(table, want) {
		t.Fatalf("decoded %#v", table)
	}
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

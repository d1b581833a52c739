package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"linkcore/pkg/domain"
)

func TestEnforce(t *testing.T) {
	fields := blogSchema()["post"]
	cases := []struct {
		name   string
		record domain.Record
		field  string
	}{
		{name: "empty record", record: domain.Record{}},
		{name: "client id", record: domain.Record{"id": "p1", "title": "hi"}},
		{name: "null id", record: domain.Record{"id": nil}},
		{name: "numeric id", record: domain.Record{"id": 7}, field: "id"},
		{name: "unknown field", record: domain.Record{"body": "x"}, field: "body"},
		{name: "string", record: domain.Record{"title": 3}, field: "title"},
		{name: "null scalar", record: domain.Record{"title": nil}},
		{name: "integer", record: domain.Record{"views": 3}},
		{name: "integral float", record: domain.Record{"views": 3.0}},
		{name: "fractional float", record: domain.Record{"views": 3.5}, field: "views"},
		{name: "json integer", record: domain.Record{"views": json.Number("12")}},
		{name: "json fraction as integer", record: domain.Record{"views": json.Number("1.5")}, field: "views"},
		{name: "json fraction as number", record: domain.Record{"score": json.Number("1.5")}},
		{name: "NaN", record: domain.Record{"score": math.NaN()}, field: "score"},
		{name: "boolean", record: domain.Record{"draft": true}},
		{name: "boolean string", record: domain.Record{"draft": "true"}, field: "draft"},
		{name: "time value", record: domain.Record{"publishedAt": time.Now()}},
		{name: "time string", record: domain.Record{"publishedAt": "2024-05-01T10:00:00Z"}},
		{name: "bad time string", record: domain.Record{"publishedAt": "yesterday"}, field: "publishedAt"},
		{name: "object", record: domain.Record{"meta": map[string]any{"a": 1}}},
		{name: "object scalar", record: domain.Record{"meta": "a"}, field: "meta"},
		{name: "array of strings", record: domain.Record{"labels": []string{"a", "b"}}},
		{name: "array expected", record: domain.Record{"labels": "a"}, field: "labels"},
		{name: "array with null", record: domain.Record{"labels": []any{"a", nil}}, field: "labels"},
		{name: "array element kind", record: domain.Record{"labels": []any{"a", 1}}, field: "labels"},
		{name: "singular link", record: domain.Record{"author": "u1"}},
		{name: "singular link array", record: domain.Record{"author": []string{"u1"}}, field: "author"},
		{name: "empty link id", record: domain.Record{"author": ""}, field: "author"},
		{name: "numeric link id", record: domain.Record{"editor": 4}, field: "editor"},
		{name: "array link", record: domain.Record{"fans": []any{"u1", "u2"}}},
		{name: "empty array link", record: domain.Record{"fans": []string{}}},
		{name: "duplicate link ids", record: domain.Record{"fans": []string{"u1", "u1"}}, field: "fans"},
		{name: "array link scalar", record: domain.Record{"fans": "u1"}, field: "fans"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Enforce("post", tc.record, fields)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var de *domain.Error
			if !errors.As(err, &de) || de.Field != tc.field {
				t.Fatalf("expected field %q in %v", tc.field, err)
			}
			if de.Type != "post" {
				t.Fatalf("expected type post, got %q", de.Type)
			}
		})
	}
}

func TestEnforceRequired(t *testing.T) {
	fields := blogSchema()["user"]
	if err := Enforce("user", domain.Record{}, fields); !domain.IsValidation(err) {
		t.Fatalf("expected required failure, got %v", err)
	}
	if err := Enforce("user", domain.Record{"name": nil}, fields); !domain.IsValidation(err) {
		t.Fatalf("expected required failure for null, got %v", err)
	}
	if err := Enforce("user", domain.Record{"name": "Ada"}, fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnforceDoesNotMutate(t *testing.T) {
	record := domain.Record{"title": "x", "fans": []any{"u1"}}
	before := record.Clone()
	_ = Enforce("post", record, blogSchema()["post"])
	if len(record) != len(before) || record["title"] != before["title"] {
		t.Fatalf("record mutated: %v", record)
	}
}

func TestEnforceReportsFirstFieldInOrder(t *testing.T) {
	err := Enforce("post", domain.Record{"views": "a", "title": 1}, blogSchema()["post"])
	var de *domain.Error
	if !errors.As(err, &de) || de.Field != "title" {
		t.Fatalf("expected title to be reported first, got %v", err)
	}
}

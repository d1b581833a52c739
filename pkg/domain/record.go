// Package domain defines the record, schema, patch, and change-event types
// shared by the link-consistency engine and the collaborators it drives
// (adapters, serializers, transforms, change sinks).
package domain

import "sort"

// PrimaryKey names the identifier field carried by every record. The value is
// assigned by the adapter on create and is immutable afterwards.
const PrimaryKey = "id"

// Record maps field names to values. Values are scalars, slices of scalars,
// nested objects, or nil.
type Record map[string]any

// ID returns the record's primary identifier, or "" when absent.
func (r Record) ID() string {
	id, _ := r[PrimaryKey].(string)
	return id
}

// Clone returns a deep copy of the record so callers can mutate the result
// without affecting shared state.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Project returns a copy holding only the primary key and the named fields.
// An empty field list returns a full clone.
func (r Record) Project(fields []string) Record {
	if len(fields) == 0 {
		return r.Clone()
	}
	out := Record{}
	if id, ok := r[PrimaryKey]; ok {
		out[PrimaryKey] = id
	}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = CloneValue(v)
		}
	}
	return out
}

// CloneValue deep-copies the container shapes a record value can take.
func CloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return t
		}
		cp := make([]any, len(t))
		for i, item := range t {
			cp[i] = CloneValue(item)
		}
		return cp
	case []string:
		if t == nil {
			return t
		}
		cp := make([]string, len(t))
		copy(cp, t)
		return cp
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, item := range t {
			cp[k] = CloneValue(item)
		}
		return cp
	case Record:
		return t.Clone()
	default:
		return v
	}
}

// IDs normalizes a link value into the ids it references. A scalar becomes a
// one-element slice; nil values and nil elements are dropped.
func IDs(value any) []string {
	switch t := value.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		out := make([]string, 0, len(t))
		for _, id := range t {
			if id != "" {
				out = append(out, id)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if id, ok := item.(string); ok && id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		return nil
	}
}

// UniqueIDs returns ids with duplicates removed, preserving first occurrence.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RecordIDs collects the primary ids of records in order.
func RecordIDs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID())
	}
	return out
}

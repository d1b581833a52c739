package core

import (
	"encoding/json"
	"math"
	"reflect"
	"time"

	"linkcore/pkg/domain"
)

// Enforce validates a record against its type's field descriptors. It reports
// the first violation in field-name order and never mutates the record.
func Enforce(recordType string, record domain.Record, fields domain.RecordType) error {
	for _, name := range record.Fields() {
		value := record[name]
		if name == domain.PrimaryKey {
			if _, ok := value.(string); value != nil && !ok {
				return domain.ValidationFailure(recordType, name, "primary id must be a string")
			}
			continue
		}
		desc, ok := fields[name]
		if !ok {
			return domain.ValidationFailure(recordType, name, "field is not defined")
		}
		if err := enforceValue(recordType, name, desc, value); err != nil {
			return err
		}
	}
	for _, name := range fields.Names() {
		desc := fields[name]
		if !desc.Required || desc.DenormalizedInverse {
			continue
		}
		if v, ok := record[name]; !ok || v == nil {
			return domain.ValidationFailure(recordType, name, "field is required")
		}
	}
	return nil
}

func enforceValue(recordType, name string, desc domain.FieldDescriptor, value any) error {
	if value == nil {
		return nil
	}
	items, isSlice := sliceItems(value)
	if desc.IsArray {
		if !isSlice {
			return domain.ValidationFailure(recordType, name, "expected an array")
		}
		for _, item := range items {
			if item == nil {
				return domain.ValidationFailure(recordType, name, "array must not contain null")
			}
			if err := enforceKind(recordType, name, desc, item); err != nil {
				return err
			}
		}
		if desc.IsLink() && len(domain.UniqueIDs(domain.IDs(value))) != len(items) {
			return domain.ValidationFailure(recordType, name, "duplicate ids in link array")
		}
		return nil
	}
	if isSlice {
		return domain.ValidationFailure(recordType, name, "expected a single value, got an array")
	}
	return enforceKind(recordType, name, desc, value)
}

func enforceKind(recordType, name string, desc domain.FieldDescriptor, value any) error {
	if desc.IsLink() {
		if id, ok := value.(string); !ok || id == "" {
			return domain.ValidationFailure(recordType, name, "link values must be non-empty string ids")
		}
		return nil
	}
	ok := true
	switch desc.Type {
	case domain.ValueString:
		_, ok = value.(string)
	case domain.ValueBoolean:
		_, ok = value.(bool)
	case domain.ValueNumber:
		ok = isNumber(value)
	case domain.ValueInteger:
		ok = isInteger(value)
	case domain.ValueTime:
		ok = isTime(value)
	case domain.ValueObject:
		switch value.(type) {
		case map[string]any, domain.Record:
		default:
			ok = false
		}
	}
	if !ok {
		return domain.ValidationFailure(recordType, name, "expected %s, got %T", desc.Type, value)
	}
	return nil
}

// sliceItems reports whether value is a collection and returns its elements.
// Byte slices are scalars.
func sliceItems(value any) ([]any, bool) {
	switch t := value.(type) {
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isNumber(value any) bool {
	switch t := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(t))
	case float64:
		return !math.IsNaN(t)
	case json.Number:
		_, err := t.Float64()
		return err == nil
	default:
		return false
	}
}

func isInteger(value any) bool {
	switch t := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return t == math.Trunc(t) && !math.IsInf(t, 0)
	case float32:
		f := float64(t)
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	case json.Number:
		_, err := t.Int64()
		return err == nil
	default:
		return false
	}
}

func isTime(value any) bool {
	switch t := value.(type) {
	case time.Time:
		return true
	case string:
		_, err := time.Parse(time.RFC3339Nano, t)
		return err == nil
	default:
		return false
	}
}

package domain

import (
	"errors"
	"fmt"
	"sort"
)

// ValueType names the primitive kind a non-link field accepts.
type ValueType string

// Supported value types. An empty ValueType behaves like ValueAny.
const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueInteger ValueType = "integer"
	ValueBoolean ValueType = "boolean"
	ValueTime    ValueType = "time"
	ValueObject  ValueType = "object"
	ValueAny     ValueType = "any"
)

var knownValueTypes = map[ValueType]bool{
	"":           true,
	ValueString:  true,
	ValueNumber:  true,
	ValueInteger: true,
	ValueBoolean: true,
	ValueTime:    true,
	ValueObject:  true,
	ValueAny:     true,
}

// FieldDescriptor describes one field of a record type.
type FieldDescriptor struct {
	// Type is the primitive kind for non-link fields.
	Type ValueType `json:"type,omitempty" yaml:"type,omitempty"`
	// Link names the record type this field references.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
	// Inverse names the field on the linked type that points back here.
	Inverse string `json:"inverse,omitempty" yaml:"inverse,omitempty"`
	// IsArray reports whether the field holds a collection.
	IsArray bool `json:"isArray,omitempty" yaml:"isArray,omitempty"`
	// Required fields must be present and non-null on create.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// DenormalizedInverse marks a cached copy of inverse-side data. Clients
	// may not write it; it is stripped before persistence.
	DenormalizedInverse bool `json:"denormalizedInverse,omitempty" yaml:"denormalizedInverse,omitempty"`
}

// IsLink reports whether the field references another record type.
func (f FieldDescriptor) IsLink() bool { return f.Link != "" }

// RecordType maps field names to their descriptors.
type RecordType map[string]FieldDescriptor

// Names returns the declared field names in sorted order.
func (t RecordType) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Links returns the link-bearing field names in sorted order.
func (t RecordType) Links() []string {
	var names []string
	for name, f := range t {
		if f.IsLink() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Denormalized returns the fields flagged as denormalized inverses.
func (t RecordType) Denormalized() []string {
	var names []string
	for name, f := range t {
		if f.DenormalizedInverse {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Schema is the read-only registry of record types keyed by type name.
type Schema map[string]RecordType

// Type looks up a record type by name.
func (s Schema) Type(name string) (RecordType, bool) {
	t, ok := s[name]
	return t, ok
}

// Types returns the registered type names in sorted order.
func (s Schema) Types() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the registry for dangling links and asymmetric inverses.
// All problems are reported together.
func (s Schema) Validate() error {
	var errs []error
	for _, typeName := range s.Types() {
		fields := s[typeName]
		if _, ok := fields[PrimaryKey]; ok {
			errs = append(errs, fmt.Errorf("%s: primary field %q must not be declared", typeName, PrimaryKey))
		}
		for _, name := range fields.Names() {
			f := fields[name]
			if !knownValueTypes[f.Type] {
				errs = append(errs, fmt.Errorf("%s.%s: unknown type %q", typeName, name, f.Type))
			}
			if !f.IsLink() {
				if f.Inverse != "" {
					errs = append(errs, fmt.Errorf("%s.%s: inverse declared without link", typeName, name))
				}
				if f.DenormalizedInverse {
					errs = append(errs, fmt.Errorf("%s.%s: denormalized inverse must be a link", typeName, name))
				}
				continue
			}
			target, ok := s[f.Link]
			if !ok {
				errs = append(errs, fmt.Errorf("%s.%s: links to unknown type %q", typeName, name, f.Link))
				continue
			}
			if f.Inverse == "" {
				continue
			}
			inverse, ok := target[f.Inverse]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%s.%s: inverse %s.%s is not declared", typeName, name, f.Link, f.Inverse))
			case inverse.Link != typeName:
				errs = append(errs, fmt.Errorf("%s.%s: inverse %s.%s links to %q", typeName, name, f.Link, f.Inverse, inverse.Link))
			case inverse.Inverse != name:
				errs = append(errs, fmt.Errorf("%s.%s: inverse %s.%s points back to %q", typeName, name, f.Link, f.Inverse, inverse.Inverse))
			}
		}
	}
	return errors.Join(errs...)
}

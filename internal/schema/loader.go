// Package schema loads the record type registry from YAML.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"linkcore/pkg/domain"
)

type document struct {
	Types domain.Schema `yaml:"types"`
}

// Parse decodes a registry document and validates it. Unknown keys are
// rejected so a misspelt descriptor attribute fails loudly.
func Parse(r io.Reader) (domain.Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema document is empty")
		}
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, errors.New("schema declares no types")
	}
	for name, fields := range doc.Types {
		if fields == nil {
			doc.Types[name] = domain.RecordType{}
		}
	}
	if err := doc.Types.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return doc.Types, nil
}

// Load reads and parses the registry at path.
func Load(path string) (domain.Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied schema path
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

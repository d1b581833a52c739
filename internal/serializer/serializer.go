// Package serializer turns inbound create payloads into records.
package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"linkcore/pkg/domain"
)

// Content types understood by ByContentType.
const (
	ContentTypeJSON = "application/json"
	ContentTypeBSON = "application/bson"
)

var (
	_ domain.Serializer = JSON{}
	_ domain.Serializer = BSON{}
	_ domain.Serializer = ByContentType{}
)

// envelope is the object form of a payload: {"records": [...]}.
type envelope struct {
	Records []map[string]any `json:"records" bson:"records"`
}

// JSON parses either a top-level array of objects or an object with a
// "records" array. Numbers are kept as json.Number.
type JSON struct{}

// ParseCreate implements domain.Serializer.
func (JSON) ParseCreate(_ context.Context, req *domain.Request) ([]domain.Record, error) {
	payload := bytes.TrimSpace(req.Payload)
	if len(payload) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw []map[string]any
	switch payload[0] {
	case '[':
		if err := dec.Decode(&raw); err != nil {
			return nil, domain.BadRequestf(req.Type, "decode json payload: %v", err)
		}
	case '{':
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return nil, domain.BadRequestf(req.Type, "decode json payload: %v", err)
		}
		raw = env.Records
	default:
		return nil, domain.BadRequestf(req.Type, "json payload must be an array or an object with a records array")
	}
	return toRecords(req.Type, raw)
}

// ByContentType picks BSON for application/bson and JSON otherwise.
type ByContentType struct{}

// ParseCreate implements domain.Serializer.
func (ByContentType) ParseCreate(ctx context.Context, req *domain.Request) ([]domain.Record, error) {
	if strings.HasPrefix(strings.ToLower(req.ContentType), ContentTypeBSON) {
		return BSON{}.ParseCreate(ctx, req)
	}
	return JSON{}.ParseCreate(ctx, req)
}

func toRecords(recordType string, raw []map[string]any) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			return nil, domain.BadRequestf(recordType, "record %d is null", i)
		}
		out = append(out, domain.Record(item))
	}
	return out, nil
}

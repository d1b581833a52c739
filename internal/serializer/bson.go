package serializer

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"linkcore/pkg/domain"
)

// BSON parses a document of the form {records: [...]}. BSON-specific values
// are normalized: arrays become []any, embedded documents map[string]any,
// datetimes time.Time, and object ids their hex string.
type BSON struct{}

// ParseCreate implements domain.Serializer.
func (BSON) ParseCreate(_ context.Context, req *domain.Request) ([]domain.Record, error) {
	if len(req.Payload) == 0 {
		return nil, nil
	}
	var doc struct {
		Records []bson.Raw `bson:"records"`
	}
	if err := bson.Unmarshal(req.Payload, &doc); err != nil {
		return nil, domain.BadRequestf(req.Type, "decode bson payload: %v", err)
	}
	raw := make([]map[string]any, 0, len(doc.Records))
	for i, item := range doc.Records {
		var m bson.M
		if err := bson.Unmarshal(item, &m); err != nil {
			return nil, domain.BadRequestf(req.Type, "decode bson record %d: %v", i, err)
		}
		raw = append(raw, normalizeDocument(m))
	}
	return toRecords(req.Type, raw)
}

func normalizeDocument(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case primitive.M:
		return normalizeDocument(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

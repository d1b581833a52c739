package domain

import "context"

// Request describes one create or delete call.
type Request struct {
	// Type is the primary record type.
	Type string
	// IDs lists the records to delete.
	IDs []string
	// Payload is the raw inbound body handed to the serializer on create.
	Payload []byte
	// ContentType lets serializers that understand several encodings choose.
	ContentType string
	// Options is forwarded to every adapter call.
	Options *Options
}

// Response reports the outcome of a successful request.
type Response struct {
	// Records holds the created records (create) or the records found before
	// deletion (delete).
	Records []Record
	// Change is the event published for the request.
	Change ChangeEvent
}

// Serializer turns inbound payloads into records.
type Serializer interface {
	ParseCreate(ctx context.Context, req *Request) ([]Record, error)
}

// Transform is an optional per-type hook invoked on each record before
// persistence. Returning an error rejects the request.
type Transform interface {
	Input(ctx context.Context, req *Request, record Record) (Record, error)
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(ctx context.Context, req *Request, record Record) (Record, error)

// Input implements Transform.
func (f TransformFunc) Input(ctx context.Context, req *Request, record Record) (Record, error) {
	return f(ctx, req, record)
}

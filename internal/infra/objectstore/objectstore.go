// Package objectstore keeps archived change documents under write-once keys.
package objectstore

import (
	"context"
	"errors"
)

// Backend names an object store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFS     Backend = "fs"
	BackendS3     Backend = "s3"
)

// Object is one stored document.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	Labels      map[string]string
}

// Clone returns a copy that shares no memory with o.
func (o Object) Clone() Object {
	out := o
	out.Body = append([]byte(nil), o.Body...)
	if o.Labels != nil {
		out.Labels = make(map[string]string, len(o.Labels))
		for k, v := range o.Labels {
			out.Labels[k] = v
		}
	}
	return out
}

// Store creates objects once and never overwrites them.
type Store interface {
	// Create stores obj, failing with ErrKeyTaken when obj.Key is in use.
	Create(ctx context.Context, obj Object) error
	// Read returns the object at key or ErrNoSuchKey.
	Read(ctx context.Context, key string) (Object, error)
	// Keys lists the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Backend() Backend
}

var (
	ErrKeyTaken  = errors.New("objectstore: key already taken")
	ErrNoSuchKey = errors.New("objectstore: no such key")
)

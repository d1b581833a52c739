package domain

import (
	"context"
	"sort"
)

// Method names the kind of operation recorded in a change event.
type Method string

// Change methods.
const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// ChangeEvent maps each operation kind to the ids it touched, per record type.
// One event summarizes a whole request: the primary operation and every
// derived inverse update.
type ChangeEvent map[Method]map[string][]string

// IDs returns the ids recorded for a method and type.
func (e ChangeEvent) IDs(method Method, recordType string) []string {
	byType, ok := e[method]
	if !ok {
		return nil
	}
	return byType[recordType]
}

// Types returns the record types recorded under method, sorted.
func (e ChangeEvent) Types(method Method) []string {
	byType := e[method]
	out := make([]string, 0, len(byType))
	for t := range byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies the event.
func (e ChangeEvent) Clone() ChangeEvent {
	if e == nil {
		return nil
	}
	out := make(ChangeEvent, len(e))
	for method, byType := range e {
		cp := make(map[string][]string, len(byType))
		for t, ids := range byType {
			cp[t] = append([]string(nil), ids...)
		}
		out[method] = cp
	}
	return out
}

// ChangeSink receives one change event per successful request. Publishing is
// fire-and-forget from the dispatcher's perspective.
type ChangeSink interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// ChangeSinkFunc adapts a function to ChangeSink.
type ChangeSinkFunc func(ctx context.Context, event ChangeEvent)

// Publish implements ChangeSink.
func (f ChangeSinkFunc) Publish(ctx context.Context, event ChangeEvent) { f(ctx, event) }

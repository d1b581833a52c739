package core

import (
	"sort"

	"linkcore/pkg/domain"
)

// Batches accumulates inverse-side patches keyed by linked record type. Each
// (type, id) pair owns exactly one Update; later references to the same id
// fold into it.
type Batches struct {
	updates map[string][]*domain.Update
	index   map[string]map[string]int
}

// NewBatches returns an empty accumulator.
func NewBatches() *Batches {
	return &Batches{
		updates: make(map[string][]*domain.Update),
		index:   make(map[string]map[string]int),
	}
}

// BuildUpdates computes the patches needed to keep inverse fields consistent
// after records of recordType are created (AddID) or deleted (RemoveID). It
// performs no I/O.
func BuildUpdates(schema domain.Schema, recordType string, records []domain.Record, dir domain.Direction) *Batches {
	b := NewBatches()
	b.Add(schema, recordType, records, dir)
	return b
}

// Add folds the inverse updates for records into the accumulator. Records are
// visited in input order and link fields in sorted order, so when several
// records target the same singular inverse the last one in the batch wins.
func (b *Batches) Add(schema domain.Schema, recordType string, records []domain.Record, dir domain.Direction) {
	fields := schema[recordType]
	links := fields.Links()
	for _, record := range records {
		sourceID := record.ID()
		if sourceID == "" {
			continue
		}
		for _, field := range links {
			desc := fields[field]
			if desc.Inverse == "" {
				continue
			}
			value, ok := record[field]
			if !ok {
				continue
			}
			linkedIsArray := schema[desc.Link][desc.Inverse].IsArray
			for _, id := range domain.IDs(value) {
				update := b.get(desc.Link, id)
				switch dir {
				case domain.AddID:
					addID(update, desc.Inverse, sourceID, linkedIsArray)
				case domain.RemoveID:
					removeID(update, desc.Inverse, sourceID, linkedIsArray)
				}
			}
		}
	}
}

func (b *Batches) get(recordType, id string) *domain.Update {
	idx, ok := b.index[recordType]
	if !ok {
		idx = make(map[string]int)
		b.index[recordType] = idx
	}
	if pos, ok := idx[id]; ok {
		return b.updates[recordType][pos]
	}
	update := &domain.Update{ID: id}
	idx[id] = len(b.updates[recordType])
	b.updates[recordType] = append(b.updates[recordType], update)
	return update
}

func addID(u *domain.Update, field, id string, isArray bool) {
	if !isArray {
		if u.Replace == nil {
			u.Replace = make(map[string]any)
		}
		u.Replace[field] = id
		return
	}
	if u.Push == nil {
		u.Push = make(map[string][]string)
	}
	u.Push[field] = appendUnique(u.Push[field], id)
}

func removeID(u *domain.Update, field, id string, isArray bool) {
	if !isArray {
		if u.Clear == nil {
			u.Clear = make(map[string][]string)
		}
		u.Clear[field] = appendUnique(u.Clear[field], id)
		return
	}
	if u.Pull == nil {
		u.Pull = make(map[string][]string)
	}
	u.Pull[field] = appendUnique(u.Pull[field], id)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Types returns the record types holding at least one patch, sorted.
func (b *Batches) Types() []string {
	out := make([]string, 0, len(b.updates))
	for t, list := range b.updates {
		if len(list) > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Updates returns copies of the patches queued for recordType in first-touch
// order.
func (b *Batches) Updates(recordType string) []domain.Update {
	list := b.updates[recordType]
	out := make([]domain.Update, 0, len(list))
	for _, u := range list {
		out = append(out, u.Clone())
	}
	return out
}

// IDs returns the ids patched for recordType in first-touch order.
func (b *Batches) IDs(recordType string) []string {
	list := b.updates[recordType]
	out := make([]string, 0, len(list))
	for _, u := range list {
		out = append(out, u.ID)
	}
	return out
}

// Len returns the total number of queued patches.
func (b *Batches) Len() int {
	n := 0
	for _, list := range b.updates {
		n += len(list)
	}
	return n
}

// Map returns the accumulator as a plain mapping from type to patches.
func (b *Batches) Map() map[string][]domain.Update {
	out := make(map[string][]domain.Update, len(b.updates))
	for _, t := range b.Types() {
		out[t] = b.Updates(t)
	}
	return out
}

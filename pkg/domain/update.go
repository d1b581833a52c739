package domain

// Direction selects how the update batcher propagates a source id into the
// inverse side of a link.
type Direction int

const (
	// AddID inserts the source id into inverse fields (create).
	AddID Direction = iota + 1
	// RemoveID removes the source id from inverse fields (delete).
	RemoveID
)

func (d Direction) String() string {
	switch d {
	case AddID:
		return "add"
	case RemoveID:
		return "remove"
	default:
		return "unknown"
	}
}

// Update is a pending patch to one existing record. Operations for the same
// record accumulate into a single Update.
type Update struct {
	ID string `json:"id"`
	// Push adds ids to array fields (set union).
	Push map[string][]string `json:"push,omitempty"`
	// Pull removes ids from array fields.
	Pull map[string][]string `json:"pull,omitempty"`
	// Replace overwrites singular fields.
	Replace map[string]any `json:"replace,omitempty"`
	// Clear nulls a singular field only when it currently holds one of the
	// listed ids; otherwise the field is left untouched.
	Clear map[string][]string `json:"clear,omitempty"`
}

// Empty reports whether the patch carries no operations.
func (u Update) Empty() bool {
	return len(u.Push) == 0 && len(u.Pull) == 0 && len(u.Replace) == 0 && len(u.Clear) == 0
}

// Clone deep-copies the patch.
func (u Update) Clone() Update {
	out := Update{ID: u.ID}
	if u.Push != nil {
		out.Push = cloneIDMap(u.Push)
	}
	if u.Pull != nil {
		out.Pull = cloneIDMap(u.Pull)
	}
	if u.Clear != nil {
		out.Clear = cloneIDMap(u.Clear)
	}
	if u.Replace != nil {
		out.Replace = make(map[string]any, len(u.Replace))
		for k, v := range u.Replace {
			out.Replace[k] = CloneValue(v)
		}
	}
	return out
}

// Apply returns a copy of record with the patch applied. Adapters that keep
// records in memory share this implementation so every backend resolves
// operations in the same order: replace, clear, push, pull.
func (u Update) Apply(record Record) Record {
	out := record.Clone()
	if out == nil {
		out = Record{}
	}
	for field, value := range u.Replace {
		out[field] = CloneValue(value)
	}
	for field, ids := range u.Clear {
		current, ok := out[field].(string)
		if !ok {
			continue
		}
		for _, id := range ids {
			if current == id {
				out[field] = nil
				break
			}
		}
	}
	for field, ids := range u.Push {
		existing := IDs(out[field])
		for _, id := range ids {
			if !containsID(existing, id) {
				existing = append(existing, id)
			}
		}
		out[field] = existing
	}
	for field, ids := range u.Pull {
		existing := IDs(out[field])
		kept := make([]string, 0, len(existing))
		for _, id := range existing {
			if !containsID(ids, id) {
				kept = append(kept, id)
			}
		}
		out[field] = kept
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneIDMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

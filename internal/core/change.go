package core

import "linkcore/pkg/domain"

// BuildChangeEvent summarizes a committed request: the primary ids under
// method plus the ids of every non-empty derived update batch.
func BuildChangeEvent(method domain.Method, recordType string, ids []string, batches *Batches) domain.ChangeEvent {
	event := domain.ChangeEvent{
		method: {recordType: append([]string(nil), ids...)},
	}
	if batches == nil {
		return event
	}
	for _, t := range batches.Types() {
		updated := batches.IDs(t)
		if len(updated) == 0 {
			continue
		}
		if event[domain.MethodUpdate] == nil {
			event[domain.MethodUpdate] = make(map[string][]string)
		}
		event[domain.MethodUpdate][t] = updated
	}
	return event
}

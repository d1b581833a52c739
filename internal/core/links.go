package core

import (
	"context"
	"fmt"

	"linkcore/pkg/domain"
)

// CheckLinks verifies that every id referenced by the record's link fields
// exists in its target type. It only reads, so it runs before any
// transaction is opened.
func CheckLinks(ctx context.Context, adapter domain.Adapter, recordType string, record domain.Record, fields domain.RecordType) error {
	for _, field := range fields.Links() {
		value, ok := record[field]
		if !ok {
			continue
		}
		ids := domain.UniqueIDs(domain.IDs(value))
		if len(ids) == 0 {
			continue
		}
		target := fields[field].Link
		found, err := adapter.Find(ctx, target, ids, &domain.Options{Fields: []string{domain.PrimaryKey}})
		if err != nil {
			return fmt.Errorf("check links %s.%s: %w", recordType, field, err)
		}
		if len(found) == len(ids) {
			continue
		}
		present := make(map[string]struct{}, len(found))
		for _, r := range found {
			present[r.ID()] = struct{}{}
		}
		var missing []string
		for _, id := range ids {
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return domain.DanglingLink(recordType, field, missing)
		}
	}
	return nil
}

package attendance

import (
	"context"

	"attendancehub/internal/model"
	"attendancehub/internal/store"
)

// RecordStore is the slice of the records collection the reconciler needs.
type RecordStore interface {
	Where(ctx context.Context, filters ...store.Filter) ([]store.Entry[model.AttendanceRecord], error)
	Create(ctx context.Context, rec model.AttendanceRecord) (store.Entry[model.AttendanceRecord], error)
	Delete(ctx context.Context, internalID string) error
}

// StudentStore counts a group's roster when a record is submitted.
type StudentStore interface {
	Where(ctx context.Context, filters ...store.Filter) ([]store.Entry[model.Student], error)
}

// KeyFilters builds the equality filters addressing one record key.
func KeyFilters(k model.RecordKey) []store.Filter {
	return []store.Filter{
		store.Eq("date", k.Date.String()),
		store.Eq("groupId", k.GroupID),
		store.Eq("courtId", k.CourtID),
	}
}

// newest picks the entry that wins for a key: the latest submittedAt, and
// among equals the one listed last.
func newest(entries []store.Entry[model.AttendanceRecord]) int {
	best := -1
	for i, e := range entries {
		if best < 0 || !submittedBefore(e.Data, entries[best].Data) {
			best = i
		}
	}
	return best
}

func submittedBefore(a, b model.AttendanceRecord) bool {
	switch {
	case a.SubmittedAt == nil && b.SubmittedAt == nil:
		return false
	case a.SubmittedAt == nil:
		return true
	case b.SubmittedAt == nil:
		return false
	default:
		return a.SubmittedAt.Before(*b.SubmittedAt)
	}
}

// Collapse reduces entries to one record per key, keeping the newest. Keys
// keep the position of their first appearance.
func Collapse(entries []store.Entry[model.AttendanceRecord]) []model.AttendanceRecord {
	groups := make(map[model.RecordKey][]store.Entry[model.AttendanceRecord])
	var order []model.RecordKey
	for _, e := range entries {
		k := e.Data.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}
	out := make([]model.AttendanceRecord, 0, len(order))
	for _, k := range order {
		g := groups[k]
		out = append(out, g[newest(g)].Data)
	}
	return out
}

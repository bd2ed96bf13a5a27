package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Kind names a persisted collection.
type Kind string

const (
	KindStudents Kind = "students"
	KindTrainers Kind = "trainers"
	KindRecords  Kind = "attendance"
)

// ErrNotFound is returned by Update when the internal id does not exist.
var ErrNotFound = errors.New("document not found")

// Doc is a stored document: the backend-assigned identity and the JSON body.
type Doc struct {
	ID   string
	Body json.RawMessage
}

// Filter is an equality match on a top-level body field.
type Filter struct {
	Field string
	Value string
}

// Eq builds a Filter.
func Eq(field, value string) Filter { return Filter{Field: field, Value: value} }

// Query narrows a List call. A zero Limit means no cap. Without OrderBy
// documents come back in insertion order.
type Query struct {
	Limit   int
	Filters []Filter
	OrderBy string
	Desc    bool
}

// Backend is the storage contract every collection is built on. It offers no
// joins or transactions.
type Backend interface {
	List(ctx context.Context, kind Kind, q Query) ([]Doc, error)
	Create(ctx context.Context, kind Kind, body json.RawMessage) (Doc, error)
	Update(ctx context.Context, kind Kind, id string, patch map[string]any) error
	Delete(ctx context.Context, kind Kind, id string) error
}

// PersistenceError wraps any backend failure.
type PersistenceError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// applyQuery filters, orders and caps docs in memory. Backends without a
// query language share it.
func applyQuery(docs []Doc, q Query) ([]Doc, error) {
	type row struct {
		doc    Doc
		fields map[string]any
	}
	rows := make([]row, 0, len(docs))
	for _, d := range docs {
		var fields map[string]any
		if len(q.Filters) > 0 || q.OrderBy != "" {
			if err := json.Unmarshal(d.Body, &fields); err != nil {
				return nil, fmt.Errorf("decode %s: %w", d.ID, err)
			}
		}
		if matches(fields, q.Filters) {
			rows = append(rows, row{doc: d, fields: fields})
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := fieldText(rows[i].fields[q.OrderBy]), fieldText(rows[j].fields[q.OrderBy])
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]Doc, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out, nil
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || fieldText(v) != f.Value {
			return false
		}
	}
	return true
}

// fieldText renders a decoded JSON scalar the way Postgres' ->> operator does.
func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}

// mergePatch applies a shallow merge of patch onto a JSON object body.
func mergePatch(body json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	fields := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		fields[k] = v
	}
	return json.Marshal(fields)
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Entry pairs a value with the storage identity it was loaded under. The
// internal id is what Update and Delete take; the value carries its own
// business id.
type Entry[T any] struct {
	InternalID string `json:"internalId"`
	Data       T      `json:"data"`
}

// Collection is a typed view over one kind of a Backend.
type Collection[T any] struct {
	backend Backend
	kind    Kind
	limit   int
}

// NewCollection returns a collection capped at limit documents per read.
// Documents past the cap are silently dropped.
func NewCollection[T any](b Backend, kind Kind, limit int) *Collection[T] {
	return &Collection[T]{backend: b, kind: kind, limit: limit}
}

func (c *Collection[T]) Kind() Kind { return c.kind }

// List returns up to the cap in insertion order.
func (c *Collection[T]) List(ctx context.Context) ([]Entry[T], error) {
	return c.query(ctx, Query{Limit: c.limit})
}

// Where returns up to the cap of entries matching every filter.
func (c *Collection[T]) Where(ctx context.Context, filters ...Filter) ([]Entry[T], error) {
	return c.query(ctx, Query{Limit: c.limit, Filters: filters})
}

// First returns the earliest entry matching every filter, or nil.
func (c *Collection[T]) First(ctx context.Context, filters ...Filter) (*Entry[T], error) {
	entries, err := c.query(ctx, Query{Limit: 1, Filters: filters})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// FindByBusinessKey returns the first entry whose field equals value, or nil.
func (c *Collection[T]) FindByBusinessKey(ctx context.Context, field, value string) (*Entry[T], error) {
	return c.First(ctx, Eq(field, value))
}

// FindAllByBusinessKey returns every entry whose field equals value, duplicates
// included.
func (c *Collection[T]) FindAllByBusinessKey(ctx context.Context, field, value string) ([]Entry[T], error) {
	return c.Where(ctx, Eq(field, value))
}

// Create stores v under a fresh internal id.
func (c *Collection[T]) Create(ctx context.Context, v T) (Entry[T], error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Entry[T]{}, &PersistenceError{Op: "create", Kind: c.kind, Err: err}
	}
	doc, err := c.backend.Create(ctx, c.kind, body)
	if err != nil {
		return Entry[T]{}, &PersistenceError{Op: "create", Kind: c.kind, Err: err}
	}
	return Entry[T]{InternalID: doc.ID, Data: v}, nil
}

// Update merges patch into the stored document.
func (c *Collection[T]) Update(ctx context.Context, internalID string, patch map[string]any) error {
	if err := c.backend.Update(ctx, c.kind, internalID, patch); err != nil {
		return &PersistenceError{Op: "update", Kind: c.kind, Err: err}
	}
	return nil
}

// Delete removes a document. Deleting a missing id succeeds.
func (c *Collection[T]) Delete(ctx context.Context, internalID string) error {
	if err := c.backend.Delete(ctx, c.kind, internalID); err != nil {
		return &PersistenceError{Op: "delete", Kind: c.kind, Err: err}
	}
	return nil
}

func (c *Collection[T]) query(ctx context.Context, q Query) ([]Entry[T], error) {
	docs, err := c.backend.List(ctx, c.kind, q)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Kind: c.kind, Err: err}
	}
	out := make([]Entry[T], 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, &PersistenceError{Op: "decode", Kind: c.kind, Err: fmt.Errorf("document %s: %w", d.ID, err)}
		}
		out = append(out, Entry[T]{InternalID: d.ID, Data: v})
	}
	return out, nil
}

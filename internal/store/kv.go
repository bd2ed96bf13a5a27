package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mutation computes a key's next value from its current one. Returning
// write=false leaves the key untouched. It may run more than once.
type Mutation func(current string, exists bool) (next string, write bool, err error)

// KV is the minimal key-value engine the kv backend runs on. Update must be
// atomic against every other writer of the key, including other processes
// sharing the engine.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Update(ctx context.Context, key string, fn Mutation) error
}

// MemoryKV is an in-process KV engine.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Update(_ context.Context, key string, fn Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	next, write, err := fn(cur, ok)
	if err != nil || !write {
		return err
	}
	m.data[key] = next
	return nil
}

// kvDoc is one element of a collection's JSON array.
type kvDoc struct {
	ID   string          `json:"_id"`
	Body json.RawMessage `json:"body"`
}

// KVBackend keeps each collection as a single JSON array under
// prefix+kind. Every write is one KV.Update, so backends sharing an engine
// never overwrite each other's changes.
type KVBackend struct {
	kv     KV
	prefix string
}

// NewKVBackend stores collections under keys like "attendance_hub_students".
func NewKVBackend(kv KV, prefix string) *KVBackend {
	return &KVBackend{kv: kv, prefix: prefix}
}

func (b *KVBackend) key(kind Kind) string { return b.prefix + string(kind) }

func (b *KVBackend) decode(kind Kind, raw string, exists bool) ([]kvDoc, error) {
	if !exists || raw == "" {
		return nil, nil
	}
	var docs []kvDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.key(kind), err)
	}
	return docs, nil
}

func encode(docs []kvDoc) (string, error) {
	if docs == nil {
		docs = []kvDoc{}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// mutate runs fn over the decoded collection inside one atomic update.
func (b *KVBackend) mutate(ctx context.Context, kind Kind, fn func(docs []kvDoc) ([]kvDoc, bool, error)) error {
	return b.kv.Update(ctx, b.key(kind), func(cur string, exists bool) (string, bool, error) {
		docs, err := b.decode(kind, cur, exists)
		if err != nil {
			return "", false, err
		}
		next, write, err := fn(docs)
		if err != nil || !write {
			return "", false, err
		}
		raw, err := encode(next)
		return raw, err == nil, err
	})
}

func (b *KVBackend) List(ctx context.Context, kind Kind, q Query) ([]Doc, error) {
	raw, ok, err := b.kv.Get(ctx, b.key(kind))
	if err != nil {
		return nil, err
	}
	stored, err := b.decode(kind, raw, ok)
	if err != nil {
		return nil, err
	}
	docs := make([]Doc, len(stored))
	for i, d := range stored {
		docs[i] = Doc{ID: d.ID, Body: d.Body}
	}
	return applyQuery(docs, q)
}

func (b *KVBackend) Create(ctx context.Context, kind Kind, body json.RawMessage) (Doc, error) {
	doc := kvDoc{ID: uuid.NewString(), Body: append(json.RawMessage(nil), body...)}
	err := b.mutate(ctx, kind, func(docs []kvDoc) ([]kvDoc, bool, error) {
		return append(docs, doc), true, nil
	})
	if err != nil {
		return Doc{}, err
	}
	return Doc{ID: doc.ID, Body: doc.Body}, nil
}

func (b *KVBackend) Update(ctx context.Context, kind Kind, id string, patch map[string]any) error {
	return b.mutate(ctx, kind, func(docs []kvDoc) ([]kvDoc, bool, error) {
		for i := range docs {
			if docs[i].ID != id {
				continue
			}
			merged, err := mergePatch(docs[i].Body, patch)
			if err != nil {
				return nil, false, fmt.Errorf("merge %s: %w", id, err)
			}
			docs[i].Body = merged
			return docs, true, nil
		}
		return nil, false, ErrNotFound
	})
}

func (b *KVBackend) Delete(ctx context.Context, kind Kind, id string) error {
	return b.mutate(ctx, kind, func(docs []kvDoc) ([]kvDoc, bool, error) {
		kept := make([]kvDoc, 0, len(docs))
		for _, d := range docs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		return kept, len(kept) != len(docs), nil
	})
}

package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/store"
)

// Collection is the reserved collection holding one schema per collection,
// keyed by collection name.
const Collection = "_schemas"

// Registry keeps schemas inside the store they describe, so schema changes
// are watchable like any other document. The store itself never consults
// it; callers validate with Check before saving.
type Registry struct {
	store *store.DocumentStore
}

func NewRegistry(s *store.DocumentStore) *Registry {
	return &Registry{store: s}
}

// Put stores the schema for collection after checking it is usable.
func (r *Registry) Put(ctx context.Context, collection string, schema jsonv.Value) error {
	if collection == Collection {
		return fmt.Errorf("%w: %s is reserved", store.ErrInvalidArgument, Collection)
	}
	if err := CheckSchema(schema); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidArgument, err)
	}
	_, err := r.store.Save(ctx, Collection, collection, schema)
	return err
}

// Get returns the schema of collection, if any.
func (r *Registry) Get(ctx context.Context, collection string) (jsonv.Value, bool, error) {
	snap, err := r.store.Read(ctx, Collection, collection)
	if errors.Is(err, store.ErrNotFound) {
		return jsonv.Value{}, false, nil
	}
	if err != nil {
		return jsonv.Value{}, false, err
	}
	return snap.Value, true, nil
}

// Delete removes the schema of collection and reports whether it existed.
func (r *Registry) Delete(ctx context.Context, collection string) (bool, error) {
	_, ok, err := r.Get(ctx, collection)
	if err != nil || !ok {
		return false, err
	}
	return true, r.store.Delete(ctx, Collection, collection)
}

// All returns every registered schema keyed by collection.
func (r *Registry) All(ctx context.Context) (map[string]jsonv.Value, error) {
	docs, err := r.store.ReadAll(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]jsonv.Value, len(docs))
	for _, d := range docs {
		out[d.ID] = d.Value
	}
	return out, nil
}

// Check validates doc against the schema of collection. Collections without
// a schema accept anything.
func (r *Registry) Check(ctx context.Context, collection string, doc jsonv.Value) error {
	s, ok, err := r.Get(ctx, collection)
	if err != nil || !ok {
		return err
	}
	return Validate(s, doc)
}

// Package crud is the typed layer over the document store.
//
// A Facade binds one collection to an entity type through a Codec and turns
// every store fault, codec error and codec panic into a Result. Nothing
// below this layer escapes it as an error or a panic.
//
// Mutate and Patch read, transform and write back with no compare-and-swap:
// the last writer wins and concurrent calls on the same id can lose updates.
// Callers that need atomic read-modify-write serialize per id, e.g. with
// keyqueue.Queue.
package crud

import (
	"context"
	"fmt"

	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/store"
)

type Facade[T any] struct {
	store      *store.DocumentStore
	collection string
	codec      Codec[T]
}

func New[T any](s *store.DocumentStore, collection string, codec Codec[T]) *Facade[T] {
	return &Facade[T]{store: s, collection: collection, codec: codec}
}

func (f *Facade[T]) Collection() string {
	return f.collection
}

func (f *Facade[T]) Store() *store.DocumentStore {
	return f.store
}

// protect runs fn and turns a panic into an Unexpected result.
func protect[R any](op, collection, docID string, fn func() Result[R]) (res Result[R]) {
	defer func() {
		if p := recover(); p != nil {
			res = Err[R](newError(Unexpected, op, collection, docID, fmt.Errorf("panic: %v", p)))
		}
	}()
	return fn()
}

func (f *Facade[T]) fail(op, id string, err error) *Error {
	return fromErr(op, f.collection, id, err)
}

func (f *Facade[T]) encode(op, id string, entity T) (jsonv.Value, *Error) {
	v, err := f.codec.Encode(entity)
	if err != nil {
		return jsonv.Value{}, newError(Unexpected, op, f.collection, id, fmt.Errorf("encode: %w", err))
	}
	return v, nil
}

func (f *Facade[T]) decode(op, id string, v jsonv.Value) (T, *Error) {
	entity, err := f.codec.Decode(v)
	if err != nil {
		var zero T
		return zero, newError(Unexpected, op, f.collection, id, fmt.Errorf("decode: %w", err))
	}
	return entity, nil
}

func (f *Facade[T]) read(ctx context.Context, op, id string) Result[T] {
	snap, err := f.store.Read(ctx, f.collection, id)
	if err != nil {
		return Err[T](f.fail(op, id, err))
	}
	entity, e := f.decode(op, id, snap.Value)
	if e != nil {
		return Err[T](e)
	}
	return Ok(entity)
}

func (f *Facade[T]) write(ctx context.Context, op, id string, entity T) Result[T] {
	v, e := f.encode(op, id, entity)
	if e != nil {
		return Err[T](e)
	}
	echo, err := f.store.Save(ctx, f.collection, id, v)
	if err != nil {
		return Err[T](f.fail(op, id, err))
	}
	stored, e := f.decode(op, id, echo.Value)
	if e != nil {
		return Err[T](e)
	}
	return Ok(stored)
}

// Read returns the entity, or NotFound.
func (f *Facade[T]) Read(ctx context.Context, id string) Result[T] {
	return protect("read", f.collection, id, func() Result[T] {
		return f.read(ctx, "read", id)
	})
}

// Write overwrites the entity. The result is decoded from the store's echo,
// so an asymmetric codec shows up here.
func (f *Facade[T]) Write(ctx context.Context, id string, entity T) Result[T] {
	return protect("write", f.collection, id, func() Result[T] {
		return f.write(ctx, "write", id, entity)
	})
}

// Delete removes the entity; deleting an absent id succeeds.
func (f *Facade[T]) Delete(ctx context.Context, id string) Result[struct{}] {
	return protect("delete", f.collection, id, func() Result[struct{}] {
		if err := f.store.Delete(ctx, f.collection, id); err != nil {
			return Err[struct{}](f.fail("delete", id, err))
		}
		return Ok(struct{}{})
	})
}

// Exists maps NotFound to Ok(false).
func (f *Facade[T]) Exists(ctx context.Context, id string) Result[bool] {
	return protect("exists", f.collection, id, func() Result[bool] {
		_, err := f.store.Read(ctx, f.collection, id)
		if err != nil {
			e := f.fail("exists", id, err)
			if e.Kind == NotFound {
				return Ok(false)
			}
			return Err[bool](e)
		}
		return Ok(true)
	})
}

// ReadOrDefault maps NotFound to Ok(makeDefault()). Nothing is written.
func (f *Facade[T]) ReadOrDefault(ctx context.Context, id string, makeDefault func() T) Result[T] {
	return protect("read_or_default", f.collection, id, func() Result[T] {
		res := f.read(ctx, "read_or_default", id)
		if res.Kind() == NotFound {
			return Ok(makeDefault())
		}
		return res
	})
}

// Mutate reads the entity, applies transform and writes the result back.
func (f *Facade[T]) Mutate(ctx context.Context, id string, transform func(T) T) Result[T] {
	return protect("mutate", f.collection, id, func() Result[T] {
		cur := f.read(ctx, "mutate", id)
		old, ok := cur.Value()
		if !ok {
			return cur
		}
		return f.write(ctx, "mutate", id, transform(old))
	})
}

// Patch overlays the top-level fields of partial on the stored object and
// writes the decoded result. Nested objects in partial replace, not merge.
func (f *Facade[T]) Patch(ctx context.Context, id string, partial jsonv.Value) Result[T] {
	return protect("patch", f.collection, id, func() Result[T] {
		snap, err := f.store.Read(ctx, f.collection, id)
		if err != nil {
			return Err[T](f.fail("patch", id, err))
		}
		merged, err := jsonv.Merge(snap.Value, partial)
		if err != nil {
			return Err[T](newError(InvalidArgument, "patch", f.collection, id, err))
		}
		entity, e := f.decode("patch", id, merged)
		if e != nil {
			return Err[T](e)
		}
		return f.write(ctx, "patch", id, entity)
	})
}

// Ensure writes create() when the entity is missing, writes update(current)
// when it exists and update is non-nil, and otherwise returns the current
// entity without writing.
func (f *Facade[T]) Ensure(ctx context.Context, id string, create func() T, update func(T) T) Result[T] {
	return protect("ensure", f.collection, id, func() Result[T] {
		cur := f.read(ctx, "ensure", id)
		if cur.Kind() == NotFound {
			return f.write(ctx, "ensure", id, create())
		}
		old, ok := cur.Value()
		if !ok || update == nil {
			return cur
		}
		return f.write(ctx, "ensure", id, update(old))
	})
}

// Detach drops one registry watcher of id. See store.WatchRegistry.
func (f *Facade[T]) Detach(id string) bool {
	return f.store.Watches().Detach(f.collection, id)
}

// Release clears every registry watcher of id.
func (f *Facade[T]) Release(id string) {
	f.store.Watches().Release(f.collection, id)
}

package crud

import (
	"context"
	"errors"

	"github.com/stevemurr/reactive-docstore/store"
)

var errWatchEnded = errors.New("watch ended")

// Watch attaches a watcher for id in the registry and streams the entity:
// Ok for a present document, Err(NotFound) while it is absent, Err(Unexpected)
// when it does not decode. The channel closes when ctx is done or the store
// is disposed. A failed attach or subscription returns a *Error and leaves
// nothing attached.
//
// Watch never detaches. After cancelling ctx the caller calls Detach.
func (f *Facade[T]) Watch(ctx context.Context, id string) (<-chan Result[T], error) {
	reg := f.store.Watches()
	if _, err := reg.Attach(f.collection, id); err != nil {
		return nil, f.fail("watch", id, err)
	}
	docs, err := f.store.DocumentStream(ctx, f.collection, id)
	if err != nil {
		reg.Detach(f.collection, id)
		return nil, f.fail("watch", id, err)
	}

	out := make(chan Result[T], 1)

	go func() {
		defer close(out)
		for snap := range docs {
			res := f.fromSnapshot(snap)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *Facade[T]) fromSnapshot(snap store.DocSnapshot) (res Result[T]) {
	return protect("watch", f.collection, snap.ID, func() Result[T] {
		if !snap.Exists {
			return Err[T](newError(NotFound, "watch", f.collection, snap.ID, store.ErrNotFound))
		}
		entity, e := f.decode("watch", snap.ID, snap.Value)
		if e != nil {
			return Err[T](e)
		}
		return Ok(entity)
	})
}

// WatchAll streams the whole collection as entries. One undecodable
// document turns that emission into Err(Unexpected).
func (f *Facade[T]) WatchAll(ctx context.Context) (<-chan Result[[]Entry[T]], error) {
	lists, err := f.store.CollectionStream(ctx, f.collection)
	if err != nil {
		return nil, f.fail("watch_all", "", err)
	}

	out := make(chan Result[[]Entry[T]], 1)

	go func() {
		defer close(out)
		for docs := range lists {
			res := protect("watch_all", f.collection, "", func() Result[[]Entry[T]] {
				entries := make([]Entry[T], 0, len(docs))
				for _, d := range docs {
					entity, e := f.decode("watch_all", d.ID, d.Value)
					if e != nil {
						return Err[[]Entry[T]](e)
					}
					entries = append(entries, Entry[T]{ID: d.ID, Value: entity})
				}
				return Ok(entries)
			})
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// WatchUntil waits for the first present entity satisfying predicate, or the
// first error. Absence is not an error here: the wait continues until the
// document appears. The subscription is cancelled on return; the registry
// watcher attached by the subscription is left for the caller to Detach.
func (f *Facade[T]) WatchUntil(ctx context.Context, id string, predicate func(T) bool) Result[T] {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := f.Watch(wctx, id)
	if err != nil {
		return Err[T](f.fail("watch_until", id, err))
	}
	for res := range events {
		if res.Kind() == NotFound {
			continue
		}
		entity, ok := res.Value()
		if !ok {
			return res
		}
		matched := protect("watch_until", f.collection, id, func() Result[bool] {
			return Ok(predicate(entity))
		})
		if !matched.IsOk() {
			return Err[T](matched.Err())
		}
		if m, _ := matched.Value(); m {
			return res
		}
	}

	if err := ctx.Err(); err != nil {
		return Err[T](f.fail("watch_until", id, err))
	}
	if f.store.Disposed() {
		return Err[T](f.fail("watch_until", id, store.ErrDisposed))
	}
	return Err[T](f.fail("watch_until", id, errWatchEnded))
}

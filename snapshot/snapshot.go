// Package snapshot derives per-subscriber views from a collection broadcast.
//
// A collection broadcast carries the whole collection on every mutation.
// Derive turns that feed into the sequence one subscriber cares about:
// seed, project, dedup, copy, emit.
package snapshot

import (
	"context"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/stevemurr/reactive-docstore/jsonv"
)

// Contents is a whole collection at one point in time. Published Contents
// are never mutated.
type Contents map[string]jsonv.Value

// Doc is a snapshot of one document. Exists is false for an absent id.
type Doc struct {
	ID     string
	Value  jsonv.Value
	Exists bool
}

// Source is a latest-value feed, e.g. a broadcast subscription.
type Source[S any] interface {
	Seed() S
	Next(ctx context.Context) (S, error)
}

// Config controls one subscriber's pipeline.
type Config[T any] struct {
	EmitInitial bool
	Dedupe      bool
	Equal       func(a, b T) bool
	// Copy isolates emitted values; nil hands projections over as is.
	Copy func(T) T
	// OnEmit is called after each value is delivered.
	OnEmit func(T)
}

// Derive feeds out until src ends or ctx is done, then closes out and
// returns the reason. The seed projection is the dedup baseline whether or
// not it is emitted.
func Derive[S, T any](ctx context.Context, src Source[S], project func(S) T, cfg Config[T], out chan<- T) error {
	defer close(out)

	last := project(src.Seed())
	if cfg.EmitInitial {
		if err := emit(ctx, out, last, cfg); err != nil {
			return err
		}
	}

	for {
		next, err := src.Next(ctx)
		if err != nil {
			return err
		}
		view := project(next)
		if cfg.Dedupe && cfg.Equal != nil && cfg.Equal(last, view) {
			continue
		}
		last = view
		if err := emit(ctx, out, view, cfg); err != nil {
			return err
		}
	}
}

func emit[T any](ctx context.Context, out chan<- T, v T, cfg Config[T]) error {
	if cfg.Copy != nil {
		v = cfg.Copy(v)
	}
	select {
	case out <- v:
		if cfg.OnEmit != nil {
			cfg.OnEmit(v)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DocumentView projects the document id out of a collection.
func DocumentView(id string) func(Contents) Doc {
	return func(c Contents) Doc {
		v, ok := c[id]
		return Doc{ID: id, Value: v, Exists: ok}
	}
}

// CollectionView lists every document, sorted by id when ordered is set.
func CollectionView(ordered bool) func(Contents) []Doc {
	return func(c Contents) []Doc {
		ids := maps.Keys(c)
		if ordered {
			slices.Sort(ids)
		}
		docs := make([]Doc, len(ids))
		for i, id := range ids {
			docs[i] = Doc{ID: id, Value: c[id], Exists: true}
		}
		return docs
	}
}

func DocEqual(a, b Doc) bool {
	return a.ID == b.ID && a.Exists == b.Exists && jsonv.Equal(a.Value, b.Value)
}

// ListEqual compares positionally; unordered lists may differ spuriously.
func ListEqual(a, b []Doc) bool {
	return slices.EqualFunc(a, b, DocEqual)
}

func CopyDoc(d Doc) Doc {
	d.Value = d.Value.Clone()
	return d
}

func CopyList(docs []Doc) []Doc {
	out := make([]Doc, len(docs))
	for i, d := range docs {
		out[i] = CopyDoc(d)
	}
	return out
}

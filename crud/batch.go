package crud

import "context"

// Entry pairs an id with an entity.
type Entry[T any] struct {
	ID    string
	Value T
}

// The batch operations run one id at a time, in input order, so their
// effects are deterministic. A failure is recorded under its id and the
// batch carries on. A repeated id keeps the result of its last occurrence.

func (f *Facade[T]) ReadMany(ctx context.Context, ids []string) map[string]Result[T] {
	out := make(map[string]Result[T], len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			out[id] = Err[T](f.fail("read_many", id, err))
			continue
		}
		out[id] = f.Read(ctx, id)
	}
	return out
}

func (f *Facade[T]) WriteMany(ctx context.Context, entries []Entry[T]) map[string]Result[T] {
	out := make(map[string]Result[T], len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			out[e.ID] = Err[T](f.fail("write_many", e.ID, err))
			continue
		}
		out[e.ID] = f.Write(ctx, e.ID, e.Value)
	}
	return out
}

func (f *Facade[T]) DeleteMany(ctx context.Context, ids []string) map[string]Result[struct{}] {
	out := make(map[string]Result[struct{}], len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			out[id] = Err[struct{}](f.fail("delete_many", id, err))
			continue
		}
		out[id] = f.Delete(ctx, id)
	}
	return out
}

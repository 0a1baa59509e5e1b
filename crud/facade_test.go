package crud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/crud"
	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/store"
)

type User struct {
	Name string `json:"name"`
	Age  int    `json:"age,omitempty"`
}

// countingCodec counts encodes, i.e. writes that reached the codec.
type countingCodec struct {
	writes int
}

func (c *countingCodec) codec() crud.Codec[User] {
	base := crud.JSONCodec[User]()
	return crud.Codec[User]{
		Encode: func(u User) (jsonv.Value, error) {
			c.writes++
			if u.Name == "bad" {
				return jsonv.Value{}, errors.New("refusing bad user")
			}
			if u.Name == "panic" {
				panic("codec exploded")
			}
			return base.Encode(u)
		},
		Decode: base.Decode,
	}
}

func setup(t *testing.T, opts ...store.Option) (*crud.Facade[User], *countingCodec, *store.DocumentStore) {
	t.Helper()
	s := store.New(opts...)
	t.Cleanup(s.Dispose)
	cc := &countingCodec{}
	return crud.New(s, "users", cc.codec()), cc, s
}

func mustOk[T any](t *testing.T, r crud.Result[T]) T {
	t.Helper()
	v, err := r.Get()
	require.NoError(t, err)
	return v
}

func TestWriteThenRead(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()

	written := mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))
	assert.Equal(t, User{Name: "Alice"}, written)

	got := mustOk(t, users.Read(ctx, "u1"))
	assert.Equal(t, User{Name: "Alice"}, got)
}

func TestRoundTrip(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	for _, u := range []User{{Name: "Alice", Age: 30}, {Name: ""}, {Name: "Zoë", Age: -1}} {
		assert.Equal(t, u, mustOk(t, users.Write(ctx, "rt", u)))
	}
}

func TestReadMissing(t *testing.T) {
	users, _, _ := setup(t)
	res := users.Read(context.Background(), "missing")
	assert.False(t, res.IsOk())
	assert.Equal(t, crud.NotFound, res.Kind())

	e := res.Err()
	assert.Equal(t, "users", e.Context.Collection)
	assert.Equal(t, "missing", e.Context.DocID)
	assert.Equal(t, "read", e.Context.Op)
	assert.ErrorIs(t, e, store.ErrNotFound)
}

func TestExists(t *testing.T) {
	users, _, s := setup(t)
	ctx := context.Background()

	assert.False(t, mustOk(t, users.Exists(ctx, "missing")))
	mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))
	assert.True(t, mustOk(t, users.Exists(ctx, "u1")))

	s.Dispose()
	assert.Equal(t, crud.Disposed, users.Exists(ctx, "u1").Kind())
}

func TestPatchIsShallow(t *testing.T) {
	docs := crud.New(store.New(), "users", crud.ValueCodec())
	ctx := context.Background()
	mustOk(t, docs.Write(ctx, "u1", jsonv.MustFromAny(map[string]any{
		"name":    "Alice",
		"address": map[string]any{"city": "Paris", "zip": "75001"},
	})))

	patched := mustOk(t, docs.Patch(ctx, "u1", jsonv.MustFromAny(map[string]any{
		"age":     30.0,
		"address": map[string]any{"city": "Lyon"},
	})))
	want := jsonv.MustFromAny(map[string]any{
		"name":    "Alice",
		"age":     30.0,
		"address": map[string]any{"city": "Lyon"},
	})
	assert.True(t, jsonv.Equal(want, patched), "got %v", patched)
}

func TestPatchTyped(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))

	got := mustOk(t, users.Patch(ctx, "u1", jsonv.ObjectValue(jsonv.F("age", jsonv.NumberValue(30)))))
	assert.Equal(t, User{Name: "Alice", Age: 30}, got)
	assert.Equal(t, User{Name: "Alice", Age: 30}, mustOk(t, users.Read(ctx, "u1")))
}

func TestPatchErrors(t *testing.T) {
	docs := crud.New(store.New(), "things", crud.ValueCodec())
	ctx := context.Background()

	assert.Equal(t, crud.NotFound, docs.Patch(ctx, "missing", jsonv.ObjectValue()).Kind())

	mustOk(t, docs.Write(ctx, "n", jsonv.NumberValue(1)))
	assert.Equal(t, crud.InvalidArgument, docs.Patch(ctx, "n", jsonv.ObjectValue()).Kind())
}

func TestMutateSequential(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	mustOk(t, users.Write(ctx, "u1", User{Name: "Alice", Age: 30}))

	birthday := func(u User) User { u.Age++; return u }
	mustOk(t, users.Mutate(ctx, "u1", birthday))
	mustOk(t, users.Mutate(ctx, "u1", birthday))

	assert.Equal(t, 32, mustOk(t, users.Read(ctx, "u1")).Age)
}

func TestMutateMissing(t *testing.T) {
	users, cc, _ := setup(t)
	res := users.Mutate(context.Background(), "ghost", func(u User) User { return u })
	assert.Equal(t, crud.NotFound, res.Kind())
	assert.Equal(t, 0, cc.writes)
}

func TestReadOrDefault(t *testing.T) {
	users, cc, _ := setup(t)
	ctx := context.Background()

	got := mustOk(t, users.ReadOrDefault(ctx, "u1", func() User { return User{Name: "Guest"} }))
	assert.Equal(t, "Guest", got.Name)
	assert.Equal(t, 0, cc.writes)
	assert.False(t, mustOk(t, users.Exists(ctx, "u1")))

	mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))
	got = mustOk(t, users.ReadOrDefault(ctx, "u1", func() User { return User{Name: "Guest"} }))
	assert.Equal(t, "Alice", got.Name)
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()

	t.Run("missing creates once", func(t *testing.T) {
		users, cc, _ := setup(t)
		got := mustOk(t, users.Ensure(ctx, "u1", func() User { return User{Name: "New"} }, nil))
		assert.Equal(t, "New", got.Name)
		assert.Equal(t, 1, cc.writes)
	})

	t.Run("existing with updater writes once and never creates", func(t *testing.T) {
		users, cc, _ := setup(t)
		mustOk(t, users.Write(ctx, "u1", User{Name: "Alice", Age: 1}))
		cc.writes = 0

		created := false
		got := mustOk(t, users.Ensure(ctx, "u1",
			func() User { created = true; return User{} },
			func(u User) User { u.Age = 2; return u },
		))
		assert.Equal(t, 2, got.Age)
		assert.Equal(t, 1, cc.writes)
		assert.False(t, created)
	})

	t.Run("existing without updater does not write", func(t *testing.T) {
		users, cc, _ := setup(t)
		mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))
		cc.writes = 0

		got := mustOk(t, users.Ensure(ctx, "u1", func() User { return User{Name: "Other"} }, nil))
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, 0, cc.writes)
	})
}

func TestDeleteIdempotent(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	assert.True(t, users.Delete(ctx, "nobody").IsOk())
	assert.True(t, users.Delete(ctx, "nobody").IsOk())

	mustOk(t, users.Write(ctx, "u1", User{Name: "Alice"}))
	assert.True(t, users.Delete(ctx, "u1").IsOk())
	assert.Equal(t, crud.NotFound, users.Read(ctx, "u1").Kind())
}

func TestFaultsBecomeResults(t *testing.T) {
	users, _, s := setup(t, store.WithThrowOnSave(true), store.WithThrowOnDelete(true))
	ctx := context.Background()

	res := users.Write(ctx, "u1", User{Name: "Alice"})
	assert.Equal(t, crud.Unexpected, res.Kind())
	assert.Equal(t, "write", res.Err().Context.Op)
	assert.Equal(t, crud.Unexpected, users.Delete(ctx, "u1").Kind())

	assert.Equal(t, crud.InvalidArgument, users.Read(ctx, "").Kind())

	s.SetFaults(false, false)
	assert.Equal(t, crud.Unexpected, users.Write(ctx, "u1", User{Name: "bad"}).Kind())
	assert.Equal(t, crud.Unexpected, users.Write(ctx, "u1", User{Name: "panic"}).Kind())
}

func TestDecodeFailure(t *testing.T) {
	s := store.New()
	ctx := context.Background()
	_, err := s.Save(ctx, "users", "odd", jsonv.StringValue("not an object"))
	require.NoError(t, err)

	users := crud.New(s, "users", crud.JSONCodec[User]())
	res := users.Read(ctx, "odd")
	assert.Equal(t, crud.Unexpected, res.Kind())
	assert.Contains(t, res.Err().Message, "decode")
}

func TestOperationsAfterDispose(t *testing.T) {
	users, _, s := setup(t)
	s.Dispose()
	ctx := context.Background()
	assert.Equal(t, crud.Disposed, users.Read(ctx, "u1").Kind())
	assert.Equal(t, crud.Disposed, users.Write(ctx, "u1", User{}).Kind())
	assert.Equal(t, crud.Disposed, users.Delete(ctx, "u1").Kind())
	assert.Equal(t, crud.Disposed, users.ReadOrDefault(ctx, "u1", func() User { return User{} }).Kind())
}

func TestLatencyCancelled(t *testing.T) {
	users, _, _ := setup(t, store.WithLatency(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := users.Read(ctx, "u1")
	assert.Equal(t, crud.Unexpected, res.Kind())
	assert.ErrorIs(t, res.Err(), context.DeadlineExceeded)
}

package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/schema"
	"github.com/stevemurr/reactive-docstore/store"
)

func TestRegistry(t *testing.T) {
	s := store.New()
	defer s.Dispose()
	reg := schema.NewRegistry(s)
	ctx := context.Background()

	users := jsonv.MustFromAny(map[string]any{"type": "object", "required": []any{"name"}})
	require.NoError(t, reg.Put(ctx, "users", users))

	got, ok, err := reg.Get(ctx, "users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, jsonv.Equal(users, got))

	assert.NoError(t, reg.Check(ctx, "users", jsonv.MustFromAny(map[string]any{"name": "Ada"})))
	assert.ErrorIs(t, reg.Check(ctx, "users", jsonv.ObjectValue()), schema.ErrInvalid)
	assert.NoError(t, reg.Check(ctx, "anything", jsonv.StringValue("goes")))

	all, err := reg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, s.Collections(), schema.Collection)

	existed, err := reg.Delete(ctx, "users")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = reg.Delete(ctx, "users")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestRegistryRejects(t *testing.T) {
	s := store.New()
	defer s.Dispose()
	reg := schema.NewRegistry(s)
	ctx := context.Background()

	err := reg.Put(ctx, "users", jsonv.StringValue("nope"))
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
	assert.ErrorIs(t, reg.Put(ctx, schema.Collection, jsonv.ObjectValue()), store.ErrInvalidArgument)
	assert.ErrorIs(t, reg.Put(ctx, "", jsonv.ObjectValue()), store.ErrInvalidArgument)

	s.Dispose()
	_, _, err = reg.Get(ctx, "users")
	assert.ErrorIs(t, err, store.ErrDisposed)
}

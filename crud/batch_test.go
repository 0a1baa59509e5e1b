package crud_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/crud"
)

func TestWriteManyReportsPartialFailure(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()

	results := users.WriteMany(ctx, []crud.Entry[User]{
		{ID: "a", Value: User{Name: "Alice"}},
		{ID: "b", Value: User{Name: "bad"}},
		{ID: "", Value: User{Name: "Nobody"}},
		{ID: "c", Value: User{Name: "Carol"}},
	})
	require.Len(t, results, 4)
	assert.True(t, results["a"].IsOk())
	assert.Equal(t, crud.Unexpected, results["b"].Kind())
	assert.Equal(t, crud.InvalidArgument, results[""].Kind())
	assert.True(t, results["c"].IsOk(), "batch continues after failures")
}

func TestReadMany(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	users.WriteMany(ctx, []crud.Entry[User]{
		{ID: "a", Value: User{Name: "Alice"}},
		{ID: "b", Value: User{Name: "Bob"}},
	})

	results := users.ReadMany(ctx, []string{"a", "missing", "b"})
	require.Len(t, results, 3)
	assert.Equal(t, "Alice", mustOk(t, results["a"]).Name)
	assert.Equal(t, "Bob", mustOk(t, results["b"]).Name)
	assert.Equal(t, crud.NotFound, results["missing"].Kind())
}

func TestWriteManyAppliesInOrder(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()
	results := users.WriteMany(ctx, []crud.Entry[User]{
		{ID: "a", Value: User{Name: "first"}},
		{ID: "a", Value: User{Name: "second"}},
	})
	assert.Equal(t, "second", mustOk(t, results["a"]).Name)
	assert.Equal(t, "second", mustOk(t, users.Read(ctx, "a")).Name)
}

func TestDeleteMany(t *testing.T) {
	users, _, s := setup(t)
	ctx := context.Background()
	users.WriteMany(ctx, []crud.Entry[User]{{ID: "a", Value: User{Name: "Alice"}}})

	results := users.DeleteMany(ctx, []string{"a", "never"})
	assert.True(t, results["a"].IsOk())
	assert.True(t, results["never"].IsOk())
	assert.False(t, mustOk(t, users.Exists(ctx, "a")))

	s.SetFaults(false, true)
	results = users.DeleteMany(ctx, []string{"x"})
	assert.Equal(t, crud.Unexpected, results["x"].Kind())
}

func TestBatchAfterCancel(t *testing.T) {
	users, cc, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := users.WriteMany(ctx, []crud.Entry[User]{{ID: "a", Value: User{Name: "Alice"}}})
	assert.Equal(t, crud.Unexpected, results["a"].Kind())
	assert.Equal(t, 0, cc.writes)
}

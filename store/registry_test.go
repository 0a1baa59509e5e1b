package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/store"
)

func TestRefCountIdleOnlyAfterLastDetach(t *testing.T) {
	var idle []string
	s := store.New(store.WithOnIdle(func(collection, docID string) {
		idle = append(idle, collection+"/"+docID)
	}))
	reg := s.Watches()

	const n = 3
	for i := 1; i <= n; i++ {
		got, err := reg.Attach("users", "u1")
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, n, reg.Count("users", "u1"))

	for i := 1; i < n; i++ {
		assert.False(t, reg.Detach("users", "u1"), "detach %d", i)
		assert.Empty(t, idle)
	}
	assert.True(t, reg.Detach("users", "u1"))
	assert.Equal(t, 0, reg.Count("users", "u1"))
	assert.Equal(t, []string{"users/u1"}, idle)
}

func TestOverDetachIsHarmless(t *testing.T) {
	s := store.New()
	reg := s.Watches()

	assert.False(t, reg.Detach("nothing", "here"))
	_, _ = reg.Attach("users", "u1")
	assert.True(t, reg.Detach("users", "u1"))
	assert.False(t, reg.Detach("users", "u1"))
	assert.False(t, reg.Detach("users", "u1"))
	assert.Equal(t, 0, reg.Count("users", "u1"))

	n, err := reg.Attach("users", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelease(t *testing.T) {
	s := store.New()
	reg := s.Watches()
	for i := 0; i < 4; i++ {
		_, _ = reg.Attach("users", "u1")
	}
	_, _ = reg.Attach("users", "u2")
	assert.Equal(t, 5, reg.Total())

	reg.Release("users", "u1")
	reg.Release("users", "u1")
	assert.Equal(t, 0, reg.Count("users", "u1"))
	assert.Equal(t, 1, reg.Total())
	assert.False(t, reg.Detach("users", "u1"))
}

func TestCancellingStreamDoesNotDetach(t *testing.T) {
	s := store.New()
	reg := s.Watches()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := reg.Attach("users", "u1")
	require.NoError(t, err)
	ch, err := s.DocumentStream(ctx, "users", "u1")
	require.NoError(t, err)
	recv(t, ch)
	cancel()
	for range ch {
	}

	assert.Equal(t, 1, reg.Count("users", "u1"))
	assert.True(t, reg.Detach("users", "u1"))
}

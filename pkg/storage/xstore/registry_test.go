package xstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

func TestRegistry_Open(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemory())
	t.Cleanup(func() { _ = r.Close(ctx) })

	st, err := r.Open(ctx, "", false)
	require.NoError(t, err)
	assert.NotEmpty(t, st.SessionID())
	assert.False(t, st.Persistent())

	_, err = r.Open(ctx, st.SessionID(), true)
	assert.ErrorIs(t, err, ErrSessionInUse)

	require.NoError(t, st.Close(ctx))
	again, err := r.Open(ctx, st.SessionID(), true)
	require.NoError(t, err)
	assert.True(t, again.Persistent())
	assert.Equal(t, []string{again.SessionID()}, r.OpenSessions())
}

func TestRegistry_InvalidSession(t *testing.T) {
	r := NewRegistry(NewMemory())
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	for _, id := range []string{"-lead", "a/b", "with space", ".dot"} {
		t.Run(id, func(t *testing.T) {
			_, err := r.Open(context.Background(), id, false)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestRegistry_PersistentReopen(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemory())
	t.Cleanup(func() { _ = r.Close(ctx) })

	st, err := r.Open(ctx, "keep", true)
	require.NoError(t, err)
	require.NoError(t, st.Values().SetValue(ctx, "a", xoption.NoIndex, "x", xoption.OwnerUser))
	require.NoError(t, st.Close(ctx))

	st, err = r.Open(ctx, "keep", true)
	require.NoError(t, err)
	v, _, ok, err := st.Values().Value(ctx, "a", xoption.NoIndex)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	require.NoError(t, st.Close(ctx))

	// 以非持久方式打开时丢弃残留数据
	st, err = r.Open(ctx, "keep", false)
	require.NoError(t, err)
	has, err := st.Values().HasValue(ctx, "a", xoption.NoIndex)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemory())
	t.Cleanup(func() { _ = r.Close(ctx) })

	st, err := r.Open(ctx, "s1", true)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Delete(ctx, "s1"), ErrSessionInUse)
	assert.ErrorIs(t, r.Delete(ctx, "missing"), ErrSessionNotFound)

	require.NoError(t, st.Close(ctx))
	require.NoError(t, r.Delete(ctx, "s1"))

	ids, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRegistry_Close(t *testing.T) {
	ctx := context.Background()
	driver := NewMemory()
	r := NewRegistry(driver)

	_, err := r.Open(ctx, "a", false)
	require.NoError(t, err)
	_, err = r.Open(ctx, "b", true)
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))

	_, err = r.Open(ctx, "c", false)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.List(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Delete(ctx, "b"), ErrClosed)
	assert.Empty(t, r.OpenSessions())
}

func TestRegistry_IDGenerators(t *testing.T) {
	ctx := context.Background()

	t.Run("sonyflake", func(t *testing.T) {
		gen, err := SonyflakeGenerator(func() (int, error) { return 1, nil })
		require.NoError(t, err)

		r := NewRegistry(NewMemory(), WithIDGenerator(gen))
		t.Cleanup(func() { _ = r.Close(ctx) })

		first, err := r.Open(ctx, "", false)
		require.NoError(t, err)
		second, err := r.Open(ctx, "", false)
		require.NoError(t, err)
		assert.NotEqual(t, first.SessionID(), second.SessionID())
		assert.NoError(t, ValidSessionID(first.SessionID()))
	})

	t.Run("sonyflake invalid machine", func(t *testing.T) {
		_, err := SonyflakeGenerator(func() (int, error) { return 0, errors.New("no machine id") })
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("generator error", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewRegistry(NewMemory(), WithIDGenerator(func() (string, error) { return "", boom }))
		t.Cleanup(func() { _ = r.Close(ctx) })

		_, err := r.Open(ctx, "", false)
		assert.ErrorIs(t, err, boom)
	})
}

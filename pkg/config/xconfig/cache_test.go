package xconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

func TestCache_ReadBackTypeIndependentOfCache(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewInt("count", "")),
		xoption.Must(xoption.NewFloat("ratio", "")),
		xoption.Must(xoption.NewInt("ports", "", xoption.WithMulti())),
	))

	tests := []struct {
		name  string
		path  string
		value any
		want  any
	}{
		{"float into int", "count", float64(8080), 8080},
		{"int64 into int", "count", int64(5), 5},
		{"int into float", "ratio", 2, float64(2)},
		{"multi elements", "ports", []any{float64(1), int64(2), 3}, []any{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, tt.path, tt.value))

			warm, err := c.Get(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, warm)

			c.ResetCache()
			cold, err := c.Get(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cold)
		})
	}
}

func TestCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))
	now := time.Unix(1_700_000_000, 0)
	c.cache.now = func() time.Time { return now }

	require.NoError(t, c.AddProperty(ctx, xoption.PropExpire))
	c.SetExpiration(time.Second)
	assert.Equal(t, time.Second, c.Expiration())
	require.NoError(t, c.Set(ctx, "name", "b"))

	get := func(t *testing.T) {
		t.Helper()
		v, err := c.Get(ctx, "name")
		require.NoError(t, err)
		assert.Equal(t, "b", v)
	}

	tests := []struct {
		name    string
		advance time.Duration
		hit     bool
	}{
		{"fresh entry", 500 * time.Millisecond, true},
		{"stale entry", 2 * time.Second, false},
		{"refreshed after miss", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			before := c.CacheStats()
			get(t)
			after := c.CacheStats()
			if tt.hit {
				assert.Equal(t, before.ValueHits+1, after.ValueHits)
			} else {
				assert.Equal(t, before.ValueHits, after.ValueHits)
				assert.Greater(t, after.ValueMisses, before.ValueMisses)
			}
		})
	}

	t.Run("no expiry without context property", func(t *testing.T) {
		require.NoError(t, c.PopProperty(ctx, xoption.PropExpire))
		get(t)
		now = now.Add(time.Hour)
		before := c.CacheStats()
		get(t)
		assert.Equal(t, before.ValueHits+1, c.CacheStats().ValueHits)
	})
}

func TestCache_ContextMarkersOnOptionDoNotBlock(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewString("x", "", xoption.WithDefault("v"),
			xoption.WithProperties(xoption.PropExpire, xoption.PropCache))),
	))
	require.NoError(t, c.AddProperty(ctx, xoption.PropExpire))
	require.NoError(t, c.ReadWrite(ctx))

	v, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, c.Set(ctx, "x", "w"))
}

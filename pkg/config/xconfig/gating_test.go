package xconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// 被属性拦截的访问不能读写值存储。
func TestGating_BlockedAccessNeverTouchesValues(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	values := NewMockValueStore(ctrl)

	m := newTestManager(t)
	st := openOverride(t, m, "gated", func(xstore.ValueStore) xstore.ValueStore { return values })
	c, err := m.NewConfig(ctx, newRoot(t,
		xoption.Must(xoption.NewString("off", "", xoption.WithProperties(xoption.PropDisabled))),
		xoption.Must(xoption.NewString("on", "", xoption.WithDefault("v"))),
	), WithStorage(st))
	require.NoError(t, err)
	require.NoError(t, c.ReadWrite(ctx))

	t.Run("get", func(t *testing.T) {
		_, err := c.Get(ctx, "off")
		assert.ErrorIs(t, err, xoption.ErrProperties)
	})

	t.Run("set", func(t *testing.T) {
		assert.ErrorIs(t, c.Set(ctx, "off", "x"), xoption.ErrProperties)
	})

	t.Run("reset", func(t *testing.T) {
		assert.ErrorIs(t, c.Reset(ctx, "off"), xoption.ErrProperties)
	})

	t.Run("owner", func(t *testing.T) {
		_, err := c.Owner(ctx, "off")
		assert.ErrorIs(t, err, xoption.ErrProperties)
	})

	t.Run("accessible option reads once then hits cache", func(t *testing.T) {
		values.EXPECT().
			Value(gomock.Any(), "on", gomock.Any()).
			Return(nil, xoption.Owner(""), false, nil).
			Times(1)
		for range 3 {
			v, err := c.Get(ctx, "on")
			require.NoError(t, err)
			assert.Equal(t, "v", v)
		}
	})
}

func TestGating_StoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	values := NewMockValueStore(ctrl)

	m := newTestManager(t)
	st := openOverride(t, m, "broken", func(xstore.ValueStore) xstore.ValueStore { return values })
	c, err := m.NewConfig(ctx, simpleRoot(t), WithStorage(st))
	require.NoError(t, err)

	values.EXPECT().Value(gomock.Any(), "name", gomock.Any()).Return(nil, xoption.Owner(""), false, errStoreDown)
	_, err = c.Get(ctx, "name")
	assert.ErrorIs(t, err, errStoreDown)
}

package xconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// =============================================================================
// 读写与重置
// =============================================================================

func TestConfig_SetGetReset(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	v, err := c.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	isDefault, err := c.IsDefault(ctx, "name")
	require.NoError(t, err)
	assert.True(t, isDefault)

	require.NoError(t, c.Set(ctx, "name", "b"))
	v, err = c.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	owner, err := c.Owner(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, xoption.OwnerUser, owner)

	require.NoError(t, c.Reset(ctx, "name"))
	v, err = c.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	owner, err = c.Owner(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, xoption.OwnerDefault, owner)
}

func TestConfig_InvalidValue(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	require.NoError(t, c.Set(ctx, "count", 3))
	err := c.Set(ctx, "count", "three")
	var ve *xoption.ValueOptionError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, xoption.ErrValue)
	assert.Equal(t, "integer", ve.Type)

	v, err := c.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestConfig_NetworkRequiresCIDR(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t, xoption.Must(xoption.NewNetwork("net", "", true))))

	err := c.Set(ctx, "net", "192.168.0.0")
	require.ErrorIs(t, err, xoption.ErrValue)
	assert.Contains(t, err.Error(), "must use CIDR notation")

	require.NoError(t, c.Set(ctx, "net", "192.168.0.0/24"))
	v, err := c.Get(ctx, "net")
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.0/24", v)
}

func TestConfig_UnknownOption(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, xoption.ErrUnknownOption)
	assert.ErrorIs(t, c.Set(ctx, "missing", 1), xoption.ErrUnknownOption)
}

func TestConfig_IndexOnNonFollower(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	_, err := c.GetAt(ctx, "name", 0)
	assert.ErrorIs(t, err, xoption.ErrAPI)
}

// =============================================================================
// 属性
// =============================================================================

func TestConfig_FrozenInReadWrite(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewString("f", "", xoption.WithDefault("x"), xoption.WithProperties(xoption.PropFrozen))),
	))

	// 上下文没有 frozen 时可以写入。
	require.NoError(t, c.Set(ctx, "f", "y"))
	require.NoError(t, c.Reset(ctx, "f"))

	require.NoError(t, c.ReadWrite(ctx))
	err := c.Set(ctx, "f", "z")
	var pe *xoption.PropertiesOptionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Write)
	assert.True(t, pe.Has(xoption.PropFrozen))
	assert.Contains(t, err.Error(), "frozen")

	v, err := c.Get(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestConfig_Disabled(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewString("off", "", xoption.WithProperties(xoption.PropDisabled))),
		xoption.Must(xoption.NewString("on", "")),
	))

	t.Run("not in context", func(t *testing.T) {
		_, err := c.Get(ctx, "off")
		require.NoError(t, err)
	})

	require.NoError(t, c.ReadWrite(ctx))

	t.Run("blocked", func(t *testing.T) {
		_, err := c.Get(ctx, "off")
		var pe *xoption.PropertiesOptionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, []string{xoption.PropDisabled}, pe.Properties)
		assert.False(t, pe.Write)
		assert.ErrorIs(t, c.Set(ctx, "off", "x"), xoption.ErrProperties)
	})

	t.Run("permissive", func(t *testing.T) {
		require.NoError(t, c.Option("off").SetPermissives(ctx, xoption.PropDisabled))
		_, err := c.Get(ctx, "off")
		require.NoError(t, err)
		require.NoError(t, c.Option("off").ResetPermissives(ctx))
		_, err = c.Get(ctx, "off")
		assert.ErrorIs(t, err, xoption.ErrProperties)
	})

	t.Run("option property added at runtime", func(t *testing.T) {
		require.NoError(t, c.Option("on").AddProperty(ctx, xoption.PropDisabled))
		_, err := c.Get(ctx, "on")
		assert.ErrorIs(t, err, xoption.ErrProperties)
		require.NoError(t, c.Option("on").ResetProperties(ctx))
		_, err = c.Get(ctx, "on")
		assert.NoError(t, err)
	})
}

func TestConfig_AddForbiddenProperty(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))
	err := c.Option("name").AddProperty(ctx, xoption.PropForceStoreValue)
	assert.ErrorIs(t, err, xoption.ErrConfig)
}

func TestConfig_ReadModes(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	props, err := c.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "validator", "warnings"}, props.Sorted())

	require.NoError(t, c.ReadOnly(ctx))
	props, err = c.Properties(ctx)
	require.NoError(t, err)
	assert.True(t, props.Has(xoption.PropEverythingFrozen))
	assert.True(t, props.Has(xoption.PropMandatory))
	assert.ErrorIs(t, c.Set(ctx, "name", "b"), xoption.ErrProperties)

	require.NoError(t, c.ReadWrite(ctx))
	props, err = c.Properties(ctx)
	require.NoError(t, err)
	assert.False(t, props.Has(xoption.PropEverythingFrozen))
	assert.False(t, props.Has(xoption.PropMandatory))
	assert.True(t, props.Has(xoption.PropHidden))
	require.NoError(t, c.Set(ctx, "name", "b"))

	require.NoError(t, c.ResetProperties(ctx))
	props, err = c.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.DefaultProperties().Sorted(), props.Sorted())
}

func TestConfig_Mandatory(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewString("need", "", xoption.WithProperties(xoption.PropMandatory))),
	))

	// 读写模式不检查必填。
	require.NoError(t, c.ReadWrite(ctx))
	v, err := c.Get(ctx, "need")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.ReadOnly(ctx))
	_, err = c.Get(ctx, "need")
	var pe *xoption.PropertiesOptionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.OnlyMandatory())
}

// =============================================================================
// owner 与信息
// =============================================================================

func TestConfig_ContextOwner(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	owner, err := c.ContextOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, xoption.OwnerUser, owner)

	require.NoError(t, c.SetContextOwner(ctx, "admin"))
	require.NoError(t, c.Set(ctx, "name", "b"))
	owner, err = c.Owner(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, xoption.Owner("admin"), owner)

	for _, bad := range []xoption.Owner{xoption.OwnerDefault, xoption.OwnerForced} {
		t.Run(string(bad), func(t *testing.T) {
			assert.ErrorIs(t, c.SetContextOwner(ctx, bad), xoption.ErrConfig)
			assert.ErrorIs(t, c.SetOwner(ctx, "name", bad), xoption.ErrConfig)
		})
	}

	t.Run("set owner of stored value", func(t *testing.T) {
		require.NoError(t, c.SetOwner(ctx, "name", "ops"))
		owner, err := c.Owner(ctx, "name")
		require.NoError(t, err)
		assert.Equal(t, xoption.Owner("ops"), owner)
	})

	t.Run("set owner without value", func(t *testing.T) {
		assert.ErrorIs(t, c.SetOwner(ctx, "count", "ops"), xoption.ErrConfig)
	})
}

func TestConfig_Information(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, newRoot(t,
		xoption.Must(xoption.NewString("name", "", xoption.WithInformation("help", "the name"))),
	))

	v, err := c.Information(ctx, "site", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	require.NoError(t, c.SetInformation(ctx, "site", "paris"))
	v, err = c.Information(ctx, "site", nil)
	require.NoError(t, err)
	assert.Equal(t, "paris", v)
	keys, err := c.ListInformation(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "site")

	require.NoError(t, c.DelInformation(ctx, "site"))
	assert.ErrorIs(t, c.DelInformation(ctx, "site"), ErrInformationNotFound)

	t.Run("option", func(t *testing.T) {
		ref := c.Option("name")
		v, err := ref.Information(ctx, "help", nil)
		require.NoError(t, err)
		assert.Equal(t, "the name", v)

		require.NoError(t, ref.SetInformation(ctx, "help", "overridden"))
		v, err = ref.Information(ctx, "help", nil)
		require.NoError(t, err)
		assert.Equal(t, "overridden", v)

		keys, err := ref.ListInformation(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"help"}, keys)

		require.NoError(t, ref.DelInformation(ctx, "help"))
		v, err = ref.Information(ctx, "help", nil)
		require.NoError(t, err)
		assert.Equal(t, "the name", v)
	})
}

// =============================================================================
// 导出 / 导入、缓存、关闭
// =============================================================================

func TestConfig_ExportImport(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	desc := simpleRoot(t)
	src, err := m.NewConfig(ctx, desc)
	require.NoError(t, err)
	require.NoError(t, src.Set(ctx, "name", "b"))
	require.NoError(t, src.Set(ctx, "count", 7))
	require.NoError(t, src.ReadWrite(ctx))

	snap, err := src.Exportation(ctx)
	require.NoError(t, err)

	dst, err := m.NewConfig(ctx, desc)
	require.NoError(t, err)
	require.NoError(t, dst.Importation(ctx, snap))

	v, err := dst.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	v, err = dst.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	props, err := dst.Properties(ctx)
	require.NoError(t, err)
	assert.True(t, props.Has(xoption.PropFrozen))

	assert.ErrorIs(t, dst.Importation(ctx, nil), xoption.ErrAPI)
}

func TestConfig_Cache(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t, simpleRoot(t))

	_, err := c.Get(ctx, "name")
	require.NoError(t, err)
	_, err = c.Get(ctx, "name")
	require.NoError(t, err)
	stats := c.CacheStats()
	assert.GreaterOrEqual(t, stats.ValueHits, uint64(1))
	assert.GreaterOrEqual(t, stats.ValueMisses, uint64(1))

	t.Run("write invalidates", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "name", "b"))
		v, err := c.Get(ctx, "name")
		require.NoError(t, err)
		assert.Equal(t, "b", v)
	})

	t.Run("without cache property", func(t *testing.T) {
		require.NoError(t, c.PopProperty(ctx, xoption.PropCache))
		before := c.CacheStats()
		_, err := c.Get(ctx, "name")
		require.NoError(t, err)
		assert.Equal(t, before.ValueHits, c.CacheStats().ValueHits)
	})

	t.Run("returned lists are copies", func(t *testing.T) {
		cc := newTestConfig(t, newRoot(t, xoption.Must(xoption.NewInt("l", "", xoption.WithMulti()))))
		require.NoError(t, cc.Set(ctx, "l", []int{1, 2}))
		v, err := cc.Get(ctx, "l")
		require.NoError(t, err)
		v.([]any)[0] = 9
		v, err = cc.Get(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2}, v)
	})
}

func TestConfig_Close(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	c, err := m.NewConfig(ctx, simpleRoot(t), WithSession("closing"))
	require.NoError(t, err)
	assert.Equal(t, "closing", c.Name())
	assert.Contains(t, m.Registry().OpenSessions(), "closing")

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	_, err = c.Get(ctx, "name")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotContains(t, m.Registry().OpenSessions(), "closing")
	assert.NotContains(t, m.Configs(), c)
}

func TestManager_SessionInUse(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	_, err := m.NewConfig(ctx, simpleRoot(t), WithSession("dup"))
	require.NoError(t, err)
	_, err = m.NewConfig(ctx, simpleRoot(t), WithSession("dup"))
	assert.ErrorIs(t, err, xstore.ErrSessionInUse)
}

func TestManager_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewManager(xstore.NewRegistry(xstore.NewMemory()))
	c, err := m.NewConfig(ctx, simpleRoot(t))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))

	_, err = c.Get(ctx, "name")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.NewConfig(ctx, simpleRoot(t))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.NewConfig(ctx, nil)
	assert.ErrorIs(t, err, xoption.ErrConfig)
}

func TestManager_PersistentSessions(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	desc := simpleRoot(t)

	c, err := m.NewConfig(ctx, desc, WithSession("keep"), WithPersistent())
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "name", "kept"))
	require.NoError(t, c.Close(ctx))

	sessions, err := m.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "keep")

	again, err := m.NewConfig(ctx, desc, WithSession("keep"), WithPersistent())
	require.NoError(t, err)
	v, err := again.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
	require.NoError(t, again.Close(ctx))

	require.NoError(t, m.DeleteSession(ctx, "keep"))
	sessions, err = m.Sessions(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sessions, "keep")
}

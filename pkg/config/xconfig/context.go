package xconfig

import (
	"context"
	"fmt"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// =============================================================================
// 上下文属性
// =============================================================================

// Properties 返回上下文属性。
func (c *Config) Properties(ctx context.Context) (xoption.Properties, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	props, _, err := c.contextState(ctx)
	return props, err
}

// SetProperties 替换上下文属性。
func (c *Config) SetProperties(ctx context.Context, props ...string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.setContextProperties(ctx, xoption.NewProperties(props...))
}

// AddProperty 加入上下文属性。
func (c *Config) AddProperty(ctx context.Context, props ...string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.readMode(ctx, nil, xoption.NewProperties(props...))
}

// PopProperty 删除上下文属性。
func (c *Config) PopProperty(ctx context.Context, props ...string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.readMode(ctx, xoption.NewProperties(props...), nil)
}

// ResetProperties 删除保存的上下文属性，回到默认属性。
func (c *Config) ResetProperties(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.st.Properties().Delete(ctx, "", xoption.NoIndex); err != nil {
		return err
	}
	c.forgetContextState()
	c.resetAllCache()
	return nil
}

// ReadOnly 切换到只读模式。
func (c *Config) ReadOnly(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.logger.Debug(ctx, "read only", c.attrs()...)
	return c.readMode(ctx, c.rules.roRemove, c.rules.roAppend)
}

// ReadWrite 切换到读写模式。读写模式额外把只读模式不拦截的属性（hidden）加入 permissive。
func (c *Config) ReadWrite(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.logger.Debug(ctx, "read write", c.attrs()...)
	old, perms, err := c.contextState(ctx)
	if err != nil {
		return err
	}
	next := old.Minus(c.rules.rwRemove).Union(c.rules.rwAppend)
	if !next.Equal(old) {
		if err := c.st.Properties().Set(ctx, "", xoption.NoIndex, next.Sorted()); err != nil {
			return err
		}
		c.forgetContextState()
	}
	extra := c.rules.rwAppend.Minus(c.rules.roAppend).Minus(specialProperties)
	if err := c.setContextPermissives(ctx, perms.Union(extra)); err != nil {
		return err
	}
	if next.Has(xoption.PropForceStoreValue) && !old.Has(xoption.PropForceStoreValue) {
		return c.buildForceStoreValues(ctx)
	}
	return nil
}

// DefaultProperties 返回没有保存上下文属性时使用的默认属性。
func (c *Config) DefaultProperties() xoption.Properties {
	return c.rules.defaultProps.Clone()
}

// SetDefaultProperties 设置默认属性。
func (c *Config) SetDefaultProperties(props ...string) {
	c.rules.defaultProps = xoption.NewProperties(props...)
	c.forgetContextState()
	c.resetAllCache()
}

// ModeRules 返回切换到 mode 时加入与删除的属性。
func (c *Config) ModeRules(mode Mode) (add, remove xoption.Properties) {
	switch mode {
	case ModeReadOnly:
		return c.rules.roAppend.Clone(), c.rules.roRemove.Clone()
	default:
		return c.rules.rwAppend.Clone(), c.rules.rwRemove.Clone()
	}
}

// SetModeRules 设置切换到 mode 时加入与删除的属性。
func (c *Config) SetModeRules(mode Mode, add, remove []string) {
	switch mode {
	case ModeReadOnly:
		c.rules.roAppend = xoption.NewProperties(add...)
		c.rules.roRemove = xoption.NewProperties(remove...)
	default:
		c.rules.rwAppend = xoption.NewProperties(add...)
		c.rules.rwRemove = xoption.NewProperties(remove...)
	}
}

// =============================================================================
// 上下文 permissive
// =============================================================================

// Permissives 返回上下文 permissive。
func (c *Config) Permissives(ctx context.Context) (xoption.Properties, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	_, perms, err := c.contextState(ctx)
	return perms, err
}

// SetPermissives 替换上下文 permissive。
func (c *Config) SetPermissives(ctx context.Context, perms ...string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.setContextPermissives(ctx, xoption.NewProperties(perms...))
}

// AddPermissive 加入上下文 permissive。
func (c *Config) AddPermissive(ctx context.Context, perms ...string) error {
	cur, err := c.Permissives(ctx)
	if err != nil {
		return err
	}
	cur.Add(perms...)
	return c.setContextPermissives(ctx, cur)
}

// PopPermissive 删除上下文 permissive。
func (c *Config) PopPermissive(ctx context.Context, perms ...string) error {
	cur, err := c.Permissives(ctx)
	if err != nil {
		return err
	}
	cur.Delete(perms...)
	return c.setContextPermissives(ctx, cur)
}

// ResetPermissives 删除全部上下文 permissive。
func (c *Config) ResetPermissives(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.st.Permissives().Delete(ctx, "", xoption.NoIndex); err != nil {
		return err
	}
	c.forgetContextState()
	c.resetAllCache()
	return nil
}

// =============================================================================
// 上下文 owner
// =============================================================================

// ContextOwner 返回写入值时使用的 owner，默认 user。
func (c *Config) ContextOwner(ctx context.Context) (xoption.Owner, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	return c.contextOwner(ctx)
}

// SetContextOwner 设置之后写入值使用的 owner。default 与 forced 不能设置。
func (c *Config) SetContextOwner(ctx context.Context, owner xoption.Owner) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := c.st.Values().SetValue(ctx, "", xoption.NoIndex, nil, owner); err != nil {
		return err
	}
	c.logger.Debug(ctx, "context owner changed", c.attrs(xlog.Owner(owner))...)
	return nil
}

// =============================================================================
// 上下文信息
// =============================================================================

// Information 返回上下文信息，不存在时返回 def。
func (c *Config) Information(ctx context.Context, key string, def any) (any, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	v, ok, err := c.st.Information().Information(ctx, "", key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// SetInformation 保存上下文信息。依赖信息的计算缓存全部失效。
func (c *Config) SetInformation(ctx context.Context, key string, value any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.st.Information().SetInformation(ctx, "", key, value); err != nil {
		return err
	}
	c.resetAllCache()
	return nil
}

// DelInformation 删除上下文信息，不存在时返回错误。
func (c *Config) DelInformation(ctx context.Context, key string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	ok, err := c.st.Information().DelInformation(ctx, "", key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrInformationNotFound, key)
	}
	c.resetAllCache()
	return nil
}

// ListInformation 返回上下文信息的键。
func (c *Config) ListInformation(ctx context.Context) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.st.Information().ListInformation(ctx, "")
}

// optionInformation 读取选项信息：先查存储，再查选项定义时的信息。
func (c *Config) optionInformation(ctx context.Context, n xoption.Node, path, key string) (any, bool, error) {
	v, ok, err := c.st.Information().Information(ctx, path, key)
	if err != nil || ok {
		return v, ok, err
	}
	v, ok = n.Information(key)
	return v, ok, nil
}

package xconfig

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// MixConfig 拥有自己的描述与值，同时持有子配置。
// 子配置的默认值会回落到 MixConfig 中被修改过的值。
type MixConfig struct {
	*Config

	// kids 由 Config.familyMu 保护。
	kids []*Config
	meta *MetaConfig
}

// MetaConfig 所有子配置与自身共享同一个描述的 MixConfig。
type MetaConfig struct {
	*MixConfig
}

// SetValueOption 控制 MixConfig.SetValue 如何处理子配置中已有的值。
type SetValueOption func(*setValueOptions)

type setValueOptions struct {
	forceDefault         bool
	forceDontChangeValue bool
	forceDefaultIfSame   bool
	onlyConfig           bool
}

// ForceDefault 重置所有子配置的值，使其回落到新值。
func ForceDefault() SetValueOption {
	return func(o *setValueOptions) { o.forceDefault = true }
}

// ForceDontChangeValue 把子配置当前看到的值写入子配置，使新值不影响子配置。
func ForceDontChangeValue() SetValueOption {
	return func(o *setValueOptions) { o.forceDontChangeValue = true }
}

// ForceDefaultIfSame 子配置的值与新值相同时重置子配置的值。
func ForceDefaultIfSame() SetValueOption {
	return func(o *setValueOptions) { o.forceDefaultIfSame = true }
}

// OnlyConfig 只写入普通子配置（递归），不写入 MixConfig 自身。
func OnlyConfig() SetValueOption {
	return func(o *setValueOptions) { o.onlyConfig = true }
}

// asMember 返回 c 作为成员时的具体类型。
func asMember(c *Config) Member {
	switch {
	case c.mix == nil:
		return c
	case c.mix.meta != nil:
		return c.mix.meta
	default:
		return c.mix
	}
}

// configOf 返回成员底层的 *Config，GroupConfig 没有。
func configOf(m Member) (*Config, bool) {
	switch t := m.(type) {
	case *Config:
		return t, true
	case *MixConfig:
		return t.Config, true
	case *MetaConfig:
		return t.Config, true
	default:
		return nil, false
	}
}

// =============================================================================
// 子配置
// =============================================================================

func (m *MixConfig) childConfigs() []*Config {
	m.familyMu.Lock()
	defer m.familyMu.Unlock()
	return slices.Clone(m.kids)
}

// detach 移除子配置（子配置关闭时调用）。
func (m *MixConfig) detach(c *Config) {
	m.familyMu.Lock()
	defer m.familyMu.Unlock()
	m.kids = slices.DeleteFunc(m.kids, func(ch *Config) bool { return ch == c })
}

// attach 加入子配置并把自己记为它的父配置。
func (m *MixConfig) attach(c *Config) error {
	if c == m.Config {
		return fmt.Errorf("%w: cannot add a config to itself", xoption.ErrConflict)
	}
	if err := c.checkOpen(); err != nil {
		return err
	}
	if m.meta != nil {
		if c.kind == KindMix {
			return fmt.Errorf("%w: metaconfig's children should be config or metaconfig, not mixconfig", xoption.ErrAPI)
		}
		if c.root != m.root {
			return fmt.Errorf("%w: metaconfig must have the same optiondescription", xoption.ErrConfig)
		}
	}
	m.familyMu.Lock()
	for _, ch := range m.kids {
		if ch.Name() == c.Name() {
			m.familyMu.Unlock()
			return fmt.Errorf("%w: config name must be uniq in groupconfig for %q", xoption.ErrConflict, c.Name())
		}
	}
	m.kids = append(m.kids, c)
	m.familyMu.Unlock()
	c.addParent(m.Config)
	c.resetAllCache()
	return nil
}

// Children 返回子配置。
func (m *MixConfig) Children() []Member {
	kids := m.childConfigs()
	out := make([]Member, 0, len(kids))
	for _, c := range kids {
		out = append(out, asMember(c))
	}
	return out
}

// Lookup 按名字查找子配置，点分名字逐层查找。
func (m *MixConfig) Lookup(name string) (Member, error) {
	return lookupMember(m.Children(), name)
}

// FindGroup 返回 Find 有结果的子配置。
func (m *MixConfig) FindGroup(ctx context.Context, opts ...FindOption) ([]Member, error) {
	return findGroup(ctx, m.Children(), opts)
}

// NewConfig 用自身的描述创建一个子配置。子配置复制上下文属性、permissive 与模式规则。
func (m *MixConfig) NewConfig(ctx context.Context, opts ...Option) (*Config, error) {
	return m.newChild(ctx, KindConfig, opts)
}

// NewMixConfig 创建一个没有子配置的 MixConfig 子配置。
func (m *MixConfig) NewMixConfig(ctx context.Context, opts ...Option) (*MixConfig, error) {
	c, err := m.newChild(ctx, KindMix, opts)
	if err != nil {
		return nil, err
	}
	return c.mix, nil
}

// NewMetaConfig 创建一个没有子配置的 MetaConfig 子配置。
func (m *MixConfig) NewMetaConfig(ctx context.Context, opts ...Option) (*MetaConfig, error) {
	c, err := m.newChild(ctx, KindMeta, opts)
	if err != nil {
		return nil, err
	}
	return c.mix.meta, nil
}

func (m *MixConfig) newChild(ctx context.Context, kind Kind, opts []Option) (*Config, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if id := m.opts.apply(opts).sessionID; id != "" {
		if _, err := m.Lookup(id); err == nil {
			return nil, fmt.Errorf("%w: config name must be uniq in groupconfig for %q", xoption.ErrConflict, id)
		}
	}
	props, perms, err := m.contextState(ctx)
	if err != nil {
		return nil, err
	}
	c, err := m.mgr.newConfig(ctx, m.root, kind, inherit(m.opts, opts))
	if err != nil {
		return nil, err
	}
	c.rules = m.rules.copy()
	err = errors.Join(
		c.setContextProperties(ctx, props),
		c.setContextPermissives(ctx, perms),
	)
	if err == nil {
		err = m.attach(c)
	}
	if err != nil {
		return nil, errors.Join(err, c.Close(ctx))
	}
	m.logger.Debug(ctx, "child config created", m.attrs(xlog.Session(c.Name()), xlog.Component(kind.String()))...)
	return c, nil
}

// AddConfig 加入一个已有的配置作为子配置。GroupConfig 不能加入。
func (m *MixConfig) AddConfig(ctx context.Context, child Member) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	c, ok := configOf(child)
	if !ok {
		return fmt.Errorf("%w: cannot add a groupconfig to a %s", xoption.ErrAPI, m.kind)
	}
	if err := m.attach(c); err != nil {
		return err
	}
	m.logger.Debug(ctx, "child config added", m.attrs(xlog.Session(c.Name()))...)
	return nil
}

// PopConfig 移除名为 name 的子配置并返回它。子配置不再回落到本配置。
func (m *MixConfig) PopConfig(ctx context.Context, name string) (Member, error) {
	m.familyMu.Lock()
	idx := slices.IndexFunc(m.kids, func(c *Config) bool { return c.Name() == name })
	if idx < 0 {
		m.familyMu.Unlock()
		return nil, fmt.Errorf("%w: cannot find the config %q", xoption.ErrConfig, name)
	}
	c := m.kids[idx]
	m.kids = slices.Delete(m.kids, idx, idx+1)
	m.familyMu.Unlock()
	c.removeParent(m.Config)
	c.resetAllCache()
	m.logger.Debug(ctx, "child config removed", m.attrs(xlog.Session(name))...)
	return asMember(c), nil
}

// =============================================================================
// 扇出写入
// =============================================================================

// SetValue 写入自身并按选项处理子配置中的值。全部子配置检查通过后才写入；
// 子配置的检查错误以 *ChildError 合并返回。
func (m *MixConfig) SetValue(ctx context.Context, path string, index int, value any, opts ...SetValueOption) (err error) {
	ctx, span := m.start(ctx, "set_value", path)
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	var o setValueOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := &plan{}
	if err := m.planSetValue(ctx, p, path, index, value, o); err != nil {
		return err
	}
	return commit(ctx, p, m.logger)
}

// ResetValue 重置子配置（递归）与自身的值。onlyChildren 为 true 时自身的值不变。
func (m *MixConfig) ResetValue(ctx context.Context, path string, onlyChildren bool) (err error) {
	ctx, span := m.start(ctx, "reset_value", path)
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	p := &plan{}
	if err := m.planResetValue(ctx, p, path, onlyChildren); err != nil {
		return err
	}
	return commit(ctx, p, m.logger)
}

func (m *MixConfig) start(ctx context.Context, op, path string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, m.opts.observer, xmetrics.SpanOptions{
		Component: "xconfig",
		Operation: m.kind.String() + "." + op,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("path", path), xmetrics.String("config", m.Name())},
	})
}

func (m *MixConfig) planSetValue(ctx context.Context, p *plan, path string, index int, value any, o setValueOptions) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if o.onlyConfig {
		if o.forceDefault || o.forceDefaultIfSame || o.forceDontChangeValue {
			return fmt.Errorf("%w: force_default, force_default_if_same or force_dont_change_value cannot be set with only_config",
				ErrInvalidSetValueOptions)
		}
		return planChildren(ctx, p, m.Children(), path, index, value, true)
	}
	if o.forceDefault && o.forceDontChangeValue {
		return fmt.Errorf("%w: force_default and force_dont_change_value cannot be set together", ErrInvalidSetValueOptions)
	}
	if _, err := m.ref(path, index).bag(ctx, true); err != nil {
		return err
	}
	if o.forceDefault || o.forceDefaultIfSame || o.forceDontChangeValue {
		for _, child := range m.childConfigs() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := planForce(ctx, p, child, path, index, value, o); err != nil {
				if isFatal(err) {
					return err
				}
				p.fail(child.Name(), err)
			}
		}
	}
	return m.Config.planSet(ctx, p, path, index, value)
}

// planForce 按 force 选项处理一个子配置。
func planForce(ctx context.Context, p *plan, child *Config, path string, index int, value any, o setValueOptions) error {
	b, err := child.resetBag(ctx, path, index, true)
	if err != nil {
		return err
	}
	reset := o.forceDefault
	if !reset && o.forceDefaultIfSame {
		has, err := child.st.Values().HasValue(ctx, b.path, b.storeIndex())
		if err != nil {
			return err
		}
		if has {
			current, err := child.getattr(ctx, b)
			if err != nil {
				return err
			}
			reset = xoption.Equal(value, current)
		}
	}
	if reset {
		p.add(child, func(ctx context.Context) error {
			return child.resetPath(ctx, path, index, true)
		})
		return nil
	}
	if !o.forceDontChangeValue {
		return nil
	}
	ob, err := child.ref(path, index).optionBag(ctx, true)
	if err != nil {
		return err
	}
	current, err := child.getattr(ctx, ob)
	if err != nil {
		return err
	}
	if xoption.Equal(value, current) {
		return nil
	}
	return child.planSet(ctx, p, path, index, current)
}

func (m *MixConfig) planResetValue(ctx context.Context, p *plan, path string, onlyChildren bool) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	switch {
	case m.kind == KindMeta:
		if _, err := m.resetBag(ctx, path, xoption.NoIndex, true); err != nil {
			return err
		}
	case !onlyChildren:
		if _, err := m.resetBag(ctx, path, xoption.NoIndex, true); err != nil {
			if !isLookupMiss(err) {
				return err
			}
			onlyChildren = true
		}
	}
	for _, child := range m.childConfigs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if child.mix != nil {
			err = child.mix.planResetValue(ctx, p, path, false)
		} else {
			err = child.planReset(ctx, p, path, xoption.NoIndex, false)
		}
		switch {
		case err == nil, isLookupMiss(err):
		case isFatal(err):
			return err
		default:
			p.fail(child.Name(), err)
		}
	}
	if onlyChildren {
		return nil
	}
	return m.Config.planReset(ctx, p, path, xoption.NoIndex, true)
}

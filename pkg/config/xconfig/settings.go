package xconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// =============================================================================
// 属性规则
// =============================================================================

var (
	// 上下文默认属性。
	defaultContextProperties = []string{xoption.PropCache, xoption.PropValidator, xoption.PropWarnings}

	// 不参与访问拦截的属性，由 validateMandatory / validateFrozen 单独处理。
	specialProperties = xoption.NewProperties(
		xoption.PropFrozen, xoption.PropMandatory, xoption.PropEmpty, xoption.PropForceStoreValue,
	)

	// 只在上下文上生效的开关，出现在选项上时不拦截访问。
	contextMarkers = xoption.NewProperties(
		xoption.PropCache, xoption.PropExpire, xoption.PropValidator, xoption.PropWarnings,
		xoption.PropEverythingFrozen, xoption.PropDemotingErrorWarning,
	)

	// 不能作为 permissive 的属性。
	forbiddenPermissives = xoption.NewProperties(
		xoption.PropForceDefaultOnFreeze, xoption.PropForceMetaconfigOnFreeze, xoption.PropForceStoreValue,
	)

	// 不能通过 AddProperty 加到选项上的属性。
	forbiddenSetProperties = xoption.NewProperties(xoption.PropForceStoreValue)
)

// Mode 上下文的读写模式。
type Mode int

const (
	// ModeReadOnly 只读：冻结并强制必填。
	ModeReadOnly Mode = iota
	// ModeReadWrite 读写：隐藏 hidden 选项，允许空值。
	ModeReadWrite
)

// rules 模式切换时增删的上下文属性，只保存在内存中。
type rules struct {
	defaultProps xoption.Properties
	roAppend     xoption.Properties
	roRemove     xoption.Properties
	rwAppend     xoption.Properties
	rwRemove     xoption.Properties
}

func defaultRules() *rules {
	return &rules{
		defaultProps: xoption.NewProperties(defaultContextProperties...),
		roAppend: xoption.NewProperties(
			xoption.PropFrozen, xoption.PropDisabled, xoption.PropValidator, xoption.PropEverythingFrozen,
			xoption.PropMandatory, xoption.PropEmpty, xoption.PropForceStoreValue,
		),
		roRemove: xoption.NewProperties(xoption.PropPermissive, xoption.PropHidden),
		rwAppend: xoption.NewProperties(
			xoption.PropFrozen, xoption.PropDisabled, xoption.PropValidator, xoption.PropHidden,
			xoption.PropForceStoreValue,
		),
		rwRemove: xoption.NewProperties(
			xoption.PropPermissive, xoption.PropEverythingFrozen, xoption.PropMandatory, xoption.PropEmpty,
		),
	}
}

func (r *rules) copy() *rules {
	return &rules{
		defaultProps: r.defaultProps.Clone(),
		roAppend:     r.roAppend.Clone(),
		roRemove:     r.roRemove.Clone(),
		rwAppend:     r.rwAppend.Clone(),
		rwRemove:     r.rwRemove.Clone(),
	}
}

// =============================================================================
// 上下文属性
// =============================================================================

// configBag 读取上下文属性与 permissive。
func (c *Config) configBag(ctx context.Context) (*configBag, error) {
	props, perms, err := c.contextState(ctx)
	if err != nil {
		return nil, err
	}
	return &configBag{props: props, trueProps: props.Clone(), permissives: perms}, nil
}

func (c *Config) contextState(ctx context.Context) (xoption.Properties, xoption.Properties, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.stateLoaded {
		return c.ctxProps.Clone(), c.ctxPerms.Clone(), nil
	}
	props, ok, err := c.st.Properties().Get(ctx, "", xoption.NoIndex)
	if err != nil {
		return nil, nil, err
	}
	ctxProps := xoption.NewProperties(props...)
	if !ok {
		ctxProps = c.rules.defaultProps.Clone()
	}
	perms, _, err := c.st.Permissives().Get(ctx, "", xoption.NoIndex)
	if err != nil {
		return nil, nil, err
	}
	c.ctxProps = ctxProps
	c.ctxPerms = xoption.NewProperties(perms...)
	c.stateLoaded = true
	return c.ctxProps.Clone(), c.ctxPerms.Clone(), nil
}

func (c *Config) forgetContextState() {
	c.stateMu.Lock()
	c.stateLoaded = false
	c.stateMu.Unlock()
}

// setContextProperties 保存上下文属性。新获得 force_store_value 时写入所有相关选项的当前值。
func (c *Config) setContextProperties(ctx context.Context, props xoption.Properties) error {
	old, _, err := c.contextState(ctx)
	if err != nil {
		return err
	}
	if err := c.st.Properties().Set(ctx, "", xoption.NoIndex, props.Sorted()); err != nil {
		return err
	}
	c.forgetContextState()
	c.resetAllCache()
	c.logger.Debug(ctx, "context properties changed", c.attrs(xlog.Properties(props.Sorted()))...)
	if props.Has(xoption.PropForceStoreValue) && !old.Has(xoption.PropForceStoreValue) {
		return c.buildForceStoreValues(ctx)
	}
	return nil
}

func (c *Config) setContextPermissives(ctx context.Context, perms xoption.Properties) error {
	if bad := perms.Intersect(forbiddenPermissives); len(bad) > 0 {
		return fmt.Errorf("%w: cannot add those permissives: %s", xoption.ErrConfig, strings.Join(bad.Sorted(), " "))
	}
	if err := c.st.Permissives().Set(ctx, "", xoption.NoIndex, perms.Sorted()); err != nil {
		return err
	}
	c.forgetContextState()
	c.resetAllCache()
	return nil
}

// readMode 从上下文属性中删除 remove、加入 append，有变化时才保存。
func (c *Config) readMode(ctx context.Context, remove, add xoption.Properties) error {
	props, _, err := c.contextState(ctx)
	if err != nil {
		return err
	}
	next := props.Minus(remove).Union(add)
	if next.Equal(props) {
		return nil
	}
	return c.setContextProperties(ctx, next)
}

// =============================================================================
// 选项属性
// =============================================================================

// getProperties 计算 b 的有效属性并写入 b。
//
// 保存的属性（没有时取静态属性）加上计算属性，再减去选项级 permissive。
// applyCalc 为 false 时跳过计算属性，用于自身取值时避免递归。
func (c *Config) getProperties(ctx context.Context, b *bag, applyCalc bool) error {
	useCache := applyCalc && !b.cb.unrestraint
	if useCache {
		if props, help, ok := c.cache.getProps(b.path, b.index, b.cb.props); ok {
			b.props, b.help, b.hasProps = props, help, true
			return nil
		}
	}
	props, err := c.storedProperties(ctx, b.node, b.path, xoption.NoIndex)
	if err != nil {
		return err
	}
	if b.index != xoption.NoIndex {
		indexed, err := c.storedProperties(ctx, b.node, b.path, b.index)
		if err != nil {
			return err
		}
		props = props.Union(indexed)
	}
	var help map[string]string
	if applyCalc {
		for _, calc := range b.node.CalcProperties() {
			v, err := c.execute(ctx, calc, b, execOptions{leadershipMustHaveIndex: true})
			if err != nil {
				return err
			}
			if v == nil || v == "" {
				continue
			}
			prop, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: invalid property type %T for %q with %q function",
					xoption.ErrConfig, v, b.display(), calc.Name)
			}
			if b.isLeader() && !xoption.LeaderAllowed(prop) {
				return fmt.Errorf("%w: leader cannot have %q property", xoption.ErrLeadership, prop)
			}
			props.Add(prop)
			if calc.Help != "" {
				if help == nil {
					help = make(map[string]string)
				}
				help[prop] = calc.Help
			}
		}
	}
	perms, err := c.optionPermissives(ctx, b.path, b.index)
	if err != nil {
		return err
	}
	props = props.Minus(perms)
	b.props, b.help, b.hasProps = props, help, true
	if useCache {
		c.cache.setProps(b.path, b.index, props, help, b.cb.props)
	}
	return nil
}

// ensureProperties 属性尚未计算时计算。
func (c *Config) ensureProperties(ctx context.Context, b *bag) error {
	if b.hasProps {
		return nil
	}
	return c.getProperties(ctx, b, true)
}

func (c *Config) storedProperties(ctx context.Context, n xoption.Node, path string, index int) (xoption.Properties, error) {
	props, ok, err := c.st.Properties().Get(ctx, path, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return n.Properties(), nil
	}
	return xoption.NewProperties(props...), nil
}

func (c *Config) optionPermissives(ctx context.Context, path string, index int) (xoption.Properties, error) {
	perms, _, err := c.st.Permissives().Get(ctx, path, xoption.NoIndex)
	if err != nil {
		return nil, err
	}
	out := xoption.NewProperties(perms...)
	if index != xoption.NoIndex {
		indexed, _, err := c.st.Permissives().Get(ctx, path, index)
		if err != nil {
			return nil, err
		}
		out.Add(indexed...)
	}
	return out, nil
}

// setOptionProperties 保存选项属性并使其缓存失效。
func (c *Config) setOptionProperties(ctx context.Context, b *bag, props xoption.Properties) error {
	if b.link != nil {
		return fmt.Errorf("%w: can't assign property to the symlinkoption %q", xoption.ErrConfig, b.link.Name())
	}
	if b.isLeader() {
		if (props.Has(xoption.PropForceDefaultOnFreeze) || props.Has(xoption.PropForceMetaconfigOnFreeze)) &&
			!props.Has(xoption.PropFrozen) {
			return fmt.Errorf("%w: a leader (%s) cannot have \"force_default_on_freeze\" or \"force_metaconfig_on_freeze\" property without \"frozen\"",
				xoption.ErrConfig, b.display())
		}
		for _, p := range props.Sorted() {
			if !xoption.LeaderAllowed(p) {
				return fmt.Errorf("%w: leader cannot have %q property", xoption.ErrLeadership, p)
			}
		}
	}
	if err := c.st.Properties().Set(ctx, b.path, b.index, props.Sorted()); err != nil {
		return err
	}
	c.resetOptionCache(ctx, b)
	return nil
}

func (c *Config) setOptionPermissives(ctx context.Context, b *bag, perms xoption.Properties) error {
	if bad := perms.Intersect(forbiddenPermissives); len(bad) > 0 {
		return fmt.Errorf("%w: cannot add those permissives: %s", xoption.ErrConfig, strings.Join(bad.Sorted(), " "))
	}
	if b.link != nil {
		return fmt.Errorf("%w: can't assign permissive to the symlinkoption %q", xoption.ErrConfig, b.link.Name())
	}
	if err := c.st.Permissives().Set(ctx, b.path, b.index, perms.Sorted()); err != nil {
		return err
	}
	c.resetOptionCache(ctx, b)
	return nil
}

// =============================================================================
// 检查
// =============================================================================

// calcRaises 返回选项属性中会拦截访问的部分。
func calcRaises(ctxProps, ctxPerms, optProps xoption.Properties) xoption.Properties {
	raises := ctxProps.Minus(specialProperties).Minus(contextMarkers)
	if raises.Has(xoption.PropPermissive) {
		raises = raises.Minus(ctxPerms)
	}
	return optProps.Intersect(raises)
}

// validateProperties 是访问值之前的唯一关口。
func (c *Config) validateProperties(ctx context.Context, b *bag) error {
	cp := b.cb.props
	if len(cp) == 0 || (len(cp) == 1 && cp.Has(xoption.PropCache)) {
		return nil
	}
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	raises := calcRaises(cp, b.cb.permissives, b.props)
	if len(raises) == 0 {
		return nil
	}
	return c.propertiesError(b, raises, false)
}

func (c *Config) propertiesError(b *bag, raises xoption.Properties, write bool) error {
	err := xoption.NewPropertiesError(b.path, b.index, b.display(), raises.Sorted())
	err.Description = b.desc != nil
	err.Write = write
	if len(b.help) > 0 {
		helps := make([]string, len(err.Properties))
		found := false
		for i, p := range err.Properties {
			if h, ok := b.help[p]; ok {
				helps[i] = h
				found = true
			} else {
				helps[i] = fmt.Sprintf("%q", p)
			}
		}
		if found {
			err.Help = helps
		}
	}
	return err
}

// validateMandatory 读取或写入后检查必填与空元素，只在上下文带 mandatory 时生效。
func (c *Config) validateMandatory(ctx context.Context, b *bag, value any) error {
	if !b.cb.has(xoption.PropMandatory) || b.opt == nil {
		return nil
	}
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	permissive := b.cb.has(xoption.PropPermissive) && b.cb.permissives.Has(xoption.PropMandatory)
	if !permissive && b.props.Has(xoption.PropMandatory) && b.opt.IsEmpty(value, b.index, b.opt.IsFollower()) {
		return c.propertiesError(b, xoption.NewProperties(xoption.PropMandatory), false)
	}
	if b.props.Has(xoption.PropEmpty) && b.opt.IsEmpty(value, b.index, true) {
		return c.propertiesError(b, xoption.NewProperties(xoption.PropEmpty), false)
	}
	return nil
}

// validateFrozen 写入前检查冻结。
func (c *Config) validateFrozen(ctx context.Context, b *bag) error {
	cp := b.cb.props
	if len(cp) == 0 {
		return nil
	}
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	frozen := cp.Has(xoption.PropEverythingFrozen) ||
		(cp.Has(xoption.PropFrozen) && b.props.Has(xoption.PropFrozen))
	if !frozen || (cp.Has(xoption.PropPermissive) && b.cb.permissives.Has(xoption.PropFrozen)) {
		return nil
	}
	return c.propertiesError(b, xoption.NewProperties(xoption.PropFrozen), true)
}

// isPropertiesError 判断 err 是否为属性错误。
func isPropertiesError(err error) (*xoption.PropertiesOptionError, bool) {
	var pe *xoption.PropertiesOptionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

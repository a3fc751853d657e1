package xconfig

import (
	"context"
	"fmt"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// ownerNotDefault 只在 onlyDefault 查询中使用，表示存在非默认值。
const ownerNotDefault xoption.Owner = "not_default"

// =============================================================================
// 读取
// =============================================================================

// getCachedValue 读取并校验值，命中缓存时跳过存储。返回值的列表是副本。
func (c *Config) getCachedValue(ctx context.Context, b *bag) (any, error) {
	if err := c.ensureProperties(ctx, b); err != nil {
		return nil, err
	}
	value, validated, cached := c.cache.getValue(b.path, b.index, b.cb.props)
	if !cached || !validated {
		v, err := c.getValue(ctx, b)
		if err != nil {
			return nil, err
		}
		if err := c.validate(ctx, b, v, true); err != nil {
			return nil, err
		}
		value = v
		validator := b.cb.has(xoption.PropValidator) && !b.cb.has(xoption.PropDemotingErrorWarning)
		if !cached || validator {
			c.cache.setValue(b.path, b.index, value, validator, b.cb.props)
		}
	}
	if b.cb.has(xoption.PropWarnings) {
		if err := c.validate(ctx, b, value, false); err != nil {
			return nil, err
		}
	}
	return xoption.Copy(value), nil
}

// getValue 返回保存的值，默认 owner 或冻结回落时返回默认值。
func (c *Config) getValue(ctx context.Context, b *bag) (any, error) {
	value, owner, ok, err := c.st.Values().Value(ctx, b.path, b.storeIndex())
	if err != nil {
		return nil, err
	}
	if !ok {
		owner = xoption.OwnerDefault
	}
	useDefault := owner == xoption.OwnerDefault
	if !useDefault && b.props.Has(xoption.PropFrozen) {
		if b.props.Has(xoption.PropForceDefaultOnFreeze) {
			useDefault = true
		} else if force, err := c.forceToMetaconfig(ctx, b); err != nil {
			return nil, err
		} else {
			useDefault = force
		}
	}
	if useDefault {
		return c.getDefaultValue(ctx, b)
	}
	return b.opt.Coerce(value), nil
}

// forceToMetaconfig 判断 force_metaconfig_on_freeze 是否要求回落到父配置。
// 属性只来自选项定义时，普通配置不回落。
func (c *Config) forceToMetaconfig(ctx context.Context, b *bag) (bool, error) {
	if !b.props.Has(xoption.PropForceMetaconfigOnFreeze) {
		return false, nil
	}
	if b.node.Properties().Has(xoption.PropForceMetaconfigOnFreeze) {
		_, stored, err := c.st.Properties().Get(ctx, b.path, xoption.NoIndex)
		if err != nil {
			return false, err
		}
		if !stored {
			return c.kind == KindConfig, nil
		}
	}
	return true, nil
}

// getDefaultValue 依次使用：修改过的父配置值、计算默认值、静态默认值。
func (c *Config) getDefaultValue(ctx context.Context, b *bag) (any, error) {
	parent, pb, err := c.modifiedParent(ctx, b)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		return parent.getCachedValue(ctx, pb)
	}
	if calc := b.opt.DefaultCalculation(); calc != nil {
		v, ok, err := c.calculateValue(ctx, b, calc)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	if b.opt.IsMulti() && b.index != xoption.NoIndex {
		if list, ok := b.opt.Default().([]any); ok && b.index < len(list) {
			return list[b.index], nil
		}
		if calc := b.opt.DefaultMultiCalculation(); calc != nil {
			return c.execute(ctx, calc, b, execOptions{followerValue: b.isFollower()})
		}
		return b.opt.DefaultMulti(), nil
	}
	return b.opt.Default(), nil
}

// calculateValue 求值计算默认值。下标超出计算结果时 ok 为 false，回落到静态默认值。
func (c *Config) calculateValue(ctx context.Context, b *bag, calc *xoption.Calculation) (any, bool, error) {
	value, err := c.execute(ctx, calc, b, execOptions{followerValue: b.isFollower()})
	if err != nil {
		return nil, false, err
	}
	list, isList := value.([]any)
	if isList && b.index != xoption.NoIndex {
		if b.opt.IsSubMulti() {
			if len(list) == 0 {
				return value, true, nil
			}
			if _, nested := list[0].([]any); !nested {
				return value, true, nil
			}
		}
		if b.index < len(list) {
			return list[b.index], true, nil
		}
		return nil, false, nil
	}
	switch {
	case b.opt.IsSubMulti():
		if isList {
			if len(list) > 0 {
				if _, nested := list[0].([]any); !nested {
					return []any{value}, true, nil
				}
			}
			return value, true, nil
		}
		if b.index != xoption.NoIndex {
			return []any{value}, true, nil
		}
		return []any{[]any{value}}, true, nil
	case b.opt.IsMulti() && !isList && b.index == xoption.NoIndex:
		if value == nil {
			return []any{}, true, nil
		}
		return []any{value}, true, nil
	}
	return value, true, nil
}

// modifiedParent 返回第一个对该选项有非默认值的父配置及其访问。
func (c *Config) modifiedParent(ctx context.Context, b *bag) (*Config, *bag, error) {
	for _, parent := range c.parentConfigs() {
		pb, ok, err := parent.lookup(ctx, b, b.cb.unrestrained())
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		if err := parent.getProperties(ctx, pb, true); err != nil {
			return nil, nil, err
		}
		if b.props.Has(xoption.PropForceMetaconfigOnFreeze) {
			force, err := parent.forceToMetaconfig(ctx, pb)
			if err != nil {
				return nil, nil, err
			}
			if !force {
				pb.props = b.props.Minus(xoption.NewProperties(xoption.PropForceMetaconfigOnFreeze))
			} else {
				pb.props = b.props.Clone()
			}
		}
		owner, err := parent.getOwner(ctx, pb, true, true)
		if err != nil {
			return nil, nil, err
		}
		if owner != xoption.OwnerDefault {
			return parent, pb, nil
		}
	}
	return nil, nil, nil
}

// lookup 在本配置中找到与 b 相同路径的选项。MixConfig 的描述可能不同，找不到时 ok 为 false。
func (c *Config) lookup(ctx context.Context, b *bag, cb *configBag) (*bag, bool, error) {
	if c.root == nil {
		return nil, false, nil
	}
	pb, err := c.resolve(ctx, b.path, cb, false)
	if err != nil {
		if isLookupMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if pb.opt == nil {
		return nil, false, nil
	}
	return pb.at(b.index), true, nil
}

// =============================================================================
// owner
// =============================================================================

// getOwner 返回 owner。validateMeta 为 true 时默认 owner 会继续查询父配置；
// onlyDefault 只区分默认与非默认，不读取具体 owner。
func (c *Config) getOwner(ctx context.Context, b *bag, validateMeta, onlyDefault bool) (xoption.Owner, error) {
	if err := c.validateProperties(ctx, b); err != nil {
		return "", err
	}
	if err := c.ensureProperties(ctx, b); err != nil {
		return "", err
	}
	frozen := b.props.Has(xoption.PropFrozen)
	if frozen && b.props.Has(xoption.PropForceDefaultOnFreeze) {
		return xoption.OwnerDefault, nil
	}
	var owner xoption.Owner
	if onlyDefault {
		has, err := c.st.Values().HasValue(ctx, b.path, b.storeIndex())
		if err != nil {
			return "", err
		}
		owner = xoption.OwnerDefault
		if has {
			owner = ownerNotDefault
		}
	} else {
		o, ok, err := c.st.Values().Owner(ctx, b.path, b.storeIndex())
		if err != nil {
			return "", err
		}
		owner = xoption.OwnerDefault
		if ok {
			owner = o
		}
	}
	if validateMeta && (owner == xoption.OwnerDefault || (frozen && b.props.Has(xoption.PropForceMetaconfigOnFreeze))) {
		parent, pb, err := c.modifiedParent(ctx, b)
		if err != nil {
			return "", err
		}
		if parent != nil {
			return parent.getOwner(ctx, pb, true, onlyDefault)
		}
		if b.props.Has(xoption.PropForceMetaconfigOnFreeze) {
			return xoption.OwnerDefault, nil
		}
	}
	return owner, nil
}

func (c *Config) setOwner(ctx context.Context, b *bag, owner xoption.Owner) error {
	if b.link != nil {
		return fmt.Errorf("%w: can't set owner for the symlinkoption %q", xoption.ErrConfig, b.link.Name())
	}
	if err := checkOwner(owner); err != nil {
		return err
	}
	value, _, ok, err := c.st.Values().Value(ctx, b.path, b.storeIndex())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no value for %s cannot change owner to %s", xoption.ErrConfig, b.path, owner)
	}
	if err := c.validateFrozen(ctx, b); err != nil {
		return err
	}
	if err := c.st.Values().SetValue(ctx, b.path, b.storeIndex(), value, owner); err != nil {
		return err
	}
	c.logger.Debug(ctx, "owner changed", c.attrs(xlog.Path(b.path), xlog.Index(b.index), xlog.Owner(owner))...)
	return nil
}

func checkOwner(owner xoption.Owner) error {
	if owner.Forbidden() {
		return fmt.Errorf("%w: set owner %q is forbidden", xoption.ErrConfig, owner)
	}
	if !xoption.ValidName(string(owner)) {
		return fmt.Errorf("%w: invalid owner %q", xoption.ErrConfig, owner)
	}
	return nil
}

// contextOwner 返回写入值时使用的 owner。
func (c *Config) contextOwner(ctx context.Context) (xoption.Owner, error) {
	owner, ok, err := c.st.Values().Owner(ctx, "", xoption.NoIndex)
	if err != nil {
		return "", err
	}
	if !ok {
		return xoption.OwnerUser, nil
	}
	return owner, nil
}

// =============================================================================
// 写入
// =============================================================================

// setValue 校验并保存值。值先归一为选项的原生类型，缓存与存储读回的类型一致。
func (c *Config) setValue(ctx context.Context, b *bag, value any) error {
	owner, err := c.contextOwner(ctx)
	if err != nil {
		return err
	}
	value = b.opt.Coerce(xoption.Normalize(value))
	if b.cb.has(xoption.PropValidator) {
		if err := c.setValueValidation(ctx, b, value); err != nil {
			return err
		}
	}
	return c.writeValue(ctx, b, value, owner)
}

// writeValue 保存已校验的值并刷新缓存。
func (c *Config) writeValue(ctx context.Context, b *bag, value any, owner xoption.Owner) error {
	value = xoption.Copy(value)
	if err := c.storeValue(ctx, b, value, owner); err != nil {
		return err
	}
	if b.cb.has(xoption.PropValidator) && !b.cb.has(xoption.PropDemotingErrorWarning) {
		c.cache.setValue(b.path, b.index, value, true, b.cb.props)
	}
	if b.cb.has(xoption.PropForceStoreValue) && b.isLeader() {
		return c.followerForceStoreValue(ctx, b, value, xoption.OwnerForced)
	}
	return nil
}

// setValueValidation 写入前的全部检查，不落盘。
func (c *Config) setValueValidation(ctx context.Context, b *bag, value any) error {
	if err := c.validateFrozen(ctx, b); err != nil {
		return err
	}
	if err := c.validateMandatory(ctx, b, value); err != nil {
		return err
	}
	if err := c.validate(ctx, b, value, true); err != nil {
		return err
	}
	if b.cb.has(xoption.PropWarnings) {
		return c.validate(ctx, b, value, false)
	}
	return nil
}

func (c *Config) storeValue(ctx context.Context, b *bag, value any, owner xoption.Owner) error {
	c.resetOptionCache(ctx, b)
	if err := c.st.Values().SetValue(ctx, b.path, b.storeIndex(), value, owner); err != nil {
		c.logger.Error(ctx, "store value failed", c.attrs(xlog.Path(b.path), xlog.Index(b.index), xlog.Err(err))...)
		return err
	}
	c.logger.Debug(ctx, "value stored", c.attrs(xlog.Path(b.path), xlog.Index(b.index), xlog.Owner(owner))...)
	return nil
}

// followerForceStoreValue 为带 force_store_value 的 follower 写入每个下标的当前值。
func (c *Config) followerForceStoreValue(ctx context.Context, leader *bag, value any, owner xoption.Owner) error {
	list, _ := value.([]any)
	if len(list) == 0 {
		return nil
	}
	for _, f := range leader.opt.Leadership().Followers() {
		fb := newBag(f, concretePath(f, leader.suffix), leader.suffix, xoption.NoIndex, leader.cb)
		if err := c.getProperties(ctx, fb, true); err != nil {
			return err
		}
		if !fb.props.Has(xoption.PropForceStoreValue) {
			continue
		}
		for i := range list {
			ib := fb.at(i)
			if err := c.getProperties(ctx, ib, true); err != nil {
				return err
			}
			v, err := c.getValue(ctx, ib)
			if err != nil {
				return err
			}
			if err := c.storeValue(ctx, ib, v, owner); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// 重置
// =============================================================================

// reset 删除保存的值。force_store_value 时改为以 forced 保存默认值。
func (c *Config) reset(ctx context.Context, b *bag) error {
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	has, err := c.st.Values().HasValue(ctx, b.path, xoption.NoIndex)
	if err != nil {
		return err
	}
	if has && b.cb.has(xoption.PropValidator) {
		def, err := c.defaultForReset(ctx, b)
		if err != nil {
			return err
		}
		if err := c.setValueValidation(ctx, b, def); err != nil {
			return err
		}
	}
	if b.isLeader() {
		if err := c.resetFollowers(ctx, b); err != nil {
			return err
		}
	}
	forceStore := b.cb.has(xoption.PropForceStoreValue) && b.props.Has(xoption.PropForceStoreValue)
	var value any
	if has {
		if forceStore {
			value, err = c.getDefaultValue(ctx, b)
			if err != nil {
				return err
			}
			if err := c.storeValue(ctx, b, value, xoption.OwnerForced); err != nil {
				return err
			}
		} else {
			c.resetOptionCache(ctx, b)
			if err := c.st.Values().ResetValue(ctx, b.path); err != nil {
				return err
			}
			c.logger.Debug(ctx, "value reset", c.attrs(xlog.Path(b.path))...)
		}
	}
	if b.cb.has(xoption.PropForceStoreValue) && b.isLeader() {
		if value == nil {
			if value, err = c.getDefaultValue(ctx, b); err != nil {
				return err
			}
		}
		return c.followerForceStoreValue(ctx, b, value, xoption.OwnerForced)
	}
	return nil
}

// defaultForReset 计算重置后的默认值，用于写入前检查。
func (c *Config) defaultForReset(ctx context.Context, b *bag) (any, error) {
	db := b.with(b.cb.withoutValidation())
	db.props, db.help, db.hasProps = b.props, b.help, true
	return c.getDefaultValue(ctx, db)
}

func (c *Config) resetFollowers(ctx context.Context, leader *bag) error {
	cb := leader.cb.withoutValidation()
	for _, f := range leader.opt.Leadership().Followers() {
		fb := newBag(f, concretePath(f, leader.suffix), leader.suffix, xoption.NoIndex, cb)
		if err := c.getProperties(ctx, fb, true); err != nil {
			return err
		}
		if err := c.reset(ctx, fb); err != nil {
			return err
		}
	}
	return nil
}

// resetFollower 删除 follower 在一个下标上的值。
func (c *Config) resetFollower(ctx context.Context, b *bag) error {
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	has, err := c.st.Values().HasValue(ctx, b.path, b.index)
	if err != nil || !has {
		return err
	}
	if b.cb.has(xoption.PropValidator) {
		def, err := c.defaultForReset(ctx, b)
		if err != nil {
			return err
		}
		if err := c.setValueValidation(ctx, b, def); err != nil {
			return err
		}
	}
	if b.cb.has(xoption.PropForceStoreValue) && b.props.Has(xoption.PropForceStoreValue) {
		value, err := c.getDefaultValue(ctx, b)
		if err != nil {
			return err
		}
		return c.storeValue(ctx, b, value, xoption.OwnerForced)
	}
	c.resetOptionCache(ctx, b)
	if err := c.st.Values().ResetValueIndex(ctx, b.path, b.index); err != nil {
		return err
	}
	c.logger.Debug(ctx, "follower reset", c.attrs(xlog.Path(b.path), xlog.Index(b.index))...)
	return nil
}

// resetLeadership 删除 leader 的一个下标，follower 更大的下标整体前移。
// 新的 leader 值先完成校验，校验失败时 follower 不变。
func (c *Config) resetLeadership(ctx context.Context, leader *bag, index int) error {
	current, err := c.getCachedValue(ctx, leader)
	if err != nil {
		return err
	}
	list, _ := current.([]any)
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: index %d is greater than the length %d for option %q",
			xoption.ErrLeadership, index, len(list), leader.display())
	}
	list = append(list[:index:index], list[index+1:]...)
	owner, err := c.contextOwner(ctx)
	if err != nil {
		return err
	}
	if leader.cb.has(xoption.PropValidator) {
		if err := c.setValueValidation(ctx, leader, list); err != nil {
			return err
		}
	}
	for _, f := range leader.opt.Leadership().Followers() {
		fb := newBag(f, concretePath(f, leader.suffix), leader.suffix, xoption.NoIndex, leader.cb)
		c.resetOptionCache(ctx, fb)
		if err := c.st.Values().ReduceIndex(ctx, fb.path, index); err != nil {
			return err
		}
	}
	return c.writeValue(ctx, leader, list, owner)
}

// =============================================================================
// force_store_value
// =============================================================================

// buildForceStoreValues 为定义时带 force_store_value 的选项保存当前值（owner 为 forced），
// 已有值的选项不变。
func (c *Config) buildForceStoreValues(ctx context.Context) error {
	cb, err := c.configBag(ctx)
	if err != nil {
		return err
	}
	if !cb.has(xoption.PropForceStoreValue) {
		return nil
	}
	cb = cb.withoutValidation()
	return c.walkOptions(ctx, cb, func(b *bag) error {
		if b.link != nil || !b.opt.Properties().Has(xoption.PropForceStoreValue) {
			return nil
		}
		b.props, b.hasProps = xoption.Properties{}, true
		if !b.isFollower() {
			return c.forceStoreOne(ctx, b)
		}
		length, err := c.leadershipLength(ctx, b)
		if err != nil {
			return err
		}
		for i := range length {
			ib := b.at(i)
			ib.props, ib.hasProps = xoption.Properties{}, true
			if err := c.forceStoreOne(ctx, ib); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Config) forceStoreOne(ctx context.Context, b *bag) error {
	has, err := c.st.Values().HasValue(ctx, b.path, b.storeIndex())
	if err != nil || has {
		return err
	}
	v, err := c.getValue(ctx, b)
	if err != nil || v == nil {
		return err
	}
	return c.st.Values().SetValue(ctx, b.path, b.storeIndex(), v, xoption.OwnerForced)
}

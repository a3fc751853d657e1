package xconfig

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// =============================================================================
// 路径解析
// =============================================================================

// resolve 把点分路径解析为访问。validate 为 true 时沿途检查每个描述的属性。
// symlink 被替换为目标选项。
func (c *Config) resolve(ctx context.Context, path string, cb *configBag, validate bool) (*bag, error) {
	if c.root == nil {
		return nil, fmt.Errorf("%w: config %q has no option description", xoption.ErrConfig, c.Name())
	}
	if path == "" {
		return newBag(c.root, "", "", xoption.NoIndex, cb), nil
	}
	cur := c.root
	curPath := ""
	suffix := ""
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		node, sfx, err := c.child(ctx, cur, seg, suffix, cb)
		if err != nil {
			return nil, err
		}
		suffix = sfx
		curPath = joinPath(curPath, seg)
		if i == len(segs)-1 {
			b := newBag(node, curPath, suffix, xoption.NoIndex, cb)
			return b, nil
		}
		d, ok := node.(*xoption.Description)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an optiondescription in path %q",
				xoption.ErrUnknownOption, seg, path)
		}
		if validate {
			db := newBag(d, curPath, suffix, xoption.NoIndex, cb)
			if err := c.validateProperties(ctx, db); err != nil {
				return nil, err
			}
		}
		cur = d
	}
	return nil, fmt.Errorf("%w: %q", xoption.ErrUnknownOption, path)
}

// child 在描述 d 中查找名为 seg 的子节点。
// 动态描述实例名是模板名加后缀；动态描述内部的名字都带同一个后缀。
func (c *Config) child(ctx context.Context, d *xoption.Description, seg, suffix string, cb *configBag) (xoption.Node, string, error) {
	if suffix != "" {
		name, ok := strings.CutSuffix(seg, suffix)
		if !ok {
			return nil, "", d.UnknownOption(seg)
		}
		n, err := d.Child(name)
		if err != nil {
			return nil, "", d.UnknownOption(seg)
		}
		return n, suffix, nil
	}
	if n, err := d.Child(seg); err == nil {
		if cd, ok := n.(*xoption.Description); ok && cd.IsDynamic() {
			return nil, "", d.UnknownOption(seg)
		}
		return n, "", nil
	}
	for _, n := range d.Children() {
		cd, ok := n.(*xoption.Description)
		if !ok || !cd.IsDynamic() {
			continue
		}
		sfx, ok := strings.CutPrefix(seg, cd.Name())
		if !ok || sfx == "" {
			continue
		}
		suffixes, err := c.dynSuffixes(ctx, cd, cb)
		if err != nil {
			return nil, "", err
		}
		if slices.Contains(suffixes, sfx) {
			return cd, sfx, nil
		}
	}
	return nil, "", d.UnknownOption(seg)
}

func isLookupMiss(err error) bool {
	return errors.Is(err, xoption.ErrUnknownOption)
}

// =============================================================================
// 读取
// =============================================================================

// getattr 读取选项的值：检查属性、leadership 长度，follower 没有下标时按下标展开。
func (c *Config) getattr(ctx context.Context, b *bag) (any, error) {
	if b.opt == nil {
		return nil, fmt.Errorf("%w: %q is an optiondescription", xoption.ErrAPI, b.path)
	}
	if !b.isFollower() {
		if err := c.validateProperties(ctx, b); err != nil {
			return nil, err
		}
		value, err := c.getCachedValue(ctx, b)
		if err != nil {
			return nil, err
		}
		return value, c.validateMandatory(ctx, b, value)
	}

	// 计算属性依赖下标时，不带下标的检查没有意义，留给每个下标。
	if b.index != xoption.NoIndex || !c.hasIndexedProperties(b) {
		if err := c.validateProperties(ctx, b); err != nil {
			return nil, err
		}
	}
	length, err := c.leadershipLength(ctx, b)
	if err != nil {
		return nil, err
	}
	if err := c.checkFollowerLength(ctx, b, length); err != nil {
		return nil, err
	}
	if b.index != xoption.NoIndex {
		if b.index >= length {
			return nil, fmt.Errorf("%w: index %d is greater than the leadership length %d for option %q",
				xoption.ErrLeadership, b.index, length, b.display())
		}
		value, err := c.getCachedValue(ctx, b)
		if err != nil {
			return nil, err
		}
		return value, c.validateMandatory(ctx, b, value)
	}

	values := make([]any, 0, length)
	for i := range length {
		ib := b.at(i)
		v, err := c.followerAt(ctx, ib)
		if err != nil {
			pe, ok := isPropertiesError(err)
			if !ok || pe.OnlyMandatory() {
				return nil, err
			}
			values = append(values, pe)
			continue
		}
		values = append(values, v)
	}
	return values, c.validateMandatory(ctx, b, values)
}

// followerAt 读取 follower 的一个下标。下标上保存或计算出的属性都要单独检查。
func (c *Config) followerAt(ctx context.Context, b *bag) (any, error) {
	if err := c.getProperties(ctx, b, true); err != nil {
		return nil, err
	}
	if err := c.validateProperties(ctx, b); err != nil {
		return nil, err
	}
	value, err := c.getCachedValue(ctx, b)
	if err != nil {
		return nil, err
	}
	return value, c.validateMandatory(ctx, b, value)
}

// hasIndexedProperties 判断 follower 的计算属性是否依赖下标，依赖时每个下标单独检查属性。
func (c *Config) hasIndexedProperties(b *bag) bool {
	for _, calc := range b.node.CalcProperties() {
		for _, p := range calc.Params.All() {
			switch t := p.(type) {
			case xoption.ParamIndex, *xoption.ParamIndex:
				return true
			default:
				if po, ok := asParamOption(t); ok && sameLeadership(po.Option, b) {
					return true
				}
			}
		}
	}
	return false
}

// leadershipLength 返回 leader 当前的长度。
func (c *Config) leadershipLength(ctx context.Context, b *bag) (int, error) {
	lb, err := c.leaderBag(ctx, b, b.cb.withoutValidation())
	if err != nil {
		return 0, err
	}
	v, err := c.getattr(ctx, lb)
	if err != nil {
		return 0, err
	}
	list, _ := v.([]any)
	return len(list), nil
}

func (c *Config) leaderBag(ctx context.Context, b *bag, cb *configBag) (*bag, error) {
	leader := b.opt.Leadership().Leader()
	lb := newBag(leader, concretePath(leader, b.suffix), b.suffix, xoption.NoIndex, cb)
	if err := c.getProperties(ctx, lb, true); err != nil {
		return nil, err
	}
	return lb, nil
}

func (c *Config) checkFollowerLength(ctx context.Context, b *bag, length int) error {
	n, err := c.st.Values().MaxLength(ctx, b.path)
	if err != nil {
		return err
	}
	if n > length {
		return fmt.Errorf("%w: the follower option %q has greater length (%d) than the leader length (%d)",
			xoption.ErrLeadership, b.display(), n, length)
	}
	return nil
}

// =============================================================================
// 写入
// =============================================================================

// setattr 写入值。leader 不能短于当前 leadership 长度，follower 下标不能越界。
func (c *Config) setattr(ctx context.Context, b *bag, value any) error {
	if b.link != nil {
		return fmt.Errorf("%w: can't set value to a SymLinkOption", xoption.ErrConfig)
	}
	if b.opt == nil {
		return fmt.Errorf("%w: cannot set a value to the optiondescription %q", xoption.ErrAPI, b.path)
	}
	if err := c.validateProperties(ctx, b); err != nil {
		return err
	}
	if err := c.checkLeadershipWrite(ctx, b, value); err != nil {
		return err
	}
	return c.setValue(ctx, b, value)
}

// checkLeadershipWrite 在写入前检查 leadership 长度不变量。
func (c *Config) checkLeadershipWrite(ctx context.Context, b *bag, value any) error {
	switch {
	case b.isLeader():
		list, ok := xoption.Normalize(value).([]any)
		if !ok {
			return nil
		}
		length, err := c.followersLength(ctx, b)
		if err != nil {
			return err
		}
		if len(list) < length {
			return fmt.Errorf("%w: cannot reduce length of the leader %q", xoption.ErrLeadership, b.display())
		}
	case b.isFollower():
		length, err := c.leadershipLength(ctx, b)
		if err != nil {
			return err
		}
		if b.index >= length {
			return fmt.Errorf("%w: index %d is greater than the leadership length %d for option %q",
				xoption.ErrLeadership, b.index, length, b.display())
		}
	}
	return nil
}

// followersLength 返回 follower 已保存的最大长度。
func (c *Config) followersLength(ctx context.Context, leader *bag) (int, error) {
	length := 0
	for _, f := range leader.opt.Leadership().Followers() {
		n, err := c.st.Values().MaxLength(ctx, concretePath(f, leader.suffix))
		if err != nil {
			return 0, err
		}
		length = max(length, n)
	}
	return length, nil
}

// delattr 删除值：带下标时只删除 follower 的该下标。
func (c *Config) delattr(ctx context.Context, b *bag) error {
	if b.link != nil {
		return fmt.Errorf("%w: can't delete a SymLinkOption", xoption.ErrConfig)
	}
	if b.opt == nil {
		return fmt.Errorf("%w: cannot reset the optiondescription %q", xoption.ErrAPI, b.path)
	}
	if err := c.validateProperties(ctx, b); err != nil {
		return err
	}
	if b.index != xoption.NoIndex {
		return c.resetFollower(ctx, b)
	}
	return c.reset(ctx, b)
}

// =============================================================================
// 遍历
// =============================================================================

// instance 树中的一个具体节点（动态描述按后缀展开）。
type instance struct {
	node   xoption.Node
	path   string
	suffix string
}

// children 返回描述 d 的具体子节点。
func (c *Config) children(ctx context.Context, d *xoption.Description, path, suffix string, cb *configBag) ([]instance, error) {
	var out []instance
	for _, n := range d.Children() {
		if cd, ok := n.(*xoption.Description); ok && cd.IsDynamic() {
			suffixes, err := c.dynSuffixes(ctx, cd, cb)
			if err != nil {
				return nil, err
			}
			for _, s := range suffixes {
				out = append(out, instance{node: cd, path: joinPath(path, cd.Name()+s), suffix: s})
			}
			continue
		}
		out = append(out, instance{node: n, path: joinPath(path, n.Name()+suffix), suffix: suffix})
	}
	return out, nil
}

// walker 的 option 访问选项；enter 访问描述，返回 false 时跳过其子树。
type walker struct {
	option func(b *bag) error
	enter  func(b *bag) (bool, error)
}

func (c *Config) walk(ctx context.Context, d *xoption.Description, path, suffix string, cb *configBag, w walker) error {
	kids, err := c.children(ctx, d, path, suffix, cb)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := newBag(k.node, k.path, k.suffix, xoption.NoIndex, cb)
		if cd, ok := k.node.(*xoption.Description); ok {
			if w.enter != nil {
				ok, err := w.enter(b)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			if err := c.walk(ctx, cd, k.path, k.suffix, cb, w); err != nil {
				return err
			}
			continue
		}
		if w.option != nil {
			if err := w.option(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// walkOptions 不做属性检查地遍历全部选项。
func (c *Config) walkOptions(ctx context.Context, cb *configBag, fn func(b *bag) error) error {
	if c.root == nil {
		return nil
	}
	return c.walk(ctx, c.root, "", "", cb, walker{option: fn})
}

package xoption

import (
	"fmt"
	"strings"
)

type descKind int

const (
	kindPlain descKind = iota
	kindLeadership
	kindDynamic
)

// 允许出现在 leader 上的属性。
var leaderAllowedProps = NewProperties(
	PropEmpty, PropUnique, PropForceStoreValue, PropMandatory,
	PropForceDefaultOnFreeze, PropForceMetaconfigOnFreeze, PropFrozen,
)

// LeaderAllowed 判断属性能否设置在 leader 上。
func LeaderAllowed(prop string) bool {
	return leaderAllowedProps.Has(prop)
}

// Description 是有序且名字唯一的子节点集合。
// 同一类型表示普通描述、leadership 与动态描述，由构造函数区分。
type Description struct {
	nodeBase

	kind     descKind
	children []Node
	byName   map[string]Node
	group    GroupType
	suffixes *Calculation
	root     bool
	built    bool
}

// 编译期接口实现检查
var _ Node = (*Description)(nil)

// NewDescription 创建普通选项描述。
func NewDescription(name, doc string, children []Node, opts ...Opt) (*Description, error) {
	return newDescription(name, doc, children, kindPlain, opts)
}

func newDescription(name, doc string, children []Node, kind descKind, opts []Opt) (*Description, error) {
	base, err := newBase(name, doc, applyOpts(opts))
	if err != nil {
		return nil, err
	}
	d := &Description{
		nodeBase: base,
		kind:     kind,
		children: make([]Node, 0, len(children)),
		byName:   make(map[string]Node, len(children)),
		group:    GroupDefault,
	}
	var dynNames []string
	for _, c := range children {
		if c == nil {
			return nil, fmt.Errorf("%w: nil child in optiondescription %q", ErrConfig, name)
		}
		if _, dup := d.byName[c.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate option name: %s", ErrConflict, c.Name())
		}
		if cd, ok := c.(*Description); ok && cd.kind == kindDynamic {
			dynNames = append(dynNames, cd.Name())
		}
		d.byName[c.Name()] = c
		d.children = append(d.children, c)
	}
	for _, dn := range dynNames {
		for _, c := range d.children {
			if c.Name() != dn && strings.HasPrefix(c.Name(), dn) {
				return nil, fmt.Errorf("%w: the option's name %q start as the dynoptiondescription's name %q",
					ErrConflict, c.Name(), dn)
			}
		}
	}
	return d, nil
}

// NewLeadership 创建 leadership：第一个子选项为 leader，其余为 follower。
// 所有子节点必须是多值叶子选项。
func NewLeadership(name, doc string, children []Node, opts ...Opt) (*Description, error) {
	if len(children) < 2 {
		return nil, fmt.Errorf("%w: a leader and a follower are mandatories in leadership %q", ErrConfig, name)
	}
	d, err := newDescription(name, doc, children, kindLeadership, opts)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		switch n := c.(type) {
		case *Description:
			return nil, fmt.Errorf("%w: leadership %q shall not have a subgroup", ErrConfig, name)
		case *SymLink:
			return nil, fmt.Errorf("%w: leadership %q shall not have a symlinkoption", ErrConfig, name)
		case *Option:
			if !n.multi {
				return nil, fmt.Errorf("%w: only multi option allowed in leadership %q but option %q is not a multi",
					ErrConfig, name, n.Name())
			}
			if n.leadership != nil {
				return nil, fmt.Errorf("%w: option %q is already in leadership %q", ErrConfig, n.Name(), n.leadership.Name())
			}
		}
	}
	leader := children[0].(*Option)
	for p := range leader.props {
		if !leaderAllowedProps.Has(p) {
			return nil, fmt.Errorf("%w: leader cannot have %q property", ErrLeadership, p)
		}
	}
	if (leader.props.Has(PropForceDefaultOnFreeze) || leader.props.Has(PropForceMetaconfigOnFreeze)) &&
		!leader.props.Has(PropFrozen) {
		return nil, fmt.Errorf("%w: a leader (%s) cannot have \"force_default_on_freeze\" or \"force_metaconfig_on_freeze\" property without \"frozen\"",
			ErrLeadership, leader.Name())
	}
	for i, c := range children {
		opt := c.(*Option)
		opt.leadership = d
		if i > 0 {
			opt.props.Delete(PropUnique, PropEmpty)
		}
	}
	d.group = GroupLeadership
	return d, nil
}

// NewDynDescription 创建动态描述：配置对 suffixes 求值，为每个后缀生成一个实例。
func NewDynDescription(name, doc string, children []Node, suffixes *Calculation, opts ...Opt) (*Description, error) {
	if suffixes == nil || suffixes.Func == nil {
		return nil, fmt.Errorf("%w: suffixes in dynoptiondescription %q must be a calculation", ErrConfig, name)
	}
	for _, c := range children {
		if _, ok := c.(*SymLink); ok {
			return nil, fmt.Errorf("%w: cannot set symlinkoption in a dynoptiondescription", ErrConfig)
		}
	}
	d, err := newDescription(name, doc, children, kindDynamic, opts)
	if err != nil {
		return nil, err
	}
	d.suffixes = suffixes
	return d, nil
}

// IsDescription 恒为 true。
func (d *Description) IsDescription() bool { return true }

// IsLeadership 是否为 leadership。
func (d *Description) IsLeadership() bool { return d.kind == kindLeadership }

// IsDynamic 是否为动态描述。
func (d *Description) IsDynamic() bool { return d.kind == kindDynamic }

// IsRoot 是否为已构建的根。
func (d *Description) IsRoot() bool { return d.root }

// GroupType 分组类型。
func (d *Description) GroupType() GroupType { return d.group }

// Suffixes 动态描述的后缀计算。
func (d *Description) Suffixes() *Calculation { return d.suffixes }

// Children 返回直接子节点（静态视图，不展开动态描述）。
func (d *Description) Children() []Node {
	out := make([]Node, len(d.children))
	copy(out, d.children)
	return out
}

// Child 按名字查找直接子节点。
func (d *Description) Child(name string) (Node, error) {
	if c, ok := d.byName[name]; ok {
		return c, nil
	}
	return nil, d.unknown(name)
}

func (d *Description) unknown(name string) error {
	if d.root {
		return fmt.Errorf("%w: unknown option %q in root optiondescription", ErrUnknownOption, name)
	}
	return fmt.Errorf("%w: unknown option %q in optiondescription %q", ErrUnknownOption, name, d.DisplayName())
}

// UnknownOption 返回与 Child 相同形式的错误，供配置层在动态后缀不匹配时使用。
func (d *Description) UnknownOption(name string) error {
	return d.unknown(name)
}

// Leader 返回 leadership 的 leader，非 leadership 返回 nil。
func (d *Description) Leader() *Option {
	if d.kind != kindLeadership {
		return nil
	}
	return d.children[0].(*Option)
}

// Followers 返回 leadership 的 follower。
func (d *Description) Followers() []*Option {
	if d.kind != kindLeadership {
		return nil
	}
	out := make([]*Option, 0, len(d.children)-1)
	for _, c := range d.children[1:] {
		out = append(out, c.(*Option))
	}
	return out
}

// Walk 深度优先遍历子树（不含 d 本身），fn 返回错误时停止。
func (d *Description) Walk(fn func(Node) error) error {
	for _, c := range d.children {
		if err := fn(c); err != nil {
			return err
		}
		if cd, ok := c.(*Description); ok {
			if err := cd.Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// 构建
// =============================================================================

// Build 把 d 作为根构建：分配路径、标记只读、登记计算依赖。
//
// 对已构建的根重复调用是幂等的，多个配置可以共享同一棵树；
// 已被其他树收纳的子树不能再作为根。
func (d *Description) Build() error {
	switch d.kind {
	case kindLeadership:
		return fmt.Errorf("%w: cannot set leadership object has root optiondescription", ErrConfig)
	case kindDynamic:
		return fmt.Errorf("%w: cannot set dynoptiondescription object has root optiondescription", ErrConfig)
	}
	if d.built {
		return nil
	}
	if d.readonly {
		return fmt.Errorf("%w: option description seems to be part of an other config", ErrConfig)
	}
	b := &builder{seen: make(map[Node]bool)}
	d.path = ""
	b.seen[d] = true
	b.nodes = append(b.nodes, d)
	for _, c := range d.children {
		if err := b.visit(c, "", nil); err != nil {
			return err
		}
	}
	if err := b.linkDependencies(); err != nil {
		return err
	}
	for _, n := range b.nodes {
		n.base().readonly = true
	}
	d.group = GroupRoot
	d.root = true
	d.built = true
	return nil
}

type builder struct {
	seen  map[Node]bool
	nodes []Node
}

func (b *builder) visit(n Node, prefix string, dyn *Description) error {
	nb := n.base()
	if nb.readonly {
		return fmt.Errorf("%w: option description seems to be part of an other config", ErrConfig)
	}
	if b.seen[n] {
		return fmt.Errorf("%w: option %q is twice in the same tree", ErrConflict, n.Name())
	}
	b.seen[n] = true
	b.nodes = append(b.nodes, n)
	nb.path = prefix + n.Name()
	nb.dyn = dyn

	cd, ok := n.(*Description)
	if !ok {
		return nil
	}
	childDyn := dyn
	if cd.kind == kindDynamic {
		if dyn != nil {
			return fmt.Errorf("%w: cannot set dynoptiondescription %q in a dynoptiondescription", ErrConfig, cd.Name())
		}
		childDyn = cd
	}
	for _, c := range cd.children {
		if err := b.visit(c, nb.path+".", childDyn); err != nil {
			return err
		}
	}
	return nil
}

// linkDependencies 登记计算参数引用的依赖，并确认引用目标都在树内。
func (b *builder) linkDependencies() error {
	for _, n := range b.nodes {
		for _, c := range nodeCalculations(n) {
			for _, p := range c.Params.All() {
				var target Node
				switch tp := p.(type) {
				case ParamOption:
					target = tp.Option
				case *ParamOption:
					target = tp.Option
				case ParamInformation:
					target = tp.Option
				}
				if target == nil {
					continue
				}
				if sl, ok := target.(*SymLink); ok {
					target = sl.target
				}
				if !b.seen[target] {
					return fmt.Errorf("%w: option %q referenced by %q is not in the tree",
						ErrConfig, target.Name(), n.Name())
				}
				target.base().addDependent(n)
			}
		}
		if sl, ok := n.(*SymLink); ok && !b.seen[sl.target] {
			return fmt.Errorf("%w: the symlink %q targets %q which is not in the tree",
				ErrConfig, sl.Name(), sl.target.Name())
		}
	}
	return nil
}

// nodeCalculations 返回节点上所有计算。
func nodeCalculations(n Node) []*Calculation {
	var out []*Calculation
	out = append(out, n.base().calcProps...)
	switch t := n.(type) {
	case *Option:
		out = append(out, t.validators...)
		if t.defCalc != nil {
			out = append(out, t.defCalc)
		}
		if t.defMultiCalc != nil {
			out = append(out, t.defMultiCalc)
		}
		if ch, ok := t.typ.(*Choice); ok && ch.ValuesCalc != nil {
			out = append(out, ch.ValuesCalc)
		}
	case *Description:
		if t.suffixes != nil {
			out = append(out, t.suffixes)
		}
	}
	return out
}

package xconfig

import (
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// configBag 一次调用使用的上下文属性。
//
// props 是当前生效的属性；trueProps 保存去除限制前的属性，
// 计算参数读取其他选项时以它为基础。
type configBag struct {
	props       xoption.Properties
	trueProps   xoption.Properties
	permissives xoption.Properties
	unrestraint bool
}

func (cb *configBag) copy() *configBag {
	return &configBag{
		props:       cb.props.Clone(),
		trueProps:   cb.trueProps.Clone(),
		permissives: cb.permissives.Clone(),
		unrestraint: cb.unrestraint,
	}
}

// unrestrained 只保留 cache：不做属性检查，也不校验值。
func (cb *configBag) unrestrained() *configBag {
	out := cb.copy()
	out.trueProps = cb.props.Clone()
	out.props = xoption.NewProperties(xoption.PropCache)
	out.unrestraint = true
	return out
}

func (cb *configBag) withoutValidation() *configBag {
	out := cb.copy()
	out.props.Delete(xoption.PropValidator)
	return out
}

// forCalculation 计算参数读取其他选项时使用的上下文：不发告警，并启用 permissive。
func (cb *configBag) forCalculation() *configBag {
	out := cb.copy()
	base := cb.props
	if cb.unrestraint {
		base = cb.trueProps
	}
	out.props = base.Clone()
	out.props.Delete(xoption.PropWarnings)
	out.props.Add(xoption.PropPermissive)
	out.trueProps = out.props.Clone()
	out.unrestraint = false
	return out
}

func (cb *configBag) has(prop string) bool {
	return cb.props.Has(prop)
}

// bag 一次选项访问：节点、具体路径、下标以及有效属性。
type bag struct {
	// node 为 symlink 解析后的节点。
	node xoption.Node
	opt  *xoption.Option
	desc *xoption.Description
	// link 通过 symlink 访问时记录原节点，linkPath 为 symlink 自身的路径。
	link     *xoption.SymLink
	linkPath string

	path   string
	suffix string
	index  int

	props    xoption.Properties
	help     map[string]string
	hasProps bool

	cb *configBag
}

func newBag(node xoption.Node, path, suffix string, index int, cb *configBag) *bag {
	b := &bag{path: path, suffix: suffix, index: index, cb: cb}
	b.setNode(node)
	return b
}

func (b *bag) setNode(node xoption.Node) {
	switch n := node.(type) {
	case *xoption.SymLink:
		b.link = n
		b.linkPath = b.path
		b.opt = n.Target()
		b.node = b.opt
		b.path = concretePath(b.opt, b.suffix)
	case *xoption.Option:
		b.opt = n
		b.node = n
	case *xoption.Description:
		b.desc = n
		b.node = n
	}
}

// at 返回同一选项在另一个下标上的访问。
func (b *bag) at(index int) *bag {
	return &bag{node: b.node, opt: b.opt, desc: b.desc, link: b.link, linkPath: b.linkPath,
		path: b.path, suffix: b.suffix, index: index, cb: b.cb}
}

// with 返回使用另一个上下文的同一访问，属性需要重新计算。
func (b *bag) with(cb *configBag) *bag {
	out := b.at(b.index)
	out.cb = cb
	return out
}

// userPath 调用方看到的路径，symlink 为其自身路径。
func (b *bag) userPath() string {
	if b.link != nil {
		return b.linkPath
	}
	return b.path
}

func (b *bag) isFollower() bool {
	return b.opt != nil && b.opt.IsFollower()
}

func (b *bag) isLeader() bool {
	return b.opt != nil && b.opt.IsLeader()
}

// storeIndex follower 按下标保存，其余选项保存整值。
func (b *bag) storeIndex() int {
	if b.isFollower() {
		return b.index
	}
	return xoption.NoIndex
}

func (b *bag) display() string {
	return displayName(b.node, b.suffix)
}

// displayName 动态描述内没有文档的节点使用带后缀的名字。
func displayName(n xoption.Node, suffix string) string {
	if suffix != "" && n.Doc() == "" {
		return n.Name() + suffix
	}
	return n.DisplayName()
}

// concretePath 返回节点在某个动态后缀下的具体路径。
// 动态描述及其内部每一段名字都带后缀。
func concretePath(n xoption.Node, suffix string) string {
	if suffix == "" {
		return n.Path()
	}
	if d, ok := n.(*xoption.Description); ok && d.IsDynamic() {
		return d.Path() + suffix
	}
	dyn := n.DynParent()
	if dyn == nil {
		return n.Path()
	}
	rest := strings.Split(strings.TrimPrefix(n.Path(), dyn.Path()+"."), ".")
	for i := range rest {
		rest[i] += suffix
	}
	return dyn.Path() + suffix + "." + strings.Join(rest, ".")
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

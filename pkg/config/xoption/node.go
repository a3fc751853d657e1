package xoption

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
)

var nameRegexp = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidName 判断名字是否可用作选项名或会话名。
func ValidName(name string) bool {
	return nameRegexp.MatchString(name)
}

// Node 是选项树中的节点：叶子选项、SymLink 或选项描述。
type Node interface {
	// Name 节点名，在父节点内唯一。
	Name() string
	// Doc 文档字符串。
	Doc() string
	// DisplayName 错误信息中使用的名字。
	DisplayName() string
	// Path 构建后的完整点分路径（动态描述内为模板路径）。
	Path() string
	// IsDescription 是否为选项描述。
	IsDescription() bool
	// Properties 静态属性副本。
	Properties() Properties
	// CalcProperties 计算属性。
	CalcProperties() []*Calculation
	// Information 读取节点上的附加信息。
	Information(key string) (any, bool)
	// SetInformation 设置附加信息，树构建后不可再修改。
	SetInformation(key string, value any) error
	// InformationKeys 返回附加信息的键，已排序。
	InformationKeys() []string
	// Dependents 返回计算参数引用了本节点的节点。
	Dependents() []Node
	// DynParent 所在的动态描述模板，没有时为 nil。
	DynParent() *Description

	base() *nodeBase
}

// nodeBase 是所有节点共用的字段。
type nodeBase struct {
	name       string
	doc        string
	path       string
	props      Properties
	calcProps  []*Calculation
	info       map[string]any
	readonly   bool
	dependents []Node
	dyn        *Description
}

func (b *nodeBase) Name() string { return b.name }
func (b *nodeBase) Doc() string  { return b.doc }
func (b *nodeBase) Path() string { return b.path }

func (b *nodeBase) DisplayName() string {
	if b.doc != "" {
		return b.doc
	}
	return b.name
}

func (b *nodeBase) Properties() Properties         { return b.props.Clone() }
func (b *nodeBase) CalcProperties() []*Calculation { return slices.Clone(b.calcProps) }
func (b *nodeBase) Dependents() []Node             { return slices.Clone(b.dependents) }
func (b *nodeBase) DynParent() *Description       { return b.dyn }
func (b *nodeBase) base() *nodeBase                { return b }

func (b *nodeBase) Information(key string) (any, bool) {
	v, ok := b.info[key]
	return v, ok
}

func (b *nodeBase) SetInformation(key string, value any) error {
	if b.readonly {
		return fmt.Errorf("%w: cannot change the information of %q once the tree is built", ErrConfig, b.name)
	}
	if b.info == nil {
		b.info = make(map[string]any)
	}
	b.info[key] = value
	return nil
}

func (b *nodeBase) InformationKeys() []string {
	return slices.Sorted(maps.Keys(b.info))
}

func (b *nodeBase) addDependent(n Node) {
	if !slices.Contains(b.dependents, n) {
		b.dependents = append(b.dependents, n)
	}
}

// ReadOnly 判断节点所在的树是否已构建。
func ReadOnly(n Node) bool {
	return n.base().readonly
}

// =============================================================================
// 构造选项
// =============================================================================

// Opt 是节点构造的可选配置。
type Opt func(*nodeOptions)

type nodeOptions struct {
	def          any
	defSet       bool
	defMulti     any
	defMultiSet  bool
	multi        bool
	submulti     bool
	props        []string
	calcProps    []*Calculation
	validators   []*Calculation
	warningsOnly bool
	info         map[string]any
}

func defaultNodeOptions() *nodeOptions {
	return &nodeOptions{}
}

// WithDefault 设置默认值，可以是 *Calculation。
func WithDefault(v any) Opt {
	return func(o *nodeOptions) {
		o.def = v
		o.defSet = true
	}
}

// WithDefaultMulti 设置多值选项新增下标时的默认元素。
func WithDefaultMulti(v any) Opt {
	return func(o *nodeOptions) {
		o.defMulti = v
		o.defMultiSet = true
	}
}

// WithMulti 声明为多值选项。
func WithMulti() Opt {
	return func(o *nodeOptions) {
		o.multi = true
	}
}

// WithSubMulti 声明为列表的列表。
func WithSubMulti() Opt {
	return func(o *nodeOptions) {
		o.multi = true
		o.submulti = true
	}
}

// WithProperties 添加静态属性。
func WithProperties(props ...string) Opt {
	return func(o *nodeOptions) {
		o.props = append(o.props, props...)
	}
}

// WithCalcProperties 添加计算属性，计算结果为属性名，nil 或 "" 表示不生效。
func WithCalcProperties(calcs ...*Calculation) Opt {
	return func(o *nodeOptions) {
		o.calcProps = append(o.calcProps, calcs...)
	}
}

// WithValidators 添加校验计算。
func WithValidators(calcs ...*Calculation) Opt {
	return func(o *nodeOptions) {
		o.validators = append(o.validators, calcs...)
	}
}

// WithWarningsOnly 二级校验失败只产生告警。
func WithWarningsOnly() Opt {
	return func(o *nodeOptions) {
		o.warningsOnly = true
	}
}

// WithInformation 设置附加信息。
func WithInformation(key string, value any) Opt {
	return func(o *nodeOptions) {
		if o.info == nil {
			o.info = make(map[string]any)
		}
		o.info[key] = value
	}
}

func applyOpts(opts []Opt) *nodeOptions {
	o := defaultNodeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func newBase(name, doc string, o *nodeOptions) (nodeBase, error) {
	if !ValidName(name) {
		return nodeBase{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, c := range o.calcProps {
		if c == nil || c.Func == nil {
			return nodeBase{}, fmt.Errorf("%w: invalid calculated property for %q", ErrConfig, name)
		}
	}
	return nodeBase{
		name:      name,
		doc:       doc,
		props:     NewProperties(o.props...),
		calcProps: o.calcProps,
		info:      o.info,
	}, nil
}

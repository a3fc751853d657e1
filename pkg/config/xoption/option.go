package xoption

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Option 是选项树中的叶子。
//
// 构建后只读：Config 在其上计算值与属性，但不会修改 Option 本身。
type Option struct {
	nodeBase

	typ          Type
	multi        bool
	submulti     bool
	def          any
	defCalc      *Calculation
	defMulti     any
	defMultiCalc *Calculation
	validators   []*Calculation
	warningsOnly bool
	leadership   *Description
}

// 编译期接口实现检查
var _ Node = (*Option)(nil)

// New 创建叶子选项。
//
// 非 submulti 的多值选项自动带有 unique 与 empty 属性，
// 除非显式给出 notunique / notempty；这两个标记本身不会被保留。
func New(name, doc string, t Type, opts ...Opt) (*Option, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: option %q has no type", ErrConfig, name)
	}
	o := applyOpts(opts)
	if o.defMultiSet && !o.multi {
		return nil, fmt.Errorf("%w: default_multi is set whereas multi is False in option: %s", ErrConfig, name)
	}
	base, err := newBase(name, doc, o)
	if err != nil {
		return nil, err
	}
	for _, v := range o.validators {
		if v == nil || v.Func == nil {
			return nil, fmt.Errorf("%w: validators must be a Calculation for %q", ErrConfig, name)
		}
	}
	opt := &Option{
		nodeBase:     base,
		typ:          t,
		multi:        o.multi,
		submulti:     o.submulti,
		validators:   o.validators,
		warningsOnly: o.warningsOnly,
	}
	if opt.multi && !opt.submulti {
		if !opt.props.Has(PropNotUnique) {
			opt.props.Add(PropUnique)
		}
		if !opt.props.Has(PropNotEmpty) {
			opt.props.Add(PropEmpty)
		}
	}
	opt.props.Delete(PropNotUnique, PropNotEmpty)

	if err := opt.setDefaultMulti(o); err != nil {
		return nil, err
	}
	if err := opt.setDefault(o); err != nil {
		return nil, err
	}
	return opt, nil
}

func (o *Option) setDefaultMulti(no *nodeOptions) error {
	if !no.defMultiSet || no.defMulti == nil {
		return nil
	}
	if c, ok := no.defMulti.(*Calculation); ok {
		o.defMultiCalc = c
		return nil
	}
	v := Normalize(no.defMulti)
	check := func(elem any) error {
		if err := o.validateElement(elem); err != nil {
			var ve *ValueOptionError
			if errors.As(err, &ve) && ve.Msg != "" {
				return fmt.Errorf("%w: invalid default_multi value %q for option %q, %s",
					ErrConfig, fmt.Sprint(elem), o.DisplayName(), ve.Msg)
			}
			return fmt.Errorf("%w: invalid default_multi value %q for option %q",
				ErrConfig, fmt.Sprint(elem), o.DisplayName())
		}
		return nil
	}
	if o.submulti {
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%w: invalid default_multi value %q for option %q, must be a list for a submulti",
				ErrConfig, fmt.Sprint(v), o.DisplayName())
		}
		for _, e := range list {
			if err := check(e); err != nil {
				return err
			}
		}
	} else if err := check(v); err != nil {
		return err
	}
	o.defMulti = v
	return nil
}

func (o *Option) setDefault(no *nodeOptions) error {
	if c, ok := no.def.(*Calculation); ok && no.defSet {
		if c == nil || c.Func == nil {
			return fmt.Errorf("%w: invalid calculated default for %q", ErrConfig, o.name)
		}
		if o.defMulti != nil {
			return fmt.Errorf("%w: default value not allowed if option %q is calculated", ErrConfig, o.name)
		}
		o.defCalc = c
		if o.multi {
			o.def = []any{}
		}
		return nil
	}
	def := Normalize(no.def)
	if def == nil && o.multi {
		def = []any{}
	}
	if err := o.Check(def, NoIndex, false, o.staticElementCheck); err != nil {
		return err
	}
	o.def = def
	return nil
}

func (o *Option) staticElementCheck(elem any, _ int) error {
	if _, ok := elem.(*Calculation); ok {
		return nil
	}
	return o.validateElement(elem)
}

// Type 返回选项类型。
func (o *Option) Type() Type { return o.typ }

// TypeName 返回错误信息中使用的类型名。
func (o *Option) TypeName() string { return o.typ.Name() }

// IsDescription 叶子选项恒为 false。
func (o *Option) IsDescription() bool { return false }

// IsMulti 是否为多值选项（submulti 也是多值）。
func (o *Option) IsMulti() bool { return o.multi }

// IsSubMulti 是否为列表的列表。
func (o *Option) IsSubMulti() bool { return o.submulti }

// IsLeader 是否为 leadership 的第一个子选项。
func (o *Option) IsLeader() bool {
	return o.leadership != nil && o.leadership.children[0] == Node(o)
}

// IsFollower 是否为 leadership 的跟随选项。
func (o *Option) IsFollower() bool {
	return o.leadership != nil && o.leadership.children[0] != Node(o)
}

// Leadership 返回所属 leadership，不属于时为 nil。
func (o *Option) Leadership() *Description { return o.leadership }

// WarningsOnly 二级校验是否只产生告警。
func (o *Option) WarningsOnly() bool { return o.warningsOnly }

// Validators 返回校验计算。
func (o *Option) Validators() []*Calculation { return slices.Clone(o.validators) }

// DefaultCalculation 返回计算默认值，没有时为 nil。
func (o *Option) DefaultCalculation() *Calculation { return o.defCalc }

// DefaultMultiCalculation 返回计算的 default_multi，没有时为 nil。
func (o *Option) DefaultMultiCalculation() *Calculation { return o.defMultiCalc }

// Default 返回静态默认值的副本。多值选项返回 []any。
func (o *Option) Default() any {
	return Copy(o.def)
}

// DefaultMulti 返回新增下标时使用的默认元素。submulti 没有设置时为 []any{}。
func (o *Option) DefaultMulti() any {
	if o.defMulti == nil && o.submulti {
		return []any{}
	}
	return Copy(o.defMulti)
}

// DefaultAt 返回多值选项第 index 个默认元素：
// 静态默认值足够长时取 default[index]，否则取 default_multi。
func (o *Option) DefaultAt(index int) any {
	if list, ok := o.def.([]any); ok && index >= 0 && index < len(list) {
		return Copy(list[index])
	}
	return o.DefaultMulti()
}

// =============================================================================
// 校验
// =============================================================================

// Validate 对单个元素做类型与格式检查，不涉及多值结构与配置状态。
func (o *Option) Validate(value any) error {
	if value == nil {
		return nil
	}
	return o.wrap(value, NoIndex, o.validateElement(value))
}

// SecondLevelValidate 执行语义层面的检查（例如保留地址）。
// 类型没有二级检查时返回 nil。
func (o *Option) SecondLevelValidate(value any, warningsOnly bool) error {
	sl, ok := o.typ.(SecondLevelValidator)
	if !ok || value == nil {
		return nil
	}
	return o.wrap(value, NoIndex, sl.SecondLevel(value, warningsOnly))
}

// Coerce 把存储解码出的值归一为选项的原生类型，结构保持不变。
func (o *Option) Coerce(value any) any {
	c, ok := o.typ.(Coercer)
	if !ok {
		return value
	}
	var walk func(v any, depth int) any
	walk = func(v any, depth int) any {
		list, isList := v.([]any)
		if isList && depth > 0 {
			out := make([]any, len(list))
			for i, e := range list {
				out[i] = walk(e, depth-1)
			}
			return out
		}
		if v == nil {
			return nil
		}
		return c.Coerce(v)
	}
	depth := 0
	if o.multi {
		depth = 1
	}
	if o.submulti {
		depth = 2
	}
	return walk(value, depth)
}

func (o *Option) validateElement(value any) error {
	if err := o.typ.Validate(value); err != nil {
		return o.wrap(value, NoIndex, err)
	}
	return nil
}

// wrap 把类型返回的原因包装成 ValueOptionError。
// 已经分类的错误（配置、leadership、属性、值错误）原样返回。
func (o *Option) wrap(value any, index int, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValueOptionError
	if errors.As(err, &ve) {
		if ve.Index == NoIndex && index != NoIndex {
			cp := *ve
			cp.Index = index
			return &cp
		}
		return err
	}
	if errors.Is(err, ErrConfig) || errors.Is(err, ErrLeadership) || errors.Is(err, ErrProperties) {
		return err
	}
	return &ValueOptionError{
		Value:  value,
		Type:   o.typ.Name(),
		Option: o.DisplayName(),
		Msg:    err.Error(),
		Index:  index,
	}
}

// ElementCheck 对多值结构中的单个非 nil 元素做检查，idx 为其所在下标。
type ElementCheck func(elem any, idx int) error

// Check 按多值策略遍历 value：
//   - 单值不能是列表；
//   - 多值必须是列表，index 不为 NoIndex 时 value 是单个元素；
//   - submulti 的每个元素必须是列表；
//   - unique 为 true 时检查非 nil 元素不重复。
//
// 每个非 nil 元素交给 check，失败以 *ValueOptionError 返回。
func (o *Option) Check(value any, index int, unique bool, check ElementCheck) error {
	elem := func(v any, idx int) error {
		if _, isList := v.([]any); isList {
			return o.wrap(v, idx, errors.New("which must not be a list"))
		}
		if v == nil || check == nil {
			return nil
		}
		return o.wrap(v, idx, check(v, idx))
	}
	uniq := func(list []any, idx int) error {
		if !unique {
			return nil
		}
		if dup, ok := firstDuplicate(list); ok {
			return o.wrap(dup, idx, fmt.Errorf("the value %q is not unique", fmt.Sprint(dup)))
		}
		return nil
	}

	switch {
	case !o.multi:
		return elem(value, NoIndex)
	case index != NoIndex:
		if !o.submulti {
			return elem(value, index)
		}
		list, ok := value.([]any)
		if !ok {
			return o.wrap(value, index, errors.New("which must be a list"))
		}
		for _, v := range list {
			if err := elem(v, index); err != nil {
				return err
			}
		}
		return uniq(list, index)
	}

	if _, ok := value.(*Calculation); ok {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return o.wrap(value, NoIndex, errors.New("which must be a list"))
	}
	if o.submulti {
		for i, lv := range list {
			if _, ok := lv.(*Calculation); ok {
				continue
			}
			sub, ok := lv.([]any)
			if !ok {
				return o.wrap(lv, i, fmt.Errorf("which %q must be a list of list", fmt.Sprint(lv)))
			}
			for _, v := range sub {
				if err := elem(v, i); err != nil {
					return err
				}
			}
			if err := uniq(sub, i); err != nil {
				return err
			}
		}
		return nil
	}
	for i, v := range list {
		if err := elem(v, i); err != nil {
			return err
		}
	}
	return uniq(list, NoIndex)
}

// IsEmpty 判断值是否为空。
//
// 多值整体读取时，nil、空列表（allowEmptyList 为 false）或含有 nil / "" 元素都算空；
// 单个元素时 nil、"" 以及 submulti 的空列表算空。
func (o *Option) IsEmpty(value any, index int, allowEmptyList bool) bool {
	if value == nil {
		return true
	}
	if index == NoIndex && o.multi {
		list, ok := value.([]any)
		if !ok {
			return false
		}
		if len(list) == 0 {
			return !allowEmptyList
		}
		for _, e := range list {
			if e == nil || e == "" {
				return true
			}
		}
		return false
	}
	if value == "" {
		return true
	}
	if o.submulti {
		if list, ok := value.([]any); ok && len(list) == 0 {
			return true
		}
	}
	return false
}

func firstDuplicate(list []any) (any, bool) {
	for i, v := range list {
		if v == nil {
			continue
		}
		for _, w := range list[i+1:] {
			if Equal(v, w) {
				return v, true
			}
		}
	}
	return nil, false
}

// =============================================================================
// 值工具
// =============================================================================

// Normalize 把任意切片递归转换为 []any，其他值原样返回。
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []byte, string:
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = Normalize(rv.Index(i).Interface())
	}
	return out
}

// Copy 复制 []any 结构，避免调用方修改缓存中的列表。
func Copy(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(list))
	for i, e := range list {
		out[i] = Copy(e)
	}
	return out
}

// Equal 比较两个值，整数与浮点按数值比较。
func Equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

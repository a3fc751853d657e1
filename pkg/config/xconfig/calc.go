package xconfig

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

type execOptions struct {
	// leadershipMustHaveIndex 没有下标时跳过引用 leadership 选项的参数。
	leadershipMustHaveIndex bool
	// origValue 校验时待检查的值，ParamSelfOption 优先使用它。
	origValue any
	hasOrig   bool
	// allowRaises 校验函数返回的普通错误作为校验失败原因，不转换为 ErrConfig。
	allowRaises bool
	// followerValue 结果作为 follower 的值，不能是列表。
	followerValue bool
}

// errSkipParam 参数因缺少下标被跳过。
var errSkipParam = errors.New("skip param")

// execute 对 calc 求值：先按 Params 求参数，再调用函数。
func (c *Config) execute(ctx context.Context, calc *xoption.Calculation, b *bag, o execOptions) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := make([]any, 0, len(calc.Params.Args))
	for _, p := range calc.Params.Args {
		v, err := c.paramValue(ctx, p, b, o)
		if errors.Is(err, errSkipParam) {
			continue
		}
		if err != nil {
			if pe, ok := isPropertiesError(err); ok {
				if po, isOpt := asParamOption(p); isOpt && !po.RaisePropertyError {
					if po.ToDict {
						args = append(args, xoption.OptionArg{Name: pe.Option, PropertyErr: pe})
					} else {
						args = append(args, nil)
					}
					continue
				}
			}
			return nil, err
		}
		args = append(args, v)
	}
	kwargs := make(map[string]any, len(calc.Params.Kwargs))
	for _, name := range slices.Sorted(maps.Keys(calc.Params.Kwargs)) {
		p := calc.Params.Kwargs[name]
		v, err := c.paramValue(ctx, p, b, o)
		if errors.Is(err, errSkipParam) {
			continue
		}
		if err != nil {
			if pe, ok := isPropertiesError(err); ok {
				if po, isOpt := asParamOption(p); isOpt && !po.RaisePropertyError {
					if po.ToDict {
						kwargs[name] = xoption.OptionArg{Name: pe.Option, PropertyErr: pe}
					}
					continue
				}
			}
			return nil, err
		}
		kwargs[name] = v
	}

	ret, err := calc.Func(ctx, args, kwargs)
	if err != nil {
		return nil, c.calculationError(calc, b, args, kwargs, err, o.allowRaises)
	}
	ret = xoption.Normalize(ret)
	if _, isList := ret.([]any); isList && o.followerValue {
		return nil, fmt.Errorf("%w: the %q function must not return a list (%q) for the follower option %q",
			xoption.ErrLeadership, calc.Name, fmt.Sprint(ret), b.display())
	}
	return ret, nil
}

func (c *Config) calculationError(calc *xoption.Calculation, b *bag, args []any, kwargs map[string]any, err error, allowRaises bool) error {
	if allowRaises || errors.Is(err, xoption.ErrConfig) || errors.Is(err, xoption.ErrLeadership) ||
		errors.Is(err, xoption.ErrProperties) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if len(args) == 0 && len(kwargs) == 0 {
		return fmt.Errorf("%w: unexpected error %q in function %q for option %q",
			xoption.ErrConfig, err.Error(), calc.Name, b.display())
	}
	return fmt.Errorf("%w: unexpected error %q in function %q with arguments %q and %q for option %q",
		xoption.ErrConfig, err.Error(), calc.Name, fmt.Sprint(args), fmt.Sprint(kwargs), b.display())
}

func asParamOption(p xoption.Param) (xoption.ParamOption, bool) {
	switch t := p.(type) {
	case xoption.ParamOption:
		return t, true
	case *xoption.ParamOption:
		return *t, true
	}
	return xoption.ParamOption{}, false
}

// sameLeadership 判断 n 是否与 b 的选项在同一个 leadership 内。
func sameLeadership(n xoption.Node, b *bag) bool {
	o, ok := n.(*xoption.Option)
	if !ok || o.Leadership() == nil || b.opt == nil {
		return false
	}
	return o.Leadership() == b.opt.Leadership()
}

func inLeadership(n xoption.Node) bool {
	o, ok := n.(*xoption.Option)
	return ok && o.Leadership() != nil
}

func (c *Config) paramValue(ctx context.Context, p xoption.Param, b *bag, o execOptions) (any, error) {
	switch t := p.(type) {
	case xoption.ParamValue:
		return t.Value, nil
	case *xoption.ParamValue:
		return t.Value, nil
	case xoption.ParamIndex, *xoption.ParamIndex:
		if b.index == xoption.NoIndex {
			return nil, nil
		}
		return b.index, nil
	case xoption.ParamSuffix, *xoption.ParamSuffix:
		if b.suffix == "" {
			return nil, fmt.Errorf("%w: option %q is not in a dynoptiondescription", xoption.ErrConfig, b.display())
		}
		return b.suffix, nil
	case xoption.ParamSelfOption:
		return c.selfParam(ctx, t, b, o)
	case *xoption.ParamSelfOption:
		return c.selfParam(ctx, *t, b, o)
	case xoption.ParamInformation:
		return c.informationParam(ctx, t, b)
	case *xoption.ParamInformation:
		return c.informationParam(ctx, *t, b)
	}
	if po, ok := asParamOption(p); ok {
		return c.optionParam(ctx, po, b, o)
	}
	return nil, fmt.Errorf("%w: unknown parameter type %T", xoption.ErrConfig, p)
}

// selfParam 读取当前选项自身的值。
//
// 校验时 origValue 就是待检查的值；follower 取整列时把待检查值放回自己的下标。
func (c *Config) selfParam(ctx context.Context, p xoption.ParamSelfOption, b *bag, o execOptions) (any, error) {
	if b.opt == nil {
		return nil, fmt.Errorf("%w: ParamSelfOption is only allowed for an option", xoption.ErrConfig)
	}
	if o.leadershipMustHaveIndex && b.opt.Leadership() != nil && b.index == xoption.NoIndex {
		return nil, errSkipParam
	}
	isFollower := b.opt.IsFollower()
	applyIndex := xoption.NoIndex
	if b.index != xoption.NoIndex && !(p.Whole || !isFollower) {
		applyIndex = b.index
	}
	var value any
	switch {
	case !o.hasOrig || (applyIndex == xoption.NoIndex && isFollower):
		sb := newBag(b.node, b.path, b.suffix, applyIndex, b.cb.unrestrained())
		if err := c.getProperties(ctx, sb, false); err != nil {
			return nil, err
		}
		v, err := c.getattr(ctx, sb)
		if err != nil {
			return nil, err
		}
		if list, ok := v.([]any); ok && o.hasOrig && b.index != xoption.NoIndex && b.index < len(list) {
			list[b.index] = o.origValue
		}
		value = v
	case applyIndex != xoption.NoIndex && !isFollower:
		list, _ := o.origValue.([]any)
		if applyIndex < len(list) {
			value = list[applyIndex]
		}
	default:
		value = o.origValue
	}
	if p.ToDict {
		return xoption.OptionArg{Name: b.display(), Value: value}, nil
	}
	return value, nil
}

// optionParam 读取另一个选项的值。
func (c *Config) optionParam(ctx context.Context, p xoption.ParamOption, b *bag, o execOptions) (any, error) {
	target := p.Option
	if sl, ok := target.(*xoption.SymLink); ok {
		target = sl.Target()
	}
	if o.leadershipMustHaveIndex && inLeadership(target) && b.index == xoption.NoIndex {
		return nil, errSkipParam
	}
	suffix := ""
	if dyn := target.DynParent(); dyn != nil {
		if b.suffix == "" || (b.node.DynParent() != dyn && b.node != xoption.Node(dyn)) {
			return nil, fmt.Errorf("%w: option %q is in a dynoptiondescription and cannot be used outside",
				xoption.ErrConfig, target.Name())
		}
		suffix = b.suffix
	}
	index := xoption.NoIndex
	withIndex := false
	if b.index != xoption.NoIndex && sameLeadership(target, b) {
		if target.(*xoption.Option).IsLeader() {
			withIndex = true
		} else {
			index = b.index
		}
	}
	tb := newBag(target, concretePath(target, suffix), suffix, index, b.cb.forCalculation())
	value, err := c.getattr(ctx, tb)
	if err != nil {
		if _, ok := isPropertiesError(err); ok {
			if p.NotRaisePropertyError || p.RaisePropertyError {
				return nil, err
			}
			return nil, fmt.Errorf("%w: unable to carry out a calculation for %q, %v",
				xoption.ErrConfig, tb.display(), err)
		}
		if errors.Is(err, xoption.ErrValue) {
			return nil, fmt.Errorf("the option %q is used in a calculation but is invalid (%w)", tb.display(), err)
		}
		return nil, err
	}
	if withIndex {
		list, _ := value.([]any)
		if b.index < len(list) {
			value = list[b.index]
		} else {
			value = nil
		}
	}
	if p.ToDict {
		return xoption.OptionArg{Name: tb.display(), Value: value}, nil
	}
	return value, nil
}

func (c *Config) informationParam(ctx context.Context, p xoption.ParamInformation, b *bag) (any, error) {
	if p.Option == nil {
		v, ok, err := c.st.Information().Information(ctx, "", p.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return p.Default, nil
		}
		return v, nil
	}
	target := p.Option
	suffix := ""
	if target.DynParent() != nil {
		suffix = b.suffix
	}
	v, ok, err := c.optionInformation(ctx, target, concretePath(target, suffix), p.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p.Default, nil
	}
	return v, nil
}

// dynSuffixes 求值动态描述的后缀。nil 跳过，重复或含非法字符时报错。
func (c *Config) dynSuffixes(ctx context.Context, d *xoption.Description, cb *configBag) ([]string, error) {
	calc := d.Suffixes()
	if calc == nil {
		return nil, nil
	}
	b := newBag(d, d.Path(), "", xoption.NoIndex, cb)
	v, err := c.execute(ctx, calc, b, execOptions{})
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		list = []any{v}
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		suffix := fmt.Sprint(s)
		if !validSuffix(suffix) {
			return nil, fmt.Errorf("%w: invalid suffix %q for option %q", xoption.ErrConfig, suffix, d.DisplayName())
		}
		if slices.Contains(out, suffix) {
			return nil, fmt.Errorf("%w: DynOptionDescription %q return a list with multiple value %q",
				xoption.ErrConfig, d.Name(), suffix)
		}
		out = append(out, suffix)
	}
	return out, nil
}

func validSuffix(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0
}

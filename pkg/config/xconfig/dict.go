package xconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// DictOption 控制 Dict 的输出形式。
type DictOption func(*dictOptions)

type dictOptions struct {
	flatten      bool
	fullpath     bool
	nested       bool
	leaderToList bool
	withWarnings bool
}

// Flatten 键只用选项名。
func Flatten() DictOption {
	return func(o *dictOptions) { o.flatten = true }
}

// Fullpath 从子描述导出时键仍使用完整路径。
func Fullpath() DictOption {
	return func(o *dictOptions) { o.fullpath = true }
}

// Nested 描述导出为嵌套的 map，键为节点名。
func Nested() DictOption {
	return func(o *dictOptions) { o.nested = true }
}

// LeaderToList leadership 导出为列表，每个下标一个 map。
func LeaderToList() DictOption {
	return func(o *dictOptions) { o.leaderToList = true }
}

// WithWarnings 导出时发出校验告警。
func WithWarnings() DictOption {
	return func(o *dictOptions) { o.withWarnings = true }
}

// Dict 导出全部可访问选项的值。被 mandatory 或 empty 拦截时返回错误，
// 被其他属性拦截的选项不导出。
func (c *Config) Dict(ctx context.Context, opts ...DictOption) (map[string]any, error) {
	return c.Option("").Dict(ctx, opts...)
}

// Dict 导出描述下全部可访问选项的值。
func (o *OptionRef) Dict(ctx context.Context, opts ...DictOption) (map[string]any, error) {
	var do dictOptions
	for _, opt := range opts {
		opt(&do)
	}
	b, err := o.bag(ctx, true)
	if err != nil {
		return nil, err
	}
	if b.desc == nil {
		return nil, fmt.Errorf("%w: %q is not an optiondescription", xoption.ErrAPI, o.path)
	}
	if !do.withWarnings && b.cb.has(xoption.PropWarnings) {
		cb := b.cb.copy()
		cb.props.Delete(xoption.PropWarnings)
		b = b.with(cb)
	}
	if err := o.c.validateProperties(ctx, b); err != nil {
		return nil, err
	}
	var prefix []string
	if do.fullpath && b.path != "" {
		prefix = strings.Split(b.path, ".")
	}
	d := dumper{c: o.c, o: do}
	out := make(map[string]any)
	if err := d.description(ctx, b, prefix, out); err != nil {
		return nil, err
	}
	return out, nil
}

type dumper struct {
	c *Config
	o dictOptions
}

func (d dumper) key(prefix []string, name string) string {
	if d.o.flatten || d.o.nested {
		return name
	}
	return strings.Join(append(prefix[:len(prefix):len(prefix)], name), ".")
}

// skip 判断属性错误是否只跳过该选项。
func skip(err error) bool {
	pe, ok := isPropertiesError(err)
	return ok && !pe.OnlyMandatory()
}

// description 导出描述 b 的子节点。
func (d dumper) description(ctx context.Context, b *bag, prefix []string, out map[string]any) error {
	kids, err := d.c.children(ctx, b.desc, b.path, b.suffix, b.cb)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if err := ctx.Err(); err != nil {
			return err
		}
		kb := newBag(k.node, k.path, k.suffix, xoption.NoIndex, b.cb)
		if err := d.c.getProperties(ctx, kb, true); err != nil {
			return err
		}
		var err error
		if d.o.leaderToList && kb.desc != nil && kb.desc.IsLeadership() {
			err = d.leadership(ctx, kb, prefix, out)
		} else {
			err = d.node(ctx, kb, prefix, out)
		}
		if err != nil && !skip(err) {
			return err
		}
	}
	return nil
}

// node 导出一个选项或子描述。
func (d dumper) node(ctx context.Context, b *bag, prefix []string, out map[string]any) error {
	name := lastSegment(b.userPath())
	if b.desc != nil {
		if err := d.c.validateProperties(ctx, b); err != nil {
			return err
		}
		if d.o.nested {
			sub := make(map[string]any)
			if err := d.description(ctx, b, nil, sub); err != nil {
				return err
			}
			out[name] = sub
			return nil
		}
		return d.description(ctx, b, append(prefix[:len(prefix):len(prefix)], name), out)
	}
	v, err := d.c.getattr(ctx, b)
	if err != nil {
		return err
	}
	out[d.key(prefix, name)] = v
	return nil
}

// leadership 把 leadership 导出为 leader 名下的列表。
func (d dumper) leadership(ctx context.Context, b *bag, prefix []string, out map[string]any) error {
	if err := d.c.validateProperties(ctx, b); err != nil {
		return err
	}
	inner := append(prefix[:len(prefix):len(prefix)], b.desc.Name()+b.suffix)
	if d.o.nested {
		inner = nil
	}
	leader := b.desc.Leader()
	lb := newBag(leader, concretePath(leader, b.suffix), b.suffix, xoption.NoIndex, b.cb)
	if err := d.c.getProperties(ctx, lb, true); err != nil {
		return err
	}
	v, err := d.c.getattr(ctx, lb)
	if err != nil {
		return err
	}
	leaderKey := d.key(inner, lastSegment(lb.path))
	values, _ := v.([]any)
	rows := make([]any, 0, len(values))
	for i, lv := range values {
		row := map[string]any{leaderKey: lv}
		for _, f := range b.desc.Followers() {
			fb := newBag(f, concretePath(f, b.suffix), b.suffix, i, b.cb)
			if err := d.c.getProperties(ctx, fb, true); err != nil {
				return err
			}
			fv, err := d.c.getattr(ctx, fb)
			if err != nil {
				if skip(err) {
					continue
				}
				return err
			}
			row[d.key(inner, lastSegment(fb.path))] = fv
		}
		rows = append(rows, row)
	}
	if d.o.nested {
		out[b.desc.Name()+b.suffix] = rows
		return nil
	}
	out[leaderKey] = rows
	return nil
}

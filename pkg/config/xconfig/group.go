package xconfig

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// Member 配置组的成员：*Config、*MixConfig、*MetaConfig 或 *GroupConfig。
type Member interface {
	Name() string
	member()
}

// GroupConfig 把多个配置当作一个整体写入。它没有自己的描述与值。
type GroupConfig struct {
	name     string
	logger   xlog.Logger
	observer xmetrics.Observer

	mu   sync.Mutex
	kids []Member
}

// Name 返回配置组名。
func (g *GroupConfig) Name() string {
	return g.name
}

func (g *GroupConfig) member() {}

// Children 返回成员。
func (g *GroupConfig) Children() []Member {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.kids)
}

// Lookup 按名字查找成员，点分名字逐层查找。
func (g *GroupConfig) Lookup(name string) (Member, error) {
	return lookupMember(g.Children(), name)
}

// AddConfig 加入成员，名字必须唯一。
func (g *GroupConfig) AddConfig(m Member) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(m)
}

func (g *GroupConfig) add(m Member) error {
	if m == nil {
		return fmt.Errorf("%w: nil config in groupconfig %q", xoption.ErrAPI, g.name)
	}
	if gm, ok := m.(*GroupConfig); ok && gm == g {
		return fmt.Errorf("%w: cannot add a config to itself", xoption.ErrConflict)
	}
	for _, k := range g.kids {
		if k.Name() == m.Name() {
			return fmt.Errorf("%w: config name must be uniq in groupconfig for %q", xoption.ErrConflict, m.Name())
		}
	}
	g.kids = append(g.kids, m)
	return nil
}

// PopConfig 移除名为 name 的成员并返回它。
func (g *GroupConfig) PopConfig(name string) (Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := slices.IndexFunc(g.kids, func(m Member) bool { return m.Name() == name })
	if idx < 0 {
		return nil, fmt.Errorf("%w: cannot find the config %q", xoption.ErrConfig, name)
	}
	m := g.kids[idx]
	g.kids = slices.Delete(g.kids, idx, idx+1)
	return m, nil
}

// SetValue 把写入扇出到所有成员。MixConfig 成员同时写入自身。
// 任一成员检查失败时不写入任何成员，返回合并的 *ChildError。
func (g *GroupConfig) SetValue(ctx context.Context, path string, index int, value any) (err error) {
	ctx, span := g.start(ctx, "set_value", path)
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	p := &plan{}
	if err := planChildren(ctx, p, g.Children(), path, index, value, false); err != nil {
		return err
	}
	return commit(ctx, p, g.logger)
}

// Reset 在所有成员中重置 path，不校验重置后的值。没有该选项的成员被跳过。
func (g *GroupConfig) Reset(ctx context.Context, path string) (err error) {
	ctx, span := g.start(ctx, "reset", path)
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	p := &plan{}
	if err := planResetChildren(ctx, p, g.Children(), path); err != nil {
		return err
	}
	return commit(ctx, p, g.logger)
}

// FindGroup 返回 Find 有结果的配置，MixConfig 与 GroupConfig 成员按其子配置查找。
func (g *GroupConfig) FindGroup(ctx context.Context, opts ...FindOption) ([]Member, error) {
	return findGroup(ctx, g.Children(), opts)
}

func (g *GroupConfig) start(ctx context.Context, op, path string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, g.observer, xmetrics.SpanOptions{
		Component: "xconfig",
		Operation: "groupconfig." + op,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("path", path), xmetrics.String("config", g.name)},
	})
}

// =============================================================================
// 成员遍历
// =============================================================================

// lookupMember 先按完整名字匹配（会话 ID 可以含点），再按点分逐层查找。
func lookupMember(kids []Member, name string) (Member, error) {
	for _, k := range kids {
		if k.Name() == name {
			return k, nil
		}
	}
	first, rest, nested := strings.Cut(name, ".")
	for _, k := range kids {
		if k.Name() != first {
			continue
		}
		if !nested {
			return k, nil
		}
		switch t := k.(type) {
		case *GroupConfig:
			return t.Lookup(rest)
		case *MixConfig:
			return t.Lookup(rest)
		case *MetaConfig:
			return t.Lookup(rest)
		}
		break
	}
	return nil, fmt.Errorf("%w: unknown config %q", xoption.ErrConfig, name)
}

// planChildren 规划对成员的写入。onlyConfig 为 true 时 MixConfig 成员只写入其子配置。
func planChildren(ctx context.Context, p *plan, kids []Member, path string, index int, value any, onlyConfig bool) error {
	for _, k := range kids {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch t := k.(type) {
		case *GroupConfig:
			err = planChildren(ctx, p, t.Children(), path, index, value, onlyConfig)
		case *MixConfig:
			err = t.planSetValue(ctx, p, path, index, value, setValueOptions{onlyConfig: onlyConfig})
		case *MetaConfig:
			err = t.planSetValue(ctx, p, path, index, value, setValueOptions{onlyConfig: onlyConfig})
		case *Config:
			err = t.planSet(ctx, p, path, index, value)
		}
		if err == nil {
			continue
		}
		if isFatal(err) {
			return err
		}
		p.fail(k.Name(), err)
	}
	return nil
}

func planResetChildren(ctx context.Context, p *plan, kids []Member, path string) error {
	for _, k := range kids {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch t := k.(type) {
		case *GroupConfig:
			err = planResetChildren(ctx, p, t.Children(), path)
		case *MixConfig:
			err = t.planResetValue(ctx, p, path, false)
		case *MetaConfig:
			err = t.planResetValue(ctx, p, path, false)
		case *Config:
			err = t.planReset(ctx, p, path, xoption.NoIndex, false)
		}
		switch {
		case err == nil, isLookupMiss(err):
		case isFatal(err):
			return err
		default:
			p.fail(k.Name(), err)
		}
	}
	return nil
}

func findGroup(ctx context.Context, kids []Member, opts []FindOption) ([]Member, error) {
	out, err := collectGroup(ctx, kids, opts)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func collectGroup(ctx context.Context, kids []Member, opts []FindOption) ([]Member, error) {
	var out []Member
	for _, k := range kids {
		var sub []Member
		switch t := k.(type) {
		case *GroupConfig:
			sub = t.Children()
		case *MixConfig:
			sub = t.Children()
		case *MetaConfig:
			sub = t.Children()
		case *Config:
			if _, err := t.FindFirst(ctx, opts...); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, t)
			continue
		}
		found, err := collectGroup(ctx, sub, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

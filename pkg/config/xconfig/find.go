package xconfig

import (
	"context"
	"errors"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// FindOption 查找条件，多个条件同时满足才算匹配。
type FindOption func(*findQuery)

type findQuery struct {
	name     string
	typeName string
	value    any
	hasValue bool
}

// ByName 按选项名（动态描述中含后缀）匹配。
func ByName(name string) FindOption {
	return func(q *findQuery) { q.name = name }
}

// ByType 按选项类型名匹配，类型名见 xoption.Type.Name。
func ByType(typeName string) FindOption {
	return func(q *findQuery) { q.typeName = typeName }
}

// ByValue 按值匹配，多值选项包含该值即匹配。
func ByValue(v any) FindOption {
	return func(q *findQuery) {
		q.value = xoption.Normalize(v)
		q.hasValue = true
	}
}

var errFindDone = errors.New("xconfig: find done")

// Find 返回满足条件的选项路径。被属性拦截的选项与描述不参与匹配。
// 没有结果时返回 ErrNotFound。
func (c *Config) Find(ctx context.Context, opts ...FindOption) ([]string, error) {
	return c.find(ctx, opts, false)
}

// FindFirst 返回第一个满足条件的选项路径。
func (c *Config) FindFirst(ctx context.Context, opts ...FindOption) (string, error) {
	found, err := c.find(ctx, opts, true)
	if err != nil {
		return "", err
	}
	return found[0], nil
}

func (c *Config) find(ctx context.Context, opts []FindOption, first bool) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var q findQuery
	for _, opt := range opts {
		opt(&q)
	}
	cb, err := c.configBag(ctx)
	if err != nil {
		return nil, err
	}
	var found []string
	w := walker{
		enter: func(b *bag) (bool, error) {
			return c.accessible(ctx, b)
		},
		option: func(b *bag) error {
			ok, err := c.match(ctx, b, q)
			if err != nil || !ok {
				return err
			}
			found = append(found, b.userPath())
			if first {
				return errFindDone
			}
			return nil
		},
	}
	if c.root != nil {
		if err := c.walk(ctx, c.root, "", "", cb, w); err != nil && !errors.Is(err, errFindDone) {
			return nil, err
		}
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found, nil
}

// accessible 检查属性，被属性拦截时返回 false。
func (c *Config) accessible(ctx context.Context, b *bag) (bool, error) {
	if err := c.validateProperties(ctx, b); err != nil {
		if _, ok := isPropertiesError(err); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Config) match(ctx context.Context, b *bag, q findQuery) (bool, error) {
	if q.name != "" && lastSegment(b.userPath()) != q.name {
		return false, nil
	}
	if q.typeName != "" && b.opt.TypeName() != q.typeName {
		return false, nil
	}
	ok, err := c.accessible(ctx, b)
	if err != nil || !ok {
		return false, err
	}
	if !q.hasValue {
		return true, nil
	}
	v, err := c.getattr(ctx, b)
	if err != nil {
		if _, ok := isPropertiesError(err); ok {
			return false, nil
		}
		return false, err
	}
	if list, ok := v.([]any); ok {
		if _, want := q.value.([]any); !want {
			for _, e := range list {
				if xoption.Equal(e, q.value) {
					return true, nil
				}
			}
			return false, nil
		}
	}
	return xoption.Equal(v, q.value), nil
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

package xconfig

import (
	"context"
	"errors"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// MandatoryWarnings 返回必填但为空的选项路径（含 empty 属性的空元素）。
//
// 检查时上下文强制带 mandatory 与 empty，被其他属性拦截的选项与描述不检查。
func (c *Config) MandatoryWarnings(ctx context.Context) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	cb, err := c.configBag(ctx)
	if err != nil {
		return nil, err
	}
	cb.props.Add(xoption.PropPermissive)

	descCb := cb.copy()
	descCb.props.Delete(xoption.PropMandatory, xoption.PropEmpty)
	descCb.trueProps = descCb.props.Clone()

	optCb := cb.copy()
	optCb.props.Delete(xoption.PropWarnings)
	optCb.props.Add(xoption.PropMandatory, xoption.PropEmpty)
	optCb.trueProps = optCb.props.Clone()

	var found []string
	add := func(path string) {
		if n := len(found); n == 0 || found[n-1] != path {
			found = append(found, path)
		}
	}
	w := walker{
		enter: func(b *bag) (bool, error) {
			return c.accessible(ctx, b.with(descCb))
		},
		option: func(b *bag) error {
			if b.link != nil {
				return nil
			}
			b = b.with(optCb)
			if !b.isFollower() {
				miss, err := c.isMandatoryMissing(ctx, b)
				if err != nil || !miss {
					return err
				}
				add(b.path)
				return nil
			}
			length, err := c.leadershipLength(ctx, b)
			if err != nil {
				if _, ok := isPropertiesError(err); ok {
					return nil
				}
				return err
			}
			for i := range length {
				miss, err := c.isMandatoryMissing(ctx, b.at(i))
				if err != nil {
					return err
				}
				if miss {
					add(b.path)
				}
			}
			return nil
		},
	}
	if c.root != nil {
		if err := c.walk(ctx, c.root, "", "", descCb, w); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// isMandatoryMissing 读取带 mandatory 或 empty 的选项，只被这两个属性拦截时为 true。
func (c *Config) isMandatoryMissing(ctx context.Context, b *bag) (bool, error) {
	if err := c.getProperties(ctx, b, true); err != nil {
		return false, err
	}
	if !b.props.Has(xoption.PropMandatory) && !b.props.Has(xoption.PropEmpty) {
		return false, nil
	}
	_, err := c.getattr(ctx, b)
	if err == nil {
		return false, nil
	}
	if pe, ok := isPropertiesError(err); ok {
		return pe.OnlyMandatory(), nil
	}
	if errors.Is(err, xoption.ErrValue) || errors.Is(err, xoption.ErrConfig) || errors.Is(err, xoption.ErrLeadership) {
		return false, nil
	}
	return false, err
}

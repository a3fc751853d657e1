package xconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// validate 校验值。
//
// checkError 为 true 时执行会返回错误的检查（类型、候选值、非告警校验、unique），
// 为 false 时只执行告警类检查并通过 WarningHandler 投递。
func (c *Config) validate(ctx context.Context, b *bag, value any, checkError bool) error {
	if b.opt == nil {
		return nil
	}
	if checkError && !b.cb.has(xoption.PropValidator) {
		return nil
	}
	if err := c.ensureProperties(ctx, b); err != nil {
		return err
	}
	opt := b.opt
	unique := checkError && b.props.Has(xoption.PropUnique)
	index := xoption.NoIndex
	if b.isFollower() {
		index = b.index
	}
	check := func(elem any, idx int) error {
		if checkError {
			if err := opt.Type().Validate(elem); err != nil {
				return err
			}
			if ch, ok := opt.Type().(*xoption.Choice); ok && ch.ValuesCalc != nil {
				if err := c.checkCalculatedChoice(ctx, b, ch, elem); err != nil {
					return err
				}
			}
		}
		if sl, ok := opt.Type().(xoption.SecondLevelValidator); ok {
			wo := opt.WarningsOnly()
			if (checkError && !wo) || (!checkError && wo) {
				if err := sl.SecondLevel(elem, wo); err != nil {
					if !wo {
						return err
					}
					c.warn(ctx, b, elem, idx, err.Error())
				}
			}
		}
		return c.runValidators(ctx, b, value, elem, idx, checkError)
	}
	err := opt.Check(value, index, unique, check)
	if err == nil {
		return nil
	}
	var ve *xoption.ValueOptionError
	if errors.As(err, &ve) && b.cb.has(xoption.PropDemotingErrorWarning) {
		w := *ve
		w.Warning = true
		c.emitWarning(ctx, &w)
		return nil
	}
	return err
}

func (c *Config) checkCalculatedChoice(ctx context.Context, b *bag, ch *xoption.Choice, elem any) error {
	values, err := c.execute(ctx, ch.ValuesCalc, b, execOptions{})
	if err != nil {
		return err
	}
	list, ok := values.([]any)
	if !ok {
		return fmt.Errorf("%w: the calculated values of %q must be a list", xoption.ErrConfig, b.display())
	}
	return xoption.CheckChoice(elem, list)
}

// runValidators 执行校验计算。warnings_only 的校验只在告警阶段执行，失败时投递告警。
func (c *Config) runValidators(ctx context.Context, b *bag, whole, elem any, idx int, checkError bool) error {
	for _, v := range b.opt.Validators() {
		if v.WarningsOnly == checkError {
			continue
		}
		vb := b
		if idx != b.index {
			vb = b.at(idx)
			vb.props, vb.help, vb.hasProps = b.props, b.help, true
		}
		_, err := c.execute(ctx, v, vb, execOptions{
			leadershipMustHaveIndex: true,
			origValue:               whole,
			hasOrig:                 true,
			allowRaises:             true,
		})
		if err == nil {
			continue
		}
		if errors.Is(err, xoption.ErrConfig) || errors.Is(err, xoption.ErrLeadership) ||
			errors.Is(err, xoption.ErrProperties) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !v.WarningsOnly {
			return err
		}
		c.warn(ctx, b, elem, idx, err.Error())
	}
	return nil
}

func (c *Config) warn(ctx context.Context, b *bag, elem any, idx int, msg string) {
	c.emitWarning(ctx, &xoption.ValueOptionError{
		Value:   elem,
		Type:    b.opt.TypeName(),
		Option:  b.display(),
		Msg:     msg,
		Index:   idx,
		Warning: true,
	})
}

// emitWarning 记录告警并交给 WarningHandler。
func (c *Config) emitWarning(ctx context.Context, w *xoption.ValueOptionError) {
	c.logger.Warn(ctx, "validation warning", c.attrs(xlog.Index(w.Index), xlog.Err(w))...)
	if h := c.opts.warningHandler; h != nil {
		h(ctx, w)
	}
}

package xconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// =============================================================================
// 扇出写入
// =============================================================================
//
// GroupConfig / MixConfig / MetaConfig 的写入分两阶段：
//   1. 计划：对每个子配置完成全部检查但不写入，收集每个子配置的错误；
//   2. 提交：计划没有错误时，先导出每个涉及配置的快照，再依次执行；
//      执行失败时用快照恢复已写入的配置。

// step 计划中的一步写入。
type step struct {
	cfg   *Config
	apply func(ctx context.Context) error
}

// plan 一次扇出写入的计划。
type plan struct {
	steps []step
	errs  []error
}

func (p *plan) add(cfg *Config, apply func(ctx context.Context) error) {
	p.steps = append(p.steps, step{cfg: cfg, apply: apply})
}

func (p *plan) fail(name string, err error) {
	var ce *ChildError
	if errors.As(err, &ce) {
		p.errs = append(p.errs, err)
		return
	}
	p.errs = append(p.errs, &ChildError{Config: name, Err: err})
}

// isFatal 取消与超时不归入子配置错误，直接中断计划。
func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// commit 执行计划。计划阶段有错误时不写入任何配置，返回合并后的错误。
func commit(ctx context.Context, p *plan, logger xlog.Logger) error {
	if len(p.errs) > 0 {
		return errors.Join(p.errs...)
	}
	if len(p.steps) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snaps := make(map[*Config]*xstore.Snapshot)
	for _, s := range p.steps {
		if _, ok := snaps[s.cfg]; ok {
			continue
		}
		snap, err := s.cfg.st.Exportation(ctx)
		if err != nil {
			return &ChildError{Config: s.cfg.Name(), Err: err}
		}
		snaps[s.cfg] = snap
	}

	var touched []*Config
	seen := make(map[*Config]bool)
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return rollback(ctx, logger, touched, snaps, err)
		}
		if !seen[s.cfg] {
			seen[s.cfg] = true
			touched = append(touched, s.cfg)
		}
		if err := s.apply(ctx); err != nil {
			return rollback(ctx, logger, touched, snaps, &ChildError{Config: s.cfg.Name(), Err: err})
		}
	}
	return nil
}

// rollback 逆序恢复已写入的配置。恢复失败时返回 ErrRollback。
func rollback(ctx context.Context, logger xlog.Logger, touched []*Config, snaps map[*Config]*xstore.Snapshot, cause error) error {
	rctx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(touched) - 1; i >= 0; i-- {
		cfg := touched[i]
		if err := cfg.restore(rctx, snaps[cfg]); err != nil {
			errs = append(errs, &ChildError{Config: cfg.Name(), Err: err})
		}
	}
	if len(errs) > 0 {
		logger.Error(rctx, "rollback failed", xlog.Err(errors.Join(errs...)), xlog.Count(int64(len(errs))))
		return errors.Join(cause, fmt.Errorf("%w: %w", ErrRollback, errors.Join(errs...)))
	}
	logger.Warn(rctx, "fan-out write rolled back", xlog.Err(cause), xlog.Count(int64(len(touched))))
	return cause
}

// =============================================================================
// 单个配置上的计划
// =============================================================================

// checkSet 完成 setattr 的全部检查但不写入。校验告警不发出，提交时才发出。
func (c *Config) checkSet(ctx context.Context, path string, index int, value any) error {
	b, err := c.ref(path, index).optionBag(ctx, true)
	if err != nil {
		return err
	}
	if b.link != nil {
		return fmt.Errorf("%w: can't set value to a SymLinkOption", xoption.ErrConfig)
	}
	if err := c.validateProperties(ctx, b); err != nil {
		return err
	}
	if err := c.checkLeadershipWrite(ctx, b, value); err != nil {
		return err
	}
	if !b.cb.has(xoption.PropValidator) {
		return nil
	}
	quiet := b.cb.copy()
	quiet.props.Delete(xoption.PropWarnings)
	return c.setValueValidation(ctx, b.with(quiet), xoption.Normalize(value))
}

// planSet 检查写入并把它加入计划。
func (c *Config) planSet(ctx context.Context, p *plan, path string, index int, value any) error {
	if err := c.checkSet(ctx, path, index, value); err != nil {
		if isFatal(err) {
			return err
		}
		p.fail(c.Name(), err)
		return nil
	}
	ref := c.ref(path, index)
	p.add(c, func(ctx context.Context) error {
		return ref.Set(ctx, value)
	})
	return nil
}

// resetBag 解析用于重置的访问，不检查选项自身的属性。
func (c *Config) resetBag(ctx context.Context, path string, index int, validate bool) (*bag, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	cb, err := c.configBag(ctx)
	if err != nil {
		return nil, err
	}
	if !validate {
		cb = cb.withoutValidation()
	}
	b, err := c.ref(path, index).bagWith(ctx, cb, true)
	if err != nil {
		return nil, err
	}
	if b.opt == nil {
		return nil, fmt.Errorf("%w: cannot reset the optiondescription %q", xoption.ErrAPI, path)
	}
	if b.link != nil {
		return nil, fmt.Errorf("%w: can't delete a SymLinkOption", xoption.ErrConfig)
	}
	return b, nil
}

// resetPath 重置 path 的值。validate 为 false 时不校验重置后的默认值。
func (c *Config) resetPath(ctx context.Context, path string, index int, validate bool) error {
	b, err := c.resetBag(ctx, path, index, validate)
	if err != nil {
		return err
	}
	if b.index != xoption.NoIndex {
		return c.resetFollower(ctx, b)
	}
	return c.reset(ctx, b)
}

// planReset 检查重置并把它加入计划。找不到选项时返回 xoption.ErrUnknownOption 包装的错误。
func (c *Config) planReset(ctx context.Context, p *plan, path string, index int, validate bool) error {
	if _, err := c.resetBag(ctx, path, index, validate); err != nil {
		return err
	}
	p.add(c, func(ctx context.Context) error {
		return c.resetPath(ctx, path, index, validate)
	})
	return nil
}

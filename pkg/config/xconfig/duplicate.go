package xconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// DuplicateOption 控制 Duplicate。
type DuplicateOption func(*duplicateOptions)

type duplicateOptions struct {
	sessionID  string
	deep       bool
	metaPrefix string
	opts       []Option
}

// DuplicateSession 指定副本的会话 ID。
func DuplicateSession(id string) DuplicateOption {
	return func(o *duplicateOptions) { o.sessionID = id }
}

// DeepCopy 同时复制父配置链，副本挂到复制出的父配置下，返回最上层的副本。
func DeepCopy() DuplicateOption {
	return func(o *duplicateOptions) { o.deep = true }
}

// MetaPrefix DeepCopy 时复制出的父配置使用 prefix 加原名作为会话 ID。
func MetaPrefix(prefix string) DuplicateOption {
	return func(o *duplicateOptions) { o.metaPrefix = prefix }
}

// DuplicateConfigOptions 副本使用的配置选项，覆盖从原配置继承的选项。
func DuplicateConfigOptions(opts ...Option) DuplicateOption {
	return func(o *duplicateOptions) { o.opts = append(o.opts, opts...) }
}

// Duplicate 复制配置：值、属性、permissive、信息、模式规则与默认属性。
//
// 不使用 DeepCopy 时副本挂到原配置的所有父配置下。
func (c *Config) Duplicate(ctx context.Context, opts ...DuplicateOption) (*Config, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var o duplicateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return c.duplicate(ctx, &o, o.sessionID, nil, make(map[*Config]bool))
}

func (c *Config) duplicate(ctx context.Context, o *duplicateOptions, sessionID string, child *Config, seen map[*Config]bool) (*Config, error) {
	cfgOpts := append([]Option{WithSession(sessionID)}, o.opts...)
	dup, err := c.mgr.newConfig(ctx, c.root, c.kind, inherit(c.opts, cfgOpts))
	if err != nil {
		return nil, err
	}
	if err := c.copyInto(ctx, dup); err != nil {
		return nil, errors.Join(err, dup.Close(ctx))
	}
	if child != nil {
		if err := dup.mix.attach(child); err != nil {
			return nil, errors.Join(err, dup.Close(ctx))
		}
	}
	c.logger.Debug(ctx, "config duplicated", c.attrs(xlog.Session(dup.Name()))...)

	parents := c.parentConfigs()
	if !o.deep {
		for _, p := range parents {
			if err := p.mix.attach(dup); err != nil {
				return nil, errors.Join(err, dup.Close(ctx))
			}
		}
		return dup, nil
	}
	top := dup
	for _, p := range parents {
		if seen[p] {
			continue
		}
		seen[p] = true
		id := ""
		if o.metaPrefix != "" {
			id = o.metaPrefix + p.Name()
		}
		pdup, err := p.duplicate(ctx, o, id, dup, seen)
		if err != nil {
			return nil, err
		}
		top = pdup
	}
	return top, nil
}

// copyInto 通过导出 / 导入复制存储内容，并复制内存中的规则。
func (c *Config) copyInto(ctx context.Context, dup *Config) error {
	if dup.root != c.root {
		return fmt.Errorf("%w: cannot copy a config to a config with another optiondescription", xoption.ErrConfig)
	}
	snap, err := c.st.Exportation(ctx)
	if err != nil {
		return err
	}
	if err := dup.st.Importation(ctx, snap); err != nil {
		return err
	}
	dup.rules = c.rules.copy()
	dup.forgetContextState()
	dup.resetAllCache()
	return nil
}

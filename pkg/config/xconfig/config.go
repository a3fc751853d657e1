package xconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// Kind 配置的种类。
type Kind int

const (
	// KindConfig 普通配置。
	KindConfig Kind = iota
	// KindMix 持有子配置的配置，子配置的描述可以不同。
	KindMix
	// KindMeta 子配置共享同一个描述的 KindMix。
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindMix:
		return "mixconfig"
	case KindMeta:
		return "metaconfig"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Config 一个会话上的配置：选项树 + 属性 + 值 + 缓存。
//
// Config 不对同一棵树的并发写入加锁，调用方负责串行化修改；
// 只读访问可以并发。
type Config struct {
	id     uint64
	mgr    *Manager
	kind   Kind
	root   *xoption.Description
	st     xstore.Storage
	opts   *options
	cache  *cache
	logger xlog.Logger
	rules  *rules

	stateMu     sync.Mutex
	stateLoaded bool
	ctxProps    xoption.Properties
	ctxPerms    xoption.Properties

	// familyMu 保护 parents 与 mix 的子配置列表。
	familyMu sync.Mutex
	parents  []parentRef
	mix      *MixConfig

	closed atomic.Bool
}

// parentRef 指向 Manager 父配置表中的一项，不持有父配置。
type parentRef struct {
	id uint64
}

// Name 返回配置名（会话 ID）。
func (c *Config) Name() string {
	return c.st.SessionID()
}

// SessionID 返回存储会话 ID。
func (c *Config) SessionID() string {
	return c.st.SessionID()
}

// Kind 返回配置种类。
func (c *Config) Kind() Kind {
	return c.kind
}

// Description 返回根描述。
func (c *Config) Description() *xoption.Description {
	return c.root
}

// Storage 返回配置使用的存储会话。
func (c *Config) Storage() xstore.Storage {
	return c.st
}

func (c *Config) member() {}

func (c *Config) attrs(attrs ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs)+1)
	out = append(out, xlog.Config(c.Name()))
	return append(out, attrs...)
}

func (c *Config) checkOpen() error {
	if c.closed.Load() {
		return fmt.Errorf("%w: %q", ErrClosed, c.Name())
	}
	return nil
}

// =============================================================================
// 亲属关系
// =============================================================================

// parentConfigs 返回仍然存活的父配置。
func (c *Config) parentConfigs() []*Config {
	c.familyMu.Lock()
	refs := slices.Clone(c.parents)
	c.familyMu.Unlock()
	if c.mgr == nil {
		return nil
	}
	return c.mgr.resolve(refs)
}

func (c *Config) addParent(p *Config) {
	c.familyMu.Lock()
	defer c.familyMu.Unlock()
	c.parents = append(c.parents, parentRef{id: p.id})
}

func (c *Config) removeParent(p *Config) bool {
	c.familyMu.Lock()
	defer c.familyMu.Unlock()
	for i, ref := range c.parents {
		if ref.id == p.id {
			c.parents = slices.Delete(c.parents, i, i+1)
			return true
		}
	}
	return false
}

// childConfigs 返回 mix 配置的直接子配置。
func (c *Config) childConfigs() []*Config {
	if c.mix == nil {
		return nil
	}
	return c.mix.childConfigs()
}

// =============================================================================
// 缓存
// =============================================================================

// resetAllCache 清空本配置及所有后代的缓存。
func (c *Config) resetAllCache() {
	c.cache.reset()
	for _, child := range c.childConfigs() {
		child.resetAllCache()
	}
}

// resetOptionCache 使 b 以及依赖它的选项（含动态实例）的缓存失效，后代配置同样处理。
func (c *Config) resetOptionCache(ctx context.Context, b *bag) {
	seen := make(map[string]bool)
	if err := c.collectDependents(ctx, b.node, b.path, b.suffix, b.cb, seen); err != nil {
		c.logger.Debug(ctx, "dependents unavailable, reset all cache", c.attrs(xlog.Path(b.path), xlog.Err(err))...)
		c.resetAllCache()
		return
	}
	c.invalidatePaths(seen)
}

func (c *Config) invalidatePaths(paths map[string]bool) {
	for p := range paths {
		c.cache.invalidate(p)
	}
	for _, child := range c.childConfigs() {
		child.invalidatePaths(paths)
	}
}

// collectDependents 收集 n 在后缀 suffix 下的具体路径以及其依赖者的路径。
func (c *Config) collectDependents(ctx context.Context, n xoption.Node, path, suffix string, cb *configBag, seen map[string]bool) error {
	if seen[path] {
		return nil
	}
	seen[path] = true
	for _, dep := range n.Dependents() {
		var dyn *xoption.Description
		if d, ok := dep.(*xoption.Description); ok && d.IsDynamic() {
			dyn = d
		} else {
			dyn = dep.DynParent()
		}
		if dyn == nil {
			if err := c.collectDependents(ctx, dep, dep.Path(), "", cb, seen); err != nil {
				return err
			}
			continue
		}
		if dyn == n.DynParent() && suffix != "" {
			if err := c.collectDependents(ctx, dep, concretePath(dep, suffix), suffix, cb, seen); err != nil {
				return err
			}
			continue
		}
		suffixes, err := c.dynSuffixes(ctx, dyn, cb.unrestrained())
		if err != nil {
			return err
		}
		for _, s := range suffixes {
			if err := c.collectDependents(ctx, dep, concretePath(dep, s), s, cb, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResetCache 清空值缓存与属性缓存。
func (c *Config) ResetCache() {
	c.resetAllCache()
}

// SetExpiration 设置带 expire 属性的缓存值有效期。
func (c *Config) SetExpiration(d time.Duration) {
	c.cache.setExpiration(d)
}

// Expiration 返回缓存有效期。
func (c *Config) Expiration() time.Duration {
	return c.cache.getExpiration()
}

// CacheStats 返回缓存命中统计。
func (c *Config) CacheStats() CacheStats {
	return c.cache.stats()
}

// =============================================================================
// 导出 / 导入
// =============================================================================

// Exportation 导出值、属性、permissive 与信息的快照。
func (c *Config) Exportation(ctx context.Context) (*xstore.Snapshot, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.st.Exportation(ctx)
}

// Importation 用快照替换当前会话的全部内容。
func (c *Config) Importation(ctx context.Context, snap *xstore.Snapshot) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", xoption.ErrAPI)
	}
	err := c.st.Importation(ctx, snap)
	c.forgetContextState()
	c.resetAllCache()
	if err != nil {
		c.logger.Error(ctx, "importation failed", c.attrs(xlog.Err(err))...)
		return err
	}
	c.logger.Debug(ctx, "importation done", c.attrs()...)
	return nil
}

// restore 扇出写入失败时用快照恢复。
func (c *Config) restore(ctx context.Context, snap *xstore.Snapshot) error {
	err := c.st.Importation(ctx, snap)
	c.forgetContextState()
	c.resetAllCache()
	return err
}

// =============================================================================
// 关闭
// =============================================================================

// Close 关闭配置：从父配置表移除、关闭存储会话（非持久会话被删除）、释放缓存。
// 重复调用返回 nil。
func (c *Config) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.mgr != nil {
		c.mgr.forget(c)
	}
	for _, p := range c.parentConfigs() {
		if p.mix != nil {
			p.mix.detach(c)
		}
	}
	// 子配置不再回落到本配置。
	for _, child := range c.childConfigs() {
		child.resetAllCache()
	}
	var errs []error
	if err := c.st.Close(ctx); err != nil && !errors.Is(err, xstore.ErrClosed) {
		errs = append(errs, err)
	}
	c.cache.close()
	c.logger.Debug(ctx, "config closed", c.attrs()...)
	return errors.Join(errs...)
}

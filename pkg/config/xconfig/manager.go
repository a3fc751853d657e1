package xconfig

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// Manager 创建并持有配置，拥有会话 Registry。
//
// 子配置通过 Manager 中的编号引用父配置，父配置关闭后从表中移除，
// 子配置不再回落到它。
type Manager struct {
	registry *xstore.Registry
	opts     *options

	mu      sync.Mutex
	configs map[uint64]*Config
	nextID  uint64
	closed  bool
}

// NewManager 创建 Manager。opts 作为所有配置的默认选项，会话相关选项除外。
func NewManager(registry *xstore.Registry, opts ...Option) *Manager {
	o := defaultOptions().apply(opts)
	o.sessionID, o.storage = "", nil
	return &Manager{
		registry: registry,
		opts:     o,
		configs:  make(map[uint64]*Config),
	}
}

// inherit 返回继承 base 的日志、观测、告警与缓存设置的选项，会话相关选项不继承。
func inherit(base *options, opts []Option) []Option {
	out := make([]Option, 0, len(opts)+1)
	out = append(out, func(o *options) {
		o.logger = base.logger
		o.observer = base.observer
		o.warningHandler = base.warningHandler
		o.valuesSize = base.valuesSize
		o.propsSize = base.propsSize
		o.expiration = base.expiration
	})
	return append(out, opts...)
}

// Registry 返回会话 Registry。
func (m *Manager) Registry() *xstore.Registry {
	return m.registry
}

// NewConfig 在新的存储会话上创建配置。
func (m *Manager) NewConfig(ctx context.Context, root *xoption.Description, opts ...Option) (*Config, error) {
	return m.newConfig(ctx, root, KindConfig, opts)
}

// NewMixConfig 创建 MixConfig 并加入子配置。子配置不能是 GroupConfig。
func (m *Manager) NewMixConfig(ctx context.Context, root *xoption.Description, children []Member, opts ...Option) (*MixConfig, error) {
	c, err := m.newConfig(ctx, root, KindMix, opts)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, c.mix, children); err != nil {
		return nil, err
	}
	return c.mix, nil
}

// NewMetaConfig 创建 MetaConfig 并加入子配置。root 为 nil 时使用第一个子配置的描述；
// 子配置必须与 MetaConfig 共享同一个描述。
func (m *Manager) NewMetaConfig(ctx context.Context, root *xoption.Description, children []Member, opts ...Option) (*MetaConfig, error) {
	for _, ch := range children {
		c, ok := configOf(ch)
		if !ok {
			return nil, fmt.Errorf("%w: metaconfig's children should be config, not %T", xoption.ErrAPI, ch)
		}
		if root == nil {
			root = c.root
		}
		if c.root != root {
			return nil, fmt.Errorf("%w: all config in metaconfig must have the same optiondescription", xoption.ErrConfig)
		}
	}
	c, err := m.newConfig(ctx, root, KindMeta, opts)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, c.mix, children); err != nil {
		return nil, err
	}
	return c.mix.meta, nil
}

// NewMetaConfigFromSessions 在 sessions 上创建共享 root 的子配置，再创建 MetaConfig。
// 持久会话中已有的数据被保留。
func (m *Manager) NewMetaConfigFromSessions(ctx context.Context, root *xoption.Description, sessions []string, opts ...Option) (*MetaConfig, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: missing option description", xoption.ErrConfig)
	}
	base := m.opts.apply(opts)
	children := make([]Member, 0, len(sessions))
	closeAll := func() error {
		var errs []error
		for _, ch := range children {
			errs = append(errs, ch.(*Config).Close(ctx))
		}
		return errors.Join(errs...)
	}
	for _, id := range sessions {
		childOpts := []Option{WithSession(id)}
		if base.persistent {
			childOpts = append(childOpts, WithPersistent())
		}
		c, err := m.newConfig(ctx, root, KindConfig, inherit(base, childOpts))
		if err != nil {
			return nil, errors.Join(err, closeAll())
		}
		children = append(children, c)
	}
	meta, err := m.NewMetaConfig(ctx, root, children, opts...)
	if err != nil {
		return nil, errors.Join(err, closeAll())
	}
	return meta, nil
}

// NewGroupConfig 创建配置组。name 为空时生成一个。
func (m *Manager) NewGroupConfig(name string, children ...Member) (*GroupConfig, error) {
	if name == "" {
		name = uuid.NewString()
	}
	g := &GroupConfig{name: name, logger: m.opts.logger, observer: m.opts.observer}
	for _, ch := range children {
		if err := g.add(ch); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Sessions 返回存储中的全部会话。
func (m *Manager) Sessions(ctx context.Context) ([]string, error) {
	return m.registry.List(ctx)
}

// DeleteSession 删除一个未打开的会话。
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	return m.registry.Delete(ctx, id)
}

// Close 关闭所有配置，然后关闭 Registry。重复调用返回 nil。
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ids := slices.Sorted(maps.Keys(m.configs))
	configs := make([]*Config, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, m.configs[id])
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range slices.Backward(configs) {
		errs = append(errs, c.Close(ctx))
	}
	errs = append(errs, m.registry.Close(ctx))
	m.opts.logger.Debug(ctx, "manager closed", xlog.Count(int64(len(configs))))
	return errors.Join(errs...)
}

// =============================================================================
// 内部
// =============================================================================

func (m *Manager) newConfig(ctx context.Context, root *xoption.Description, kind Kind, opts []Option) (*Config, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: missing option description", xoption.ErrConfig)
	}
	if err := root.Build(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	o := m.opts.apply(opts)
	st := o.storage
	if st == nil {
		var err error
		if st, err = m.registry.Open(ctx, o.sessionID, o.persistent); err != nil {
			return nil, err
		}
	}
	ch, err := newCache(o.valuesSize, o.propsSize, o.expiration)
	if err != nil {
		return nil, errors.Join(err, st.Close(ctx))
	}
	c := &Config{
		mgr:    m,
		kind:   kind,
		root:   root,
		st:     st,
		opts:   o,
		cache:  ch,
		logger: o.logger,
		rules:  defaultRules(),
	}
	if kind != KindConfig {
		c.mix = &MixConfig{Config: c}
		if kind == KindMeta {
			c.mix.meta = &MetaConfig{MixConfig: c.mix}
		}
	}
	m.register(c)
	if err := c.buildForceStoreValues(ctx); err != nil {
		return nil, errors.Join(err, c.Close(ctx))
	}
	c.logger.Debug(ctx, "config created", c.attrs(xlog.Component(kind.String()))...)
	return c, nil
}

// adopt 把 children 加入新建的 mix，失败时关闭 mix。
func (m *Manager) adopt(ctx context.Context, mix *MixConfig, children []Member) error {
	for _, ch := range children {
		c, ok := configOf(ch)
		if !ok {
			return errors.Join(
				fmt.Errorf("%w: cannot add a groupconfig to a %s", xoption.ErrAPI, mix.kind),
				mix.Close(ctx),
			)
		}
		if err := mix.attach(c); err != nil {
			return errors.Join(err, mix.Close(ctx))
		}
	}
	return nil
}

func (m *Manager) register(c *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.id = m.nextID
	m.configs[c.id] = c
}

// forget 从表中移除 c，之后引用它的子配置不再看到它。
func (m *Manager) forget(c *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, c.id)
}

// resolve 返回仍然存活的父配置，保持 refs 的顺序。
func (m *Manager) resolve(refs []parentRef) []*Config {
	if len(refs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Config, 0, len(refs))
	for _, ref := range refs {
		if c, ok := m.configs[ref.id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Configs 返回存活的配置，按创建顺序。
func (m *Manager) Configs() []*Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.configs))
	slices.SortFunc(out, func(a, b *Config) int { return cmp.Compare(a.id, b.id) })
	return out
}

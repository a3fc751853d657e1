package xstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake/v2"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// IDGenerator 生成会话 ID。
type IDGenerator func() (string, error)

// UUIDGenerator 返回基于 UUIDv4 的生成器（默认）。
func UUIDGenerator() IDGenerator {
	return func() (string, error) {
		return uuid.NewString(), nil
	}
}

// SonyflakeGenerator 返回按时间递增的生成器，ID 为 36 进制。
// machineID 为 nil 时使用 sonyflake 默认规则（私有 IP 低 16 位）。
func SonyflakeGenerator(machineID func() (int, error)) (IDGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{MachineID: machineID})
	if err != nil {
		return nil, fmt.Errorf("%w: sonyflake: %w", ErrInvalidConfig, err)
	}
	return func() (string, error) {
		id, err := sf.NextID()
		if err != nil {
			return "", fmt.Errorf("xstore: generate session id: %w", err)
		}
		return strconv.FormatInt(id, 36), nil
	}, nil
}

type registryOptions struct {
	idGen  IDGenerator
	logger xlog.Logger
	now    func() time.Time
}

// RegistryOption 配置 Registry。
type RegistryOption func(*registryOptions)

// WithIDGenerator 设置会话 ID 生成器。
func WithIDGenerator(gen IDGenerator) RegistryOption {
	return func(o *registryOptions) {
		if gen != nil {
			o.idGen = gen
		}
	}
}

// WithLogger 设置日志。
func WithLogger(logger xlog.Logger) RegistryOption {
	return func(o *registryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Registry 会话注册表：同一会话同一时刻只能被打开一次。
//
// Registry 是并发安全的。
type Registry struct {
	driver Driver
	opts   registryOptions

	mu     sync.Mutex
	open   map[string]*session
	closed bool
}

// NewRegistry 创建注册表，Registry.Close 会关闭 driver。
func NewRegistry(driver Driver, opts ...RegistryOption) *Registry {
	o := registryOptions{
		idGen:  UUIDGenerator(),
		logger: xlog.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Registry{driver: driver, opts: o, open: make(map[string]*session)}
}

// Driver 返回底层驱动。
func (r *Registry) Driver() Driver {
	return r.driver
}

// Open 打开会话。id 为空时自动生成。
//
// 非持久会话打开时清除同名残留数据，关闭时删除数据；持久会话保留已有数据。
func (r *Registry) Open(ctx context.Context, id string, persistent bool) (Storage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if id == "" {
		var err error
		if id, err = r.opts.idGen(); err != nil {
			return nil, err
		}
	}
	if err := ValidSessionID(id); err != nil {
		return nil, err
	}
	if _, busy := r.open[id]; busy {
		return nil, fmt.Errorf("%w: %q", ErrSessionInUse, id)
	}

	s := newSession(id, persistent, r.driver, r.release)
	meta := sessionMeta{}
	found := false
	if persistent {
		var err error
		if found, err = s.load(ctx, keyMeta, &meta); err != nil {
			return nil, err
		}
	} else if err := r.driver.DropSession(ctx, id); err != nil {
		return nil, err
	}
	if !found {
		meta.Created = r.opts.now()
	}
	meta.Persistent = persistent
	if err := s.store(ctx, keyMeta, meta); err != nil {
		return nil, err
	}
	r.open[id] = s
	r.opts.logger.Debug(ctx, "session opened",
		xlog.Session(id), xlog.Backend(r.driver.Name()), xlog.Bool("persistent", persistent))
	return s, nil
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.open, id)
	r.mu.Unlock()
}

// List 返回驱动中的全部会话。
func (r *Registry) List(ctx context.Context) ([]string, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	return r.driver.Sessions(ctx)
}

// OpenSessions 返回当前已打开的会话，已排序。
func (r *Registry) OpenSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.open))
}

// Delete 删除未打开的会话。
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, busy := r.open[id]; busy {
		return fmt.Errorf("%w: %q", ErrSessionInUse, id)
	}
	ids, err := r.driver.Sessions(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, id) {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if err := r.driver.DropSession(ctx, id); err != nil {
		return err
	}
	r.opts.logger.Info(ctx, "session deleted", xlog.Session(id), xlog.Backend(r.driver.Name()))
	return nil
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close 关闭全部已打开的会话，然后关闭驱动。重复调用返回 nil。
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := slices.Collect(maps.Values(r.open))
	r.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error { return s.Close(ctx) })
	}
	return errors.Join(g.Wait(), r.driver.Close())
}

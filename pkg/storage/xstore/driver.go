package xstore

import (
	"context"
	"time"

	"github.com/omeyang/xoption/internal/storageopt"
	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// Driver 是按 (session, key) 寻址的字节存储。
//
// 实现必须是并发安全的。Get 在键不存在时返回 ok == false 且 err == nil。
type Driver interface {
	// Name 返回后端名称（memory、redis、badger、etcd）。
	Name() string
	Get(ctx context.Context, session, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, session, key string, value []byte) error
	Delete(ctx context.Context, session, key string) error
	// Scan 返回 session 内以 prefix 开头的全部键值。
	Scan(ctx context.Context, session, prefix string) (map[string][]byte, error)
	// Sessions 返回有数据的会话，已排序。
	Sessions(ctx context.Context) ([]string, error)
	// DropSession 删除会话的全部数据。
	DropSession(ctx context.Context, session string) error
	Ping(ctx context.Context) error
	Close() error
}

// StatsReporter 由带统计的驱动实现。
type StatsReporter interface {
	Stats() DriverStats
}

// DriverStats 驱动统计快照。
type DriverStats = storageopt.Stats

// SlowOpInfo 慢操作信息。
type SlowOpInfo = storageopt.SlowOpInfo

// =============================================================================
// 驱动选项
// =============================================================================

type driverOptions struct {
	base       storageopt.BaseOptions
	keyPrefix  string
	ownsClient bool
}

// DriverOption 配置驱动。
type DriverOption func(*driverOptions)

func applyDriverOptions(defaultPrefix string, opts []DriverOption) *driverOptions {
	o := &driverOptions{
		base:      storageopt.DefaultBaseOptions(),
		keyPrefix: defaultPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithRetry 设置远程调用的尝试次数与间隔，attempts <= 1 不重试。
func WithRetry(attempts uint, delay time.Duration) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithRetry(attempts, delay)(&o.base)
	}
}

// WithBreaker 设置连续失败 failures 次后熔断，failures 为 0 关闭熔断。
func WithBreaker(failures uint32, openTimeout time.Duration) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithBreaker(failures, openTimeout)(&o.base)
	}
}

// WithObserver 设置观测接口。
func WithObserver(observer xmetrics.Observer) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithObserver(observer)(&o.base)
	}
}

// WithHealthTimeout 设置 Ping 超时。
func WithHealthTimeout(timeout time.Duration) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithHealthTimeout(timeout)(&o.base)
	}
}

// WithSlowOpThreshold 设置慢操作阈值。
func WithSlowOpThreshold(threshold time.Duration) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithSlowOpThreshold(threshold)(&o.base)
	}
}

// WithSlowOpHook 设置慢操作回调。
func WithSlowOpHook(hook func(ctx context.Context, info SlowOpInfo)) DriverOption {
	return func(o *driverOptions) {
		storageopt.WithSlowOpHook(hook)(&o.base)
	}
}

// WithKeyPrefix 设置远程键前缀：redis 为键名前缀，etcd 为根目录。
func WithKeyPrefix(prefix string) DriverOption {
	return func(o *driverOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// withOwnedClient 驱动关闭时一并关闭底层客户端。
func withOwnedClient() DriverOption {
	return func(o *driverOptions) {
		o.ownsClient = true
	}
}

func newGuard(backend string, o *driverOptions) *storageopt.Guard {
	return storageopt.NewGuard(backend, o.base, ErrClosed, ErrCorrupted, ErrInvalidSession)
}

func op(name, session, key string) storageopt.Op {
	return storageopt.Op{Name: name, Session: session, Key: key}
}

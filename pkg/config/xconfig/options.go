package xconfig

import (
	"context"
	"time"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/observability/xmetrics"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// WarningHandler 接收校验告警（warnings_only 校验、demoting_error_warning）。
// 告警不会中断调用流程。
type WarningHandler func(ctx context.Context, w *xoption.ValueOptionError)

// 默认值。
const (
	// DefaultExpiration 带 expire 属性的缓存值有效期。
	DefaultExpiration = 5 * time.Second
	// DefaultValuesCacheSize 值缓存的条目上限（按路径计）。
	DefaultValuesCacheSize = 4096
	// DefaultPropertiesCacheSize 属性缓存的条目上限。
	DefaultPropertiesCacheSize = 16384
)

type options struct {
	sessionID      string
	persistent     bool
	storage        xstore.Storage
	logger         xlog.Logger
	observer       xmetrics.Observer
	warningHandler WarningHandler
	valuesSize     int
	propsSize      int64
	expiration     time.Duration
}

// Option 配置选项。传给 NewManager 时作为该 Manager 创建的所有配置的默认值，
// 传给 NewConfig 等构造函数时只作用于该配置。
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:     xlog.Discard(),
		observer:   xmetrics.NoopObserver{},
		valuesSize: DefaultValuesCacheSize,
		propsSize:  DefaultPropertiesCacheSize,
		expiration: DefaultExpiration,
	}
}

func (o *options) clone() *options {
	cp := *o
	return &cp
}

func (o *options) apply(opts []Option) *options {
	out := o.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	return out
}

// WithSession 指定会话 ID，为空时由 Registry 生成。
func WithSession(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithPersistent 使用持久会话：关闭配置后数据保留，再次打开同名会话时恢复。
func WithPersistent() Option {
	return func(o *options) {
		o.persistent = true
	}
}

// WithStorage 直接使用给定的会话存储，不经过 Registry。
// 关闭配置时会关闭该存储。
func WithStorage(st xstore.Storage) Option {
	return func(o *options) {
		if st != nil {
			o.storage = st
		}
	}
}

// WithLogger 设置日志记录器。nil 被忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置观测器，读写操作会生成跨度。nil 被忽略。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithWarningHandler 设置告警处理函数。告警总会以 warn 级别记录日志。
func WithWarningHandler(h WarningHandler) Option {
	return func(o *options) {
		o.warningHandler = h
	}
}

// WithValuesCacheSize 设置值缓存容量。n <= 0 时忽略。
func WithValuesCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.valuesSize = n
		}
	}
}

// WithPropertiesCacheSize 设置属性缓存容量。n <= 0 时忽略。
func WithPropertiesCacheSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.propsSize = n
		}
	}
}

// WithExpiration 设置 expire 缓存有效期。d <= 0 时忽略。
func WithExpiration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.expiration = d
		}
	}
}

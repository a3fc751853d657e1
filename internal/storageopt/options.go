package storageopt

import (
	"context"
	"time"

	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// SlowOpInfo 慢操作信息。
type SlowOpInfo struct {
	Backend   string
	Operation string
	Session   string
	Key       string
	Duration  time.Duration
}

// SlowOpHook 慢操作回调，在请求路径上同步执行，应保持在微秒级。
type SlowOpHook func(ctx context.Context, info SlowOpInfo)

// RetryPolicy 远程驱动的重试策略。
type RetryPolicy struct {
	// Attempts 总尝试次数（包含首次），<= 1 表示不重试。
	Attempts uint
	// Delay 两次尝试之间的固定间隔。
	Delay time.Duration
}

// BreakerPolicy 远程驱动的熔断策略。
type BreakerPolicy struct {
	// ConsecutiveFailures 连续失败多少次后熔断，0 表示不启用熔断。
	ConsecutiveFailures uint32
	// OpenTimeout 熔断后多久进入半开状态。
	OpenTimeout time.Duration
	// OnStateChange 状态变化回调，可为 nil。
	OnStateChange func(name string, from, to string)
}

// BaseOptions 驱动通用配置。
type BaseOptions struct {
	// HealthTimeout 健康检查超时时间，默认 5 秒。
	HealthTimeout time.Duration

	// SlowOpThreshold 慢操作阈值，为 0 时禁用慢操作检测。
	SlowOpThreshold time.Duration

	// SlowOpHook 慢操作回调。
	SlowOpHook SlowOpHook

	// Observer 统一观测接口（metrics/tracing）。
	Observer xmetrics.Observer

	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// Option 配置 BaseOptions 的函数类型。
type Option func(*BaseOptions)

// 默认值。
const (
	DefaultRetryAttempts       = 3
	DefaultRetryDelay          = 50 * time.Millisecond
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenDuration = 10 * time.Second
)

// DefaultBaseOptions 返回默认配置。
func DefaultBaseOptions() BaseOptions {
	return BaseOptions{
		HealthTimeout: DefaultHealthTimeout,
		Observer:      xmetrics.NoopObserver{},
		Retry: RetryPolicy{
			Attempts: DefaultRetryAttempts,
			Delay:    DefaultRetryDelay,
		},
		Breaker: BreakerPolicy{
			ConsecutiveFailures: DefaultBreakerFailures,
			OpenTimeout:         DefaultBreakerOpenDuration,
		},
	}
}

// Apply 依次应用 opts，忽略 nil。
func Apply(opts ...Option) BaseOptions {
	o := DefaultBaseOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithHealthTimeout 设置健康检查超时时间。
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *BaseOptions) {
		if timeout > 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithSlowOpThreshold 设置慢操作阈值，0 禁用。
func WithSlowOpThreshold(threshold time.Duration) Option {
	return func(o *BaseOptions) {
		o.SlowOpThreshold = threshold
	}
}

// WithSlowOpHook 设置慢操作回调。
func WithSlowOpHook(hook SlowOpHook) Option {
	return func(o *BaseOptions) {
		o.SlowOpHook = hook
	}
}

// WithObserver 设置统一观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *BaseOptions) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithRetry 设置重试次数与间隔。
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *BaseOptions) {
		o.Retry = RetryPolicy{Attempts: attempts, Delay: delay}
	}
}

// WithBreaker 设置熔断策略，failures 为 0 时关闭熔断。
func WithBreaker(failures uint32, openTimeout time.Duration) Option {
	return func(o *BaseOptions) {
		o.Breaker.ConsecutiveFailures = failures
		if openTimeout > 0 {
			o.Breaker.OpenTimeout = openTimeout
		}
	}
}

// WithBreakerStateChange 设置熔断状态变化回调。
func WithBreakerStateChange(fn func(name, from, to string)) Option {
	return func(o *BaseOptions) {
		o.Breaker.OnStateChange = fn
	}
}

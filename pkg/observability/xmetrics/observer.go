package xmetrics

import (
	"context"
	"fmt"
)

// Kind 跨度类型。
type Kind uint8

const (
	// KindInternal 进程内操作，如配置提交与批量扇出。
	KindInternal Kind = iota
	// KindServer 对外提供的操作，如命令行子命令。
	KindServer
	// KindClient 对存储后端的调用。
	KindClient
)

var kindNames = [...]string{"Internal", "Server", "Client"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status 操作结果。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// SpanOptions 描述一次被观测的操作。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 跨度结束时的结果。
type Result struct {
	// Status 为空时按 Err 推导。
	Status Status
	Err    error
	Attrs  []Attr
}

func (r Result) outcome() Status {
	switch {
	case r.Status != "":
		return r.Status
	case r.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Span 一次观测跨度。
type Span interface {
	End(result Result)
}

// Observer 组件依赖的观测接口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不做任何记录。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 空跨度。
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 用 observer 开始观测，保证返回的 context 与 Span 非 nil。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		return next, NoopSpan{}
	}
	return next, span
}

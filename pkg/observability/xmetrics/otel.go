package xmetrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// 指标名与属性键。
const (
	MetricOperations = "xoption.operations"
	MetricLatency    = "xoption.operation.latency"
	MetricActive     = "xoption.operations.active"

	AttrComponent = "xoption.component"
	AttrOperation = "xoption.operation"
	AttrOutcome   = "xoption.outcome"

	scopeName = "github.com/omeyang/xoption/xmetrics"
	unnamed   = "unnamed"
)

// 配置操作多在进程内完成，存储调用在毫秒到秒级，边界覆盖两者。
var latencyBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

type otelSettings struct {
	scope  string
	tracer trace.TracerProvider
	meter  metric.MeterProvider
}

// Option 配置 OTel Observer。
type Option func(*otelSettings)

// WithScope 设置 instrumentation scope 名称，空字符串忽略。
func WithScope(name string) Option {
	return func(s *otelSettings) {
		if name != "" {
			s.scope = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，nil 忽略。
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(s *otelSettings) {
		if p != nil {
			s.tracer = p
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 忽略。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(s *otelSettings) {
		if p != nil {
			s.meter = p
		}
	}
}

type instruments struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
	active     metric.Int64UpDownCounter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	ops, err := m.Int64Counter(MetricOperations,
		metric.WithDescription("config and storage operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricOperations, err)
	}
	lat, err := m.Float64Histogram(MetricLatency,
		metric.WithDescription("operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricLatency, err)
	}
	act, err := m.Int64UpDownCounter(MetricActive,
		metric.WithDescription("operations in flight"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricActive, err)
	}
	return &instruments{operations: ops, latency: lat, active: act}, nil
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer，默认使用全局 provider。
func NewOTelObserver(opts ...Option) (Observer, error) {
	s := otelSettings{
		scope:  scopeName,
		tracer: otel.GetTracerProvider(),
		meter:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	inst, err := newInstruments(s.meter.Meter(s.scope))
	if err != nil {
		return nil, err
	}
	return &otelObserver{tracer: s.tracer.Tracer(s.scope), inst: inst}, nil
}

type otelObserver struct {
	tracer trace.Tracer
	inst   *instruments
}

var spanKinds = map[Kind]trace.SpanKind{
	KindInternal: trace.SpanKindInternal,
	KindServer:   trace.SpanKindServer,
	KindClient:   trace.SpanKindClient,
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	base := []attribute.KeyValue{
		attribute.String(AttrComponent, orUnnamed(opts.Component)),
		attribute.String(AttrOperation, orUnnamed(opts.Operation)),
	}
	kind, ok := spanKinds[opts.Kind]
	if !ok {
		kind = trace.SpanKindInternal
	}

	ctx, span := o.tracer.Start(ctx, orUnnamed(opts.Operation),
		trace.WithSpanKind(kind),
		trace.WithAttributes(base...),
		trace.WithAttributes(convertAttrs(opts.Attrs)...),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = xlog.ContextWith(ctx,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	// 指标 context 与调用方取消解耦。
	mctx := context.WithoutCancel(ctx)
	o.inst.active.Add(mctx, 1, metric.WithAttributes(base...))
	return ctx, &otelSpan{
		span:    span,
		inst:    o.inst,
		mctx:    mctx,
		base:    base,
		started: time.Now(),
	}
}

type otelSpan struct {
	span    trace.Span
	inst    *instruments
	mctx    context.Context
	base    []attribute.KeyValue
	started time.Time
	once    sync.Once
}

// End 结束跨度，重复调用无效。
func (s *otelSpan) End(result Result) {
	s.once.Do(func() { s.finish(result) })
}

func (s *otelSpan) finish(result Result) {
	outcome := result.outcome()
	if result.Err != nil {
		s.span.RecordError(result.Err)
	}
	if outcome == StatusError {
		desc := "operation failed"
		if result.Err != nil {
			desc = result.Err.Error()
		}
		s.span.SetStatus(codes.Error, desc)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.SetAttributes(convertAttrs(result.Attrs)...)
	s.span.End()

	set := metric.WithAttributes(append(s.base[:len(s.base):len(s.base)],
		attribute.String(AttrOutcome, string(outcome)))...)
	s.inst.active.Add(s.mctx, -1, metric.WithAttributes(s.base...))
	s.inst.operations.Add(s.mctx, 1, set)
	s.inst.latency.Record(s.mctx, time.Since(s.started).Seconds(), set)
}

func orUnnamed(s string) string {
	if s == "" {
		return unnamed
	}
	return s
}

func convertAttrs(attrs []Attr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if kv, ok := a.keyValue(); ok {
			out = append(out, kv)
		}
	}
	return out
}

// keyValue 转换为 OTel 属性，空键与 nil 值丢弃。
func (a Attr) keyValue() (attribute.KeyValue, bool) {
	if a.Key == "" || a.Value == nil {
		return attribute.KeyValue{}, false
	}
	k := attribute.Key(a.Key)
	switch v := a.Value.(type) {
	case string:
		return k.String(v), true
	case bool:
		return k.Bool(v), true
	case int:
		return k.Int(v), true
	case int64:
		return k.Int64(v), true
	case float64:
		return k.Float64(v), true
	case []string:
		return k.StringSlice(v), true
	case time.Duration:
		return k.String(v.String()), true
	case fmt.Stringer:
		return k.String(v.String()), true
	default:
		return k.String(fmt.Sprint(v)), true
	}
}

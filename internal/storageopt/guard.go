package storageopt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// ErrCircuitOpen 熔断器打开，调用未执行。
var ErrCircuitOpen = errors.New("storageopt: circuit open")

// Op 描述一次驱动调用，用于观测与慢操作回调。
type Op struct {
	Name    string
	Session string
	Key     string
}

// Guard 是驱动调用的统一入口：观测 → 重试 → 熔断 → 实际调用。
//
// Guard 是并发安全的。
type Guard struct {
	backend   string
	opts      BaseOptions
	breaker   *gobreaker.CircuitBreaker[any]
	slow      *SlowOpDetector
	permanent []error
	counters  counters
}

// NewGuard 创建 Guard。permanent 中的错误（errors.Is 匹配）不重试，也不计入熔断失败。
func NewGuard(backend string, opts BaseOptions, permanent ...error) *Guard {
	if opts.Observer == nil {
		opts.Observer = xmetrics.NoopObserver{}
	}
	g := &Guard{
		backend:   backend,
		opts:      opts,
		slow:      NewSlowOpDetector(opts.SlowOpThreshold, opts.SlowOpHook),
		permanent: permanent,
	}
	if opts.Breaker.ConsecutiveFailures > 0 {
		g.breaker = gobreaker.NewCircuitBreaker[any](g.breakerSettings())
	}
	return g
}

func (g *Guard) breakerSettings() gobreaker.Settings {
	threshold := g.opts.Breaker.ConsecutiveFailures
	st := gobreaker.Settings{
		Name:        "xstore." + g.backend,
		MaxRequests: 1,
		Timeout:     g.opts.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || g.isPermanent(err)
		},
	}
	if fn := g.opts.Breaker.OnStateChange; fn != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			fn(name, from.String(), to.String())
		}
	}
	return st
}

func (g *Guard) isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, p := range g.permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// Backend 返回驱动名。
func (g *Guard) Backend() string {
	return g.backend
}

// Options 返回生效的配置。
func (g *Guard) Options() BaseOptions {
	return g.opts
}

// Do 执行一次受保护的驱动调用。
func (g *Guard) Do(ctx context.Context, op Op, fn func(ctx context.Context) error) (err error) {
	ctx, span := xmetrics.Start(ctx, g.opts.Observer, xmetrics.SpanOptions{
		Component: "xstore." + g.backend,
		Operation: op.Name,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("session", op.Session)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	start := time.Now()
	err = g.run(ctx, fn)
	g.slow.MaybeSlowOp(ctx, SlowOpInfo{
		Backend:   g.backend,
		Operation: op.Name,
		Session:   op.Session,
		Key:       op.Key,
		Duration:  time.Since(start),
	})
	g.counters.call(err)
	return err
}

func (g *Guard) run(ctx context.Context, fn func(ctx context.Context) error) error {
	call := func() error {
		if g.breaker == nil {
			return fn(ctx)
		}
		_, err := g.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %w", ErrCircuitOpen, g.backend, err)
		}
		return err
	}
	if g.opts.Retry.Attempts <= 1 {
		return call()
	}
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(g.opts.Retry.Attempts),
		retry.Delay(g.opts.Retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) && !g.isPermanent(err)
		}),
	).Do(call)
}

// Ping 执行健康检查：带超时、不重试、不经过熔断。
func (g *Guard) Ping(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := HealthContext(ctx, g.opts.HealthTimeout)
	defer cancel()
	err := fn(ctx)
	g.counters.ping(err)
	return err
}

// Stats 返回统计快照。
func (g *Guard) Stats() Stats {
	s := g.counters.snapshot()
	s.SlowOps = g.slow.Count()
	if g.breaker != nil {
		s.Breaker = g.breaker.State().String()
	}
	return s
}

package storageopt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastOptions(opts ...Option) BaseOptions {
	base := []Option{WithRetry(3, time.Millisecond), WithBreaker(0, 0)}
	return Apply(append(base, opts...)...)
}

func TestGuard_RetriesTransientErrors(t *testing.T) {
	g := NewGuard("test", fastOptions())
	var calls atomic.Int32

	err := g.Do(context.Background(), Op{Name: "get"}, func(context.Context) error {
		if calls.Add(1) < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	stats := g.Stats()
	assert.Equal(t, int64(1), stats.Ops)
	assert.Equal(t, int64(0), stats.Errors)
	assert.Empty(t, stats.Breaker)
}

func TestGuard_ReturnsLastError(t *testing.T) {
	g := NewGuard("test", fastOptions())
	var calls atomic.Int32

	err := g.Do(context.Background(), Op{Name: "put"}, func(context.Context) error {
		calls.Add(1)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), g.Stats().Errors)
}

func TestGuard_PermanentErrorNotRetried(t *testing.T) {
	errClosed := errors.New("closed")
	g := NewGuard("test", fastOptions(), errClosed)
	var calls atomic.Int32

	err := g.Do(context.Background(), Op{Name: "get"}, func(context.Context) error {
		calls.Add(1)
		return errClosed
	})
	assert.ErrorIs(t, err, errClosed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuard_NoRetry(t *testing.T) {
	g := NewGuard("test", Apply(WithRetry(1, 0), WithBreaker(0, 0)))
	var calls atomic.Int32

	err := g.Do(context.Background(), Op{Name: "get"}, func(context.Context) error {
		calls.Add(1)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuard_BreakerOpens(t *testing.T) {
	var transitions []string
	g := NewGuard("test", Apply(
		WithRetry(1, 0),
		WithBreaker(2, time.Hour),
		WithBreakerStateChange(func(_, from, to string) {
			transitions = append(transitions, from+"->"+to)
		}),
	))
	var calls atomic.Int32
	fail := func(context.Context) error {
		calls.Add(1)
		return errBoom
	}

	assert.ErrorIs(t, g.Do(context.Background(), Op{Name: "get"}, fail), errBoom)
	assert.ErrorIs(t, g.Do(context.Background(), Op{Name: "get"}, fail), errBoom)

	err := g.Do(context.Background(), Op{Name: "get"}, fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", g.Stats().Breaker)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestGuard_SlowOpHook(t *testing.T) {
	var got SlowOpInfo
	g := NewGuard("test", fastOptions(
		WithSlowOpThreshold(time.Nanosecond),
		WithSlowOpHook(func(_ context.Context, info SlowOpInfo) { got = info }),
	))

	err := g.Do(context.Background(), Op{Name: "scan", Session: "s1", Key: "v/"}, func(context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "test", got.Backend)
	assert.Equal(t, "scan", got.Operation)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, int64(1), g.Stats().SlowOps)
}

func TestGuard_Ping(t *testing.T) {
	g := NewGuard("test", Apply(WithHealthTimeout(time.Second)))

	require.NoError(t, g.Ping(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}))
	assert.ErrorIs(t, g.Ping(context.Background(), func(context.Context) error { return errBoom }), errBoom)

	stats := g.Stats()
	assert.Equal(t, int64(2), stats.Pings)
	assert.Equal(t, int64(1), stats.PingErrors)
}

func TestSlowOpDetector_Disabled(t *testing.T) {
	d := NewSlowOpDetector(0, func(context.Context, SlowOpInfo) { t.Fatal("hook called") })
	assert.False(t, d.MaybeSlowOp(context.Background(), SlowOpInfo{Duration: time.Hour}))

	var nilDetector *SlowOpDetector
	assert.False(t, nilDetector.MaybeSlowOp(context.Background(), SlowOpInfo{Duration: time.Hour}))
	assert.Zero(t, nilDetector.Count())
}

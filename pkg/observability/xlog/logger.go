package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

var _ LoggerWithLevel = (*xlogger)(nil)

// 调用栈缓冲上限。
const stackLimit = 64 << 10

// core 由同一次 Build 派生的所有 Logger 共享。
type core struct {
	level     *slog.LevelVar
	addSource bool
	onError   func(error)
	failures  atomic.Uint64
	reporting atomic.Bool
}

func newCore(level *slog.LevelVar, addSource bool, onError func(error)) *core {
	return &core{level: level, addSource: addSource, onError: onError}
}

// report 记录一次 Handler 失败并回调 onError。回调中的失败不再回调，回调 panic 计为一次失败。
func (c *core) report(err error) {
	c.failures.Add(1)
	if c.onError == nil || !c.reporting.CompareAndSwap(false, true) {
		return
	}
	defer c.reporting.Store(false)
	defer func() {
		if recover() != nil {
			c.failures.Add(1)
		}
	}()
	c.onError(err)
}

type xlogger struct {
	handler slog.Handler
	*core
}

// emit 写入一条记录。skip 为 emit 之上到业务调用方的帧数。
//
//go:noinline
func (l *xlogger) emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr, skip int) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pc uintptr
	if l.addSource {
		var pcs [1]uintptr
		// runtime.Callers 与 emit 自身各占一帧。
		runtime.Callers(2+skip, pcs[:])
		pc = pcs[0]
	}
	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	if err := l.handler.Handle(ctx, r); err != nil {
		l.report(err)
	}
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelDebug, msg, attrs, 1)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelInfo, msg, attrs, 1)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelWarn, msg, attrs, 1)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelError, msg, attrs, 1)
}

func (l *xlogger) Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.stack(ctx, msg, attrs, 2)
}

//go:noinline
func (l *xlogger) stack(ctx context.Context, msg string, attrs []slog.Attr, skip int) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, slog.LevelError) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, slog.String(KeyStack, currentStack()))
	l.emit(ctx, slog.LevelError, msg, all, skip)
}

// currentStack 返回当前 goroutine 的调用栈，超过 stackLimit 时截断。
func currentStack() string {
	buf := make([]byte, 4<<10)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) || len(buf) >= stackLimit {
			return string(buf[:n])
		}
		buf = make([]byte, min(2*len(buf), stackLimit))
	}
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return &xlogger{handler: l.handler.WithAttrs(attrs), core: l.core}
}

func (l *xlogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return &xlogger{handler: l.handler.WithGroup(name), core: l.core}
}

func (l *xlogger) SetLevel(level Level) { l.level.Set(slog.Level(level)) }

func (l *xlogger) GetLevel() Level { return Level(l.level.Level()) }

func (l *xlogger) Enabled(ctx context.Context, level Level) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.handler.Enabled(ctx, slog.Level(level))
}

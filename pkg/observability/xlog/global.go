package xlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// 全局 Logger 供命令行入口使用，库代码通过选项注入 Logger。
var (
	global   atomic.Pointer[LoggerWithLevel]
	globalMu sync.Mutex
)

// Default 返回全局 Logger，未设置时按 New() 的默认配置创建一次。
func Default() LoggerWithLevel {
	if l := global.Load(); l != nil {
		return *l
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if l := global.Load(); l != nil {
		return *l
	}
	l, _, err := newBuilder().Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "xlog: default logger: %v, falling back to text on stderr\n", err)
		level := new(slog.LevelVar)
		l = &xlogger{handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}), core: newCore(level, false, nil)}
	}
	global.Store(&l)
	return l
}

// SetDefault 替换全局 Logger，nil 忽略。
func SetDefault(l LoggerWithLevel) {
	if l != nil {
		global.Store(&l)
	}
}

// ResetDefault 清除全局 Logger，下次 Default 重新创建。
func ResetDefault() {
	global.Store(nil)
}

// logDefault 的调用链比方法调用多一帧。
func logDefault(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if xl, ok := Default().(*xlogger); ok {
		xl.emit(ctx, level, msg, attrs, 2)
		return
	}
	l := Default()
	switch {
	case level < slog.LevelInfo:
		l.Debug(ctx, msg, attrs...)
	case level < slog.LevelWarn:
		l.Info(ctx, msg, attrs...)
	case level < slog.LevelError:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, slog.LevelDebug, msg, attrs)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, slog.LevelInfo, msg, attrs)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, slog.LevelWarn, msg, attrs)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, slog.LevelError, msg, attrs)
}

// Stack 以全局 Logger 记录带调用栈的 Error 日志。
func Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	if xl, ok := Default().(*xlogger); ok {
		xl.stack(ctx, msg, attrs, 2)
		return
	}
	Default().Stack(ctx, msg, attrs...)
}

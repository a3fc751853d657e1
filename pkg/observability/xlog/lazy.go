package xlog

import "log/slog"

// lazy 在 Handler 真正输出时才调用 fn。
type lazy[T any] func() T

func (f lazy[T]) LogValue() slog.Value {
	return slog.AnyValue(f())
}

// Lazy 返回延迟求值的属性，用于 Debug 日志中需要遍历选项树的参数。
func Lazy(key string, fn func() any) slog.Attr {
	if fn == nil {
		return slog.Any(key, nil)
	}
	return slog.Any(key, lazy[any](fn))
}

// LazyString 与 Lazy 相同，结果为字符串。
func LazyString(key string, fn func() string) slog.Attr {
	if fn == nil {
		return slog.String(key, "")
	}
	return slog.Any(key, lazy[string](fn))
}

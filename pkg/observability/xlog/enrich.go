package xlog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ErrNilHandler NewEnrichHandler 的 base 为 nil。
var ErrNilHandler = errors.New("xlog: base handler is nil")

type ctxAttrsKey struct{}

// ContextWith 返回携带日志属性的 context，后写入的同名属性覆盖先写入的。
//
//	ctx = xlog.ContextWith(ctx, xlog.Session(id), xlog.Config("prod"))
//	logger.Info(ctx, "loaded") // 自动带上 session 与 config
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	merged := slices.Clone(ContextAttrs(ctx))
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		if i := slices.IndexFunc(merged, func(m slog.Attr) bool { return m.Key == a.Key }); i >= 0 {
			merged[i] = a
			continue
		}
		merged = append(merged, a)
	}
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

// ContextAttrs 返回 ctx 中的日志属性，调用方不应修改返回值。
func ContextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

// EnrichHandler 在输出前注入 ContextWith 放入的属性。
//
// 对 EnrichHandler 调用 WithGroup 后，注入的属性也会归入该分组。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 包装 base。
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 按 slog 约定先 Clone 再追加属性。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := ContextAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}

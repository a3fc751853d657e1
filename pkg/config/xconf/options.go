package xconf

import "github.com/omeyang/xoption/pkg/observability/xlog"

// Options 文档加载选项。
type Options struct {
	// Delim 键分隔符，默认为 "."，与选项路径的分隔符一致。
	Delim string

	// Tag Unmarshal 使用的结构体标签，默认为 "koanf"。
	Tag string
}

// Option 文档加载选项函数。
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithDelim 设置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		o.Delim = delim
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		o.Tag = tag
	}
}

// ApplyOption 控制 Apply。
type ApplyOption func(*applyOptions)

type applyOptions struct {
	strict bool
	prefix string
	logger xlog.Logger
}

func defaultApplyOptions() *applyOptions {
	return &applyOptions{logger: xlog.Discard()}
}

// Strict 文档中的键在配置里不存在时返回 ErrUnknownKey，默认跳过并记录。
func Strict() ApplyOption {
	return func(o *applyOptions) {
		o.strict = true
	}
}

// WithPrefix 只应用文档中 prefix 下的键，去掉前缀后作为选项路径。
func WithPrefix(prefix string) ApplyOption {
	return func(o *applyOptions) {
		o.prefix = prefix
	}
}

// WithLogger 设置日志记录器。nil 被忽略。
func WithLogger(l xlog.Logger) ApplyOption {
	return func(o *applyOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

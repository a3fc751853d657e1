package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ReplaceAttrFunc 输出前替换属性，返回空 Key 的属性会被移除。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// 轮转默认值与上限。
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30

	maxSizeMB  = 10 * 1024
	maxBackups = 1024
	maxAgeDays = 3650
)

// 轮转配置错误。
var (
	ErrEmptyFilename   = errors.New("xlog: rotation filename is empty")
	ErrInvalidRotation = errors.New("xlog: invalid rotation")
)

// Rotation 文件轮转配置，零值字段使用默认值。
type Rotation struct {
	Filename   string `koanf:"filename" json:"filename" yaml:"filename"`
	MaxSizeMB  int    `koanf:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `koanf:"compress" json:"compress" yaml:"compress"`
	LocalTime  bool   `koanf:"local_time" json:"local_time" yaml:"local_time"`
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB == 0 {
		r.MaxSizeMB = DefaultMaxSizeMB
	}
	if r.MaxBackups == 0 && r.MaxAgeDays == 0 {
		r.MaxBackups = DefaultMaxBackups
		r.MaxAgeDays = DefaultMaxAgeDays
	}
	return r
}

// Validate 检查轮转配置。
func (r Rotation) Validate() error {
	if strings.TrimSpace(r.Filename) == "" {
		return ErrEmptyFilename
	}
	switch {
	case r.MaxSizeMB < 0 || r.MaxSizeMB > maxSizeMB:
		return fmt.Errorf("%w: max size %d, want 1~%d", ErrInvalidRotation, r.MaxSizeMB, maxSizeMB)
	case r.MaxBackups < 0 || r.MaxBackups > maxBackups:
		return fmt.Errorf("%w: max backups %d, want 0~%d", ErrInvalidRotation, r.MaxBackups, maxBackups)
	case r.MaxAgeDays < 0 || r.MaxAgeDays > maxAgeDays:
		return fmt.Errorf("%w: max age %d, want 0~%d", ErrInvalidRotation, r.MaxAgeDays, maxAgeDays)
	}
	return nil
}

// Builder 日志构建器。遇到第一个配置错误后，Build 返回该错误。
type Builder struct {
	output       io.Writer
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	replaceAttr  ReplaceAttrFunc
	attrs        []slog.Attr
	rotator      *lumberjack.Logger
	onError      func(error)
	err          error
}

var newBuilder = New

// New 创建构建器：stderr、Info、text，启用 context 属性注入。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:       os.Stderr,
		levelVar:     levelVar,
		format:       "text",
		enableEnrich: true,
	}
}

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		return b.setErr(errors.New("xlog: nil output"))
	}
	b.output = w
	return b
}

func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		return b.setErr(err)
	}
	return b.SetLevel(level)
}

// SetFormat text 或 json，空字符串视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		return b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否注入 ContextWith 放入的属性，默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// SetRotation 输出到按大小轮转的文件，父目录不存在时创建。
func (b *Builder) SetRotation(r Rotation) *Builder {
	r = r.withDefaults()
	if err := r.Validate(); err != nil {
		return b.setErr(err)
	}
	path := filepath.Clean(r.Filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return b.setErr(fmt.Errorf("xlog: create log dir: %w", err))
	}
	b.rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
		LocalTime:  r.LocalTime,
	}
	b.output = b.rotator
	return b
}

// SetOnError 设置 Handler 写入失败时的回调。回调同步执行，应保持轻量。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// SetAttrs 每条日志都带的固定属性（如进程名、实例）。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// Build 返回 Logger 与清理函数，清理函数关闭轮转文件，可重复调用。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if b.enableEnrich {
		handler = &EnrichHandler{base: handler}
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	logger := &xlogger{handler: handler, core: newCore(b.levelVar, b.addSource, b.onError)}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return logger, cleanup, nil
}

// Discard 返回丢弃所有输出的 Logger。
func Discard() LoggerWithLevel {
	level := new(slog.LevelVar)
	level.Set(slog.LevelError + 1)
	return &xlogger{handler: slog.DiscardHandler, core: newCore(level, false, nil)}
}

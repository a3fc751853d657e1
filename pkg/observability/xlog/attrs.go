package xlog

import (
	"log/slog"
	"time"
)

// 常用字段名。
const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyPath       = "path"
	KeyIndex      = "index"
	KeyOwner      = "owner"
	KeyProperties = "properties"
	KeySession    = "session"
	KeyBackend    = "backend"
	KeyConfig     = "config"
)

// Err 错误属性，err 为 nil 时返回空属性（slog 会忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 以 "1.5s" 形式输出耗时。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Path 选项路径，空路径记为 "<root>"。
func Path(p string) slog.Attr {
	if p == "" {
		p = "<root>"
	}
	return slog.String(KeyPath, p)
}

// Index follower 下标，负数（无下标）返回空属性。
func Index(i int) slog.Attr {
	if i < 0 {
		return slog.Attr{}
	}
	return slog.Int(KeyIndex, i)
}

// Owner 值的所有者。
func Owner[T ~string](owner T) slog.Attr {
	return slog.String(KeyOwner, string(owner))
}

// Properties 属性集合。
func Properties(props []string) slog.Attr {
	return slog.Any(KeyProperties, props)
}

// Session 存储会话 ID。
func Session(id string) slog.Attr {
	return slog.String(KeySession, id)
}

// Backend 存储后端名称。
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// Config 配置名称。
func Config(name string) slog.Attr {
	return slog.String(KeyConfig, name)
}

func Bool(key string, v bool) slog.Attr {
	return slog.Bool(key, v)
}

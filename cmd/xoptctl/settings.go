package main

import (
	"io"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xconf"
	"github.com/omeyang/xoption/pkg/observability/xlog"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// settings xoptctl 的设置文件。
type settings struct {
	Storage xstore.Config `koanf:"storage"`
	Log     logSettings   `koanf:"log"`
}

type logSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时写入按大小轮转的文件。
	File string `koanf:"file"`
}

// loadSettings 合并默认值、设置文件、环境变量与命令行。
func loadSettings(path, backend, level string) (*settings, error) {
	s := &settings{
		Storage: xstore.Config{Backend: xstore.BackendMemory},
		Log:     logSettings{Level: "warn", Format: "text"},
	}
	if path != "" {
		doc, err := xconf.New(path)
		if err != nil {
			return nil, err
		}
		if err := doc.Unmarshal("", s); err != nil {
			return nil, err
		}
	}
	s.Storage.MergeEnv()
	if backend != "" {
		s.Storage.Backend = strings.ToLower(strings.TrimSpace(backend))
	}
	if level != "" {
		s.Log.Level = level
	}
	return s, nil
}

// logger 构建日志记录器，返回的函数关闭日志输出。
func (s *settings) logger(stderr io.Writer) (xlog.Logger, func() error, error) {
	b := xlog.New().
		SetLevelString(s.Log.Level).
		SetFormat(s.Log.Format)
	if s.Log.File != "" {
		b = b.SetRotation(xlog.Rotation{Filename: s.Log.File})
	} else {
		b = b.SetOutput(stderr)
	}
	l, closeFn, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return l, closeFn, nil
}

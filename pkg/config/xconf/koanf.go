package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

var parsers = map[Format]func() koanf.Parser{
	FormatYAML: func() koanf.Parser { return yaml.Parser() },
	FormatJSON: func() koanf.Parser { return json.Parser() },
}

var extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
}

type koanfDocument struct {
	k      atomic.Pointer[koanf.Koanf]
	path   string
	format Format
	opts   Options
}

// New 读取并解析 path，格式由扩展名 .yaml、.yml 或 .json 决定。
func New(path string, opts ...Option) (Document, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	d := newDocument(path, format, opts)
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewFromBytes 解析内存中的文档，空数据得到空文档。
func NewFromBytes(data []byte, format Format, opts ...Option) (Document, error) {
	if _, ok := parsers[format]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	d := newDocument("", format, opts)
	k, err := d.parse(data)
	if err != nil {
		return nil, err
	}
	d.k.Store(k)
	return d, nil
}

func newDocument(path string, format Format, opts []Option) *koanfDocument {
	d := &koanfDocument{path: path, format: format, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

func (d *koanfDocument) parse(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(d.opts.Delim)
	if len(data) == 0 {
		return k, nil
	}
	if err := k.Load(rawbytes.Provider(data), parsers[d.format]()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return k, nil
}

func (d *koanfDocument) Client() *koanf.Koanf { return d.k.Load() }

func (d *koanfDocument) Values() map[string]any { return d.Client().All() }

func (d *koanfDocument) Unmarshal(path string, target any) error {
	if err := d.Client().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: d.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 解析成功后整体替换，失败时保留原内容。
func (d *koanfDocument) Reload() error {
	if d.path == "" {
		return ErrNotFromFile
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := d.parse(data)
	if err != nil {
		return err
	}
	d.k.Store(k)
	return nil
}

func (d *koanfDocument) Path() string { return d.path }

func (d *koanfDocument) Format() Format { return d.format }

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
}

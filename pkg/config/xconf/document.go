package xconf

import "github.com/knadh/koanf/v2"

// Format 文档格式。
type Format string

// 支持的文档格式。
const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式，与 Dict 导出的形式一致。
	FormatJSON Format = "json"
)

// Document 一份已解析的选项值文档。
//
// 文档按分隔符展平，每个叶子的键是选项路径，值是选项值。
type Document interface {
	// Client 返回底层的 koanf 实例。
	Client() *koanf.Koanf

	// Values 返回展平后的键值，键为选项路径。
	Values() map[string]any

	// Unmarshal 将 path 下的内容反序列化到 target，path 为空时反序列化整个文档。
	Unmarshal(path string, target any) error

	// Reload 重新读取文件。并发安全。
	// 从字节数据创建的文档返回 ErrNotFromFile。
	Reload() error

	// Path 返回文件路径，从字节数据创建时为空。
	Path() string

	// Format 返回文档格式。
	Format() Format
}

// MustUnmarshal 与 Document.Unmarshal 相同，失败时 panic。
// 用于启动阶段必须成功的配置加载。
func MustUnmarshal(doc Document, path string, target any) {
	if err := doc.Unmarshal(path, target); err != nil {
		panic(err)
	}
}

package xconf

import "errors"

// 文档加载与应用相关错误。
var (
	// ErrEmptyPath 文档路径为空。
	ErrEmptyPath = errors.New("xconf: empty document path")

	// ErrUnsupportedFormat 不支持的文档格式。
	ErrUnsupportedFormat = errors.New("xconf: unsupported document format")

	// ErrLoadFailed 读取文档失败。
	ErrLoadFailed = errors.New("xconf: failed to load document")

	// ErrParseFailed 解析文档失败。
	ErrParseFailed = errors.New("xconf: failed to parse document")

	// ErrUnmarshalFailed 反序列化失败。
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal document")

	// ErrNotFromFile 文档不是从文件加载的，无法重载或监视。
	ErrNotFromFile = errors.New("xconf: document not loaded from a file")

	// ErrUnknownKey 严格模式下文档中存在配置没有的选项。
	ErrUnknownKey = errors.New("xconf: unknown option in document")
)

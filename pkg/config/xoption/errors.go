package xoption

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// =============================================================================
// 哨兵错误
// =============================================================================

var (
	// ErrValue 值未通过选项校验，由 *ValueOptionError 包装。
	ErrValue = errors.New("xoption: invalid value")

	// ErrProperties 属性禁止当前读写，由 *PropertiesOptionError 包装。
	ErrProperties = errors.New("xoption: property error")

	// ErrLeadership leader/follower 长度不变量被破坏。
	ErrLeadership = errors.New("xoption: leadership error")

	// ErrConfig 结构性误用，例如树已挂到其他配置上、对 SymLink 写值。
	ErrConfig = errors.New("xoption: config error")

	// ErrConflict 同一分组内选项名或配置名重复。
	ErrConflict = errors.New("xoption: conflict")

	// ErrAPI 外层 API 误用，核心不直接返回。
	ErrAPI = errors.New("xoption: api error")

	// ErrUnknownOption 路径中的某一段不存在。
	ErrUnknownOption = errors.New("xoption: unknown option")

	// ErrInvalidName 选项名不合法。
	ErrInvalidName = errors.New("xoption: invalid name")
)

// =============================================================================
// ValueOptionError
// =============================================================================

// ValueOptionError 描述一次值校验失败。
//
// Warning 为 true 时表示这是一个被降级的告警（warnings_only 校验或
// demoting_error_warning），不会中断调用流程，而是交给 WarningHandler。
type ValueOptionError struct {
	// Value 失败的值（多值时为失败的元素）。
	Value any
	// Type 选项的展示类型，如 "IP"、"integer"。
	Type string
	// Option 选项展示名。
	Option string
	// Msg 具体原因，可能为空。
	Msg string
	// Index 多值中失败元素的下标，单值为 NoIndex。
	Index int
	// Warning 是否为告警。
	Warning bool
}

func (e *ValueOptionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q is an invalid %s for %q", fmt.Sprint(e.Value), e.Type, e.Option)
	if e.Msg != "" {
		b.WriteString(", ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Unwrap 使 errors.Is(err, ErrValue) 成立。
func (e *ValueOptionError) Unwrap() error {
	return ErrValue
}

// =============================================================================
// PropertiesOptionError
// =============================================================================

// PropertiesOptionError 表示有效属性集合禁止了当前访问。
type PropertiesOptionError struct {
	// Path 选项路径。
	Path string
	// Index follower 下标，没有时为 NoIndex。
	Index int
	// Option 选项展示名。
	Option string
	// Description 为 true 表示被拦截的是选项描述（分组）。
	Description bool
	// Properties 导致拒绝的属性，已排序。
	Properties []string
	// Help 计算属性的说明，与 Properties 一一对应，可能为空。
	Help []string
	// Write 为 true 时使用"不可修改"措辞（frozen）。
	Write bool
}

// NewPropertiesError 创建属性错误，props 会被排序。
func NewPropertiesError(path string, index int, display string, props []string) *PropertiesOptionError {
	sorted := slices.Clone(props)
	slices.Sort(sorted)
	return &PropertiesOptionError{
		Path:       path,
		Index:      index,
		Option:     display,
		Properties: sorted,
	}
}

func (e *PropertiesOptionError) Error() string {
	kind := "option"
	if e.Description {
		kind = "optiondescription"
	}
	word := "property"
	if len(e.Properties) > 1 {
		word = "properties"
	}
	items := e.Properties
	if len(e.Help) == len(e.Properties) && len(e.Help) > 0 {
		items = e.Help
	}
	list := DisplayList(items, "and", len(e.Help) != len(e.Properties) || len(e.Help) == 0)
	if e.Write {
		return fmt.Sprintf("cannot modify the %s %q because has %s %s", kind, e.Option, word, list)
	}
	return fmt.Sprintf("cannot access to %s %q because has %s %s", kind, e.Option, word, list)
}

// Unwrap 使 errors.Is(err, ErrProperties) 成立。
func (e *PropertiesOptionError) Unwrap() error {
	return ErrProperties
}

// Has 判断 prop 是否是导致拒绝的属性之一。
func (e *PropertiesOptionError) Has(prop string) bool {
	return slices.Contains(e.Properties, prop)
}

// OnlyMandatory 判断错误是否仅由 mandatory 或 empty 引起。
// 这两类错误在批量读取时不可吞掉。
func (e *PropertiesOptionError) OnlyMandatory() bool {
	return len(e.Properties) == 1 && (e.Properties[0] == PropMandatory || e.Properties[0] == PropEmpty)
}

// DisplayList 把条目拼成 `"a", "b" and "c"` 形式。
func DisplayList(items []string, sep string, quote bool) string {
	q := make([]string, len(items))
	for i, it := range items {
		if quote {
			q[i] = `"` + it + `"`
		} else {
			q[i] = it
		}
	}
	switch len(q) {
	case 0:
		return ""
	case 1:
		return q[0]
	default:
		return strings.Join(q[:len(q)-1], ", ") + " " + sep + " " + q[len(q)-1]
	}
}

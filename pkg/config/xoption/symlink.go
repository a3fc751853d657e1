package xoption

import "fmt"

// SymLink 把读取转发到目标选项，自身不可写。
type SymLink struct {
	nodeBase
	target *Option
}

// 编译期接口实现检查
var _ Node = (*SymLink)(nil)

// NewSymLink 创建指向 target 的符号链接。
func NewSymLink(name string, target *Option) (*SymLink, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: symlink %q must have an option target", ErrConfig, name)
	}
	base, err := newBase(name, "", defaultNodeOptions())
	if err != nil {
		return nil, err
	}
	return &SymLink{nodeBase: base, target: target}, nil
}

// Target 返回目标选项。
func (s *SymLink) Target() *Option { return s.target }

// IsDescription 恒为 false。
func (s *SymLink) IsDescription() bool { return false }

// Properties 属性来自目标选项。
func (s *SymLink) Properties() Properties { return s.target.Properties() }

// CalcProperties 计算属性来自目标选项。
func (s *SymLink) CalcProperties() []*Calculation { return s.target.CalcProperties() }

// DisplayName 使用目标的展示名。
func (s *SymLink) DisplayName() string { return s.target.DisplayName() }

package xconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed 配置已关闭。
	ErrClosed = errors.New("xconfig: config closed")

	// ErrNotFound Find 没有找到符合条件的选项。
	ErrNotFound = errors.New("xconfig: no option found in config with these criteria")

	// ErrInformationNotFound 删除不存在的信息。
	ErrInformationNotFound = errors.New("xconfig: information's item not found")

	// ErrInvalidSetValueOptions 扇出写入的选项组合互斥。
	ErrInvalidSetValueOptions = errors.New("xconfig: invalid set value options")

	// ErrRollback 扇出写入失败后恢复快照也失败，子配置可能处于部分写入状态。
	ErrRollback = errors.New("xconfig: rollback failed")
)

// ChildError 扇出写入中某个子配置的失败。
type ChildError struct {
	// Config 子配置名（会话 ID）。
	Config string
	Err    error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("config %q: %v", e.Config, e.Err)
}

func (e *ChildError) Unwrap() error {
	return e.Err
}

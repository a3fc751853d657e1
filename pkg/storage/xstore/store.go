package xstore

import (
	"context"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// ValueStore 保存选项值及其 owner。
//
// index 为 xoption.NoIndex 时表示整值；follower 按下标分别保存。
type ValueStore interface {
	// SetValue 写入值与 owner。
	SetValue(ctx context.Context, path string, index int, value any, owner xoption.Owner) error
	// HasValue index 为 NoIndex 时判断 path 是否有任意下标的值。
	HasValue(ctx context.Context, path string, index int) (bool, error)
	// ResetValue 删除 path 的所有值。
	ResetValue(ctx context.Context, path string) error
	// ResetValueIndex 删除 path 在 index 处的值。
	ResetValueIndex(ctx context.Context, path string, index int) error
	// ReduceIndex 删除 index 处的值，并把更大的下标整体前移一位。
	ReduceIndex(ctx context.Context, path string, index int) error
	// Owner 返回 owner，没有值时 ok 为 false。
	Owner(ctx context.Context, path string, index int) (owner xoption.Owner, ok bool, err error)
	// Value 返回值与 owner，没有值时 ok 为 false。
	Value(ctx context.Context, path string, index int) (value any, owner xoption.Owner, ok bool, err error)
	// MaxLength 返回 follower 已保存的最大下标加一。
	MaxLength(ctx context.Context, path string) (int, error)
	// Exportation 导出全部值。
	Exportation(ctx context.Context) (ValueSnapshot, error)
	// Importation 用快照替换全部值。
	Importation(ctx context.Context, snap ValueSnapshot) error
}

// PropertyStore 保存属性集合，属性与 permissive 共用该接口。
// path 为空字符串表示上下文级。
type PropertyStore interface {
	Set(ctx context.Context, path string, index int, props []string) error
	// Get 返回保存的集合，未保存时 ok 为 false。
	Get(ctx context.Context, path string, index int) (props []string, ok bool, err error)
	Delete(ctx context.Context, path string, index int) error
	Exportation(ctx context.Context) (PropertySnapshot, error)
	Importation(ctx context.Context, snap PropertySnapshot) error
}

// InformationStore 保存附加信息，path 为空字符串表示上下文级。
type InformationStore interface {
	SetInformation(ctx context.Context, path, key string, value any) error
	Information(ctx context.Context, path, key string) (value any, ok bool, err error)
	// DelInformation 删除信息，返回是否存在。
	DelInformation(ctx context.Context, path, key string) (bool, error)
	// ListInformation 返回已排序的键。
	ListInformation(ctx context.Context, path string) ([]string, error)
	Exportation(ctx context.Context) (InformationSnapshot, error)
	Importation(ctx context.Context, snap InformationSnapshot) error
}

// Storage 是一个会话的全部存储。
type Storage interface {
	SessionID() string
	Persistent() bool
	Values() ValueStore
	Properties() PropertyStore
	Permissives() PropertyStore
	Information() InformationStore
	// Exportation 导出会话全部内容。
	Exportation(ctx context.Context) (*Snapshot, error)
	// Importation 用快照替换会话全部内容。
	Importation(ctx context.Context, snap *Snapshot) error
	// Close 释放会话；非持久会话的数据同时被删除。
	Close(ctx context.Context) error
}

// =============================================================================
// 快照
// =============================================================================

// ValueEntry 一个下标上的值。
type ValueEntry struct {
	Value any           `json:"value"`
	Owner xoption.Owner `json:"owner"`
}

// ValueSnapshot path → index → 值。
type ValueSnapshot map[string]map[int]ValueEntry

// PropertySnapshot path → index → 属性。
type PropertySnapshot map[string]map[int][]string

// InformationSnapshot path → key → 值。
type InformationSnapshot map[string]map[string]any

// Snapshot 会话的完整导出。
type Snapshot struct {
	Session      string              `json:"session,omitempty"`
	Values       ValueSnapshot       `json:"values"`
	Properties   PropertySnapshot    `json:"properties"`
	Permissives  PropertySnapshot    `json:"permissives"`
	Informations InformationSnapshot `json:"informations"`
}

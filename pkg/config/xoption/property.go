package xoption

import (
	"maps"
	"slices"
)

// NoIndex 表示"没有下标"，用于非 follower 的读写。
const NoIndex = -1

// 内置属性名。
const (
	PropCache                   = "cache"
	PropExpire                  = "expire"
	PropValidator               = "validator"
	PropWarnings                = "warnings"
	PropDemotingErrorWarning    = "demoting_error_warning"
	PropFrozen                  = "frozen"
	PropEverythingFrozen        = "everything_frozen"
	PropDisabled                = "disabled"
	PropHidden                  = "hidden"
	PropMandatory               = "mandatory"
	PropEmpty                   = "empty"
	PropUnique                  = "unique"
	PropNotUnique               = "notunique"
	PropNotEmpty                = "notempty"
	PropPermissive              = "permissive"
	PropForceStoreValue         = "force_store_value"
	PropForceDefaultOnFreeze    = "force_default_on_freeze"
	PropForceMetaconfigOnFreeze = "force_metaconfig_on_freeze"
)

// Properties 是属性名集合。零值 nil 可读不可写。
type Properties map[string]struct{}

// NewProperties 由属性名创建集合。
func NewProperties(names ...string) Properties {
	p := make(Properties, len(names))
	for _, n := range names {
		p[n] = struct{}{}
	}
	return p
}

// Has 判断是否包含 name。
func (p Properties) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Add 加入属性（原地修改）。
func (p Properties) Add(names ...string) {
	for _, n := range names {
		p[n] = struct{}{}
	}
}

// Delete 删除属性（原地修改）。
func (p Properties) Delete(names ...string) {
	for _, n := range names {
		delete(p, n)
	}
}

// Clone 返回副本，nil 返回空集合。
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// Union 返回 p ∪ o。
func (p Properties) Union(o Properties) Properties {
	r := p.Clone()
	for k := range o {
		r[k] = struct{}{}
	}
	return r
}

// Minus 返回 p - o。
func (p Properties) Minus(o Properties) Properties {
	r := make(Properties, len(p))
	for k := range p {
		if _, ok := o[k]; !ok {
			r[k] = struct{}{}
		}
	}
	return r
}

// Intersect 返回 p ∩ o。
func (p Properties) Intersect(o Properties) Properties {
	r := make(Properties)
	for k := range p {
		if _, ok := o[k]; ok {
			r[k] = struct{}{}
		}
	}
	return r
}

// Equal 判断两个集合是否相同。
func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k := range p {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted 返回排序后的属性名，用于存储与展示。
func (p Properties) Sorted() []string {
	return slices.Sorted(maps.Keys(p))
}

// =============================================================================
// Owner
// =============================================================================

// Owner 是值的来源标记，只用于内省，不参与访问控制。
type Owner string

const (
	// OwnerDefault 值来自默认值。
	OwnerDefault Owner = "default"
	// OwnerUser 用户设置的值，上下文默认 owner。
	OwnerUser Owner = "user"
	// OwnerForced force_store_value 写入的值。
	OwnerForced Owner = "forced"
)

// Forbidden 判断该 owner 是否禁止被显式设置。
func (o Owner) Forbidden() bool {
	return o == OwnerDefault || o == OwnerForced
}

// =============================================================================
// GroupType
// =============================================================================

// GroupType 标记选项描述的分组类型。
type GroupType string

const (
	GroupDefault    GroupType = "default"
	GroupLeadership GroupType = "leadership"
	GroupRoot       GroupType = "root"
)

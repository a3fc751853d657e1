package xoption

import (
	"context"
	"fmt"
)

// CalcFunc 是计算函数。args / kwargs 由配置层按 Params 求值后传入。
//
// 校验函数返回非 nil 错误即表示校验失败；返回的错误若已被分类
// （ErrConfig 等），按分类传播。
type CalcFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Calculation 是延迟求值的计算：默认值、属性、候选值、校验与动态后缀都可以是计算。
type Calculation struct {
	// Func 计算函数。
	Func CalcFunc
	// Name 函数名，用于错误信息。
	Name string
	// Params 参数描述。
	Params Params
	// WarningsOnly 作为校验时失败只产生告警。
	WarningsOnly bool
	// Help 作为计算属性时，属性错误中显示的说明。
	Help string
}

// NewCalculation 创建计算。
func NewCalculation(name string, fn CalcFunc, params Params) *Calculation {
	return &Calculation{Func: fn, Name: name, Params: params}
}

// Params 位置参数与命名参数。
type Params struct {
	Args   []Param
	Kwargs map[string]Param
}

// Args 只有位置参数的快捷写法。
func Args(args ...Param) Params {
	return Params{Args: args}
}

// All 依次返回全部参数，先位置参数后命名参数。
func (p Params) All() []Param {
	out := make([]Param, 0, len(p.Args)+len(p.Kwargs))
	out = append(out, p.Args...)
	for _, v := range p.Kwargs {
		out = append(out, v)
	}
	return out
}

// Param 是计算参数。
type Param interface {
	param()
}

// ParamValue 常量参数。
type ParamValue struct {
	Value any
}

// ParamOption 取另一个选项的值。
//
// 读取时遇到属性错误：NotRaisePropertyError 让参数变为 nil（位置参数）或被丢弃（命名参数）；
// RaisePropertyError 让错误原样传播；都不设置时转换为 ErrConfig。
type ParamOption struct {
	Option                Node
	NotRaisePropertyError bool
	RaisePropertyError    bool
	ToDict                bool
}

// ParamSelfOption 取当前选项自身的值。Whole 为 true 时 follower 取整列。
type ParamSelfOption struct {
	Whole  bool
	ToDict bool
}

// ParamIndex 当前下标，没有下标时为 nil。
type ParamIndex struct{}

// ParamSuffix 当前动态后缀，不在动态描述内时为 nil。
type ParamSuffix struct{}

// ParamInformation 读取附加信息。Option 为 nil 时读取配置级信息。
type ParamInformation struct {
	Key     string
	Default any
	Option  Node
}

func (ParamValue) param()       {}
func (ParamOption) param()      {}
func (ParamSelfOption) param()  {}
func (ParamIndex) param()       {}
func (ParamSuffix) param()      {}
func (ParamInformation) param() {}

// OptionArg 是 ToDict 形式的参数：选项名、值以及读取时遇到的属性错误。
type OptionArg struct {
	Name        string
	Value       any
	PropertyErr error
}

func (a OptionArg) String() string {
	return fmt.Sprintf("%s=%v", a.Name, a.Value)
}

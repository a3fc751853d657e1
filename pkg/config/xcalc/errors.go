package xcalc

import "errors"

// ErrCalculation 计算参数不合法（运算符未知、无法运算的值等）。
// 校验失败不使用该错误，而是直接返回失败原因。
var ErrCalculation = errors.New("xcalc: invalid calculation")

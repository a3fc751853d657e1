// Package xcalc 提供常用的计算函数与校验函数。
//
// 所有函数都满足 xoption.CalcFunc，可直接放入 xoption.Calculation：
//   - CalcValue：按条件复制、拼接、运算参数值
//   - ValidNetworkNetmask、ValidIPNetmask、ValidBroadcast、ValidInNetwork：网络参数之间的一致性
//   - ValidNotEqual：与其他选项的值不相等
//
// 校验函数的参数使用 ToDict 形式（xoption.OptionArg）时，错误信息会带上选项名。
package xcalc

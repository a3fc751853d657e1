// Package xoption 定义层次化配置选项树的结构部分。
//
// 一棵选项树由三类节点组成：
//   - Option：带类型与校验的叶子选项，支持多值（multi）与列表的列表（submulti）
//   - Description：有序、名字唯一的子节点集合，包括普通描述、
//     Leadership（leader 与 follower 多值保持长度一致）和动态描述（按后缀生成实例）
//   - SymLink：把读取转发到另一个叶子选项
//
// 默认值、属性、候选值、校验以及动态后缀都可以是 Calculation，
// 求值需要一个运行中的配置，由 xconfig 完成。
//
// # 构建
//
// Description.Build 把描述作为根构建：分配点分路径、标记整棵树只读、
// 登记计算参数的依赖关系。构建后的树可以被多个配置共享，
// 但其中的子树不能再作为另一棵树的根。
//
// # 错误
//
// 值校验失败返回 *ValueOptionError（errors.Is(err, ErrValue)），
// 属性拒绝访问返回 *PropertiesOptionError（errors.Is(err, ErrProperties)），
// 其他分类使用哨兵错误 ErrLeadership、ErrConfig、ErrConflict、ErrUnknownOption。
//
// # 多值与 unique
//
// 非 submulti 的多值选项默认带有 unique 与 empty 属性，
// 可用 notunique / notempty 取消。unique 检查忽略 nil 元素。
// leadership 的 follower 会去掉这两个属性。
package xoption

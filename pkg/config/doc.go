// Package config 提供配置选项树相关的子包。
//
// 子包列表：
//   - xoption: 选项类型、描述与计算的定义
//   - xcalc: 常用的计算函数
//   - xconfig: 配置引擎，属性、值、缓存与多配置组合
//   - xconf: 从 YAML / JSON 文档加载选项值与热重载
package config

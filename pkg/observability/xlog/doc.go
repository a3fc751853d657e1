// Package xlog 基于 log/slog 的结构化日志。
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation(xlog.Rotation{Filename: "/var/log/xoption/xoption.log"}).
//		Build()
//	defer cleanup()
//
// Builder 遇到第一个配置错误后，Build 返回该错误。
// 文件轮转由 lumberjack 完成。
//
// # Context 属性
//
// ContextWith 把属性放入 context，默认启用的 EnrichHandler 会在输出时追加：
//
//	ctx = xlog.ContextWith(ctx, xlog.Session("s1"))
//
// # 选项相关属性
//
// Path、Index、Owner、Properties、Session、Backend、Config 与 Err、Duration 等
// 统一字段名，Index 为负数时不输出。
//
// # 全局 Logger
//
// Default、SetDefault 与 Debug、Info、Warn、Error、Stack 面向命令行工具。
// Discard 返回丢弃全部输出的 Logger，作为库的默认值。
package xlog

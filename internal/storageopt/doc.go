// Package storageopt 提供 xstore 各驱动共享的配置选项和工具。
//
// 本包是 internal 包，仅供 pkg/storage/xstore 使用。
//
// 主要功能：
//   - 健康检查超时
//   - 慢操作检测（同步钩子）
//   - 调用与 Ping 计数（Stats）
//   - Guard：远程驱动调用的统一入口，组合重试（retry-go）、熔断（gobreaker）与观测（xmetrics）
package storageopt

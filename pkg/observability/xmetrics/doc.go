// Package xmetrics 为配置树与存储后端提供链路与指标观测。
//
// 组件只依赖 Observer 接口，未配置时使用 NoopObserver。
// NewOTelObserver 基于 OpenTelemetry：
//
//	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
//	m := xconfig.NewManager(registry, xconfig.WithObserver(obs))
//
// 指标 xoption.operations、xoption.operation.latency 与
// xoption.operations.active 以 xoption.component、xoption.operation
// 区分，前两者另带 xoption.outcome。
//
// 跨度的 trace_id 与 span_id 通过 xlog.ContextWith 写入 context，
// 同一 context 下的日志可与链路关联。
package xmetrics

// Package storage 提供选项值的存储子包。
//
// 子包列表：
//   - xstore: 会话化的值 / 属性 / 信息存储，驱动支持 memory、redis、badger、etcd
//
// 设计原则：
//   - 驱动只负责键值读写，会话、快照与编码由 xstore 统一处理
//   - 远程驱动内置重试、熔断与慢操作检测
package storage

// Package xconf 从 YAML / JSON 文档加载选项值并写入 xconfig.Config，基于 koanf 实现。
//
// # 文档
//
// New 从文件加载（格式由扩展名决定），NewFromBytes 从字节数据加载。
// 文档按 "." 展平，每个叶子的键就是选项路径：
//
//	server:
//	  host: example.org
//	  port: 8080
//	lead:
//	  ip: [1, 2]
//	  name: [null, b]
//
// 与 Config.Dict 的默认导出形式一致，导出的 JSON 可以直接再 Apply。
//
// # Apply
//
// Apply 按路径写入每个叶子，依赖尚未写入的键会重试；
// follower 的列表值按下标写入。配置中不存在的键默认跳过，Strict 时返回错误。
//
// # 监视
//
// Watch 基于 fsnotify 监视文件所在目录，内置防抖；Reapply 把重载后的文档重新写入配置。
// 从字节数据创建的文档不能监视。
package xconf

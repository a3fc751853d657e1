// Package xconfig 在 xoption 选项树之上提供配置运行时。
//
// # 组成
//
//   - Config：一个会话上的属性（settings）与值（values），对外提供按路径读写的门面
//   - MixConfig / MetaConfig：自身也是 Config，同时持有子配置；子配置未修改的值回落到父配置
//   - GroupConfig：只做扇出的配置分组
//   - Manager：持有会话 Registry 与父配置表，所有配置由它创建
//
// # 访问控制
//
// 每次访问前先计算选项的有效属性（存储的属性 ∪ 计算属性 − permissive），
// 与上下文属性相交非空时返回 *xoption.PropertiesOptionError，此时不会触及值存储。
// ReadOnly / ReadWrite 按规则批量增删上下文属性。
//
// # leadership
//
// follower 的长度始终不超过 leader：缩短 leader、在超出长度的下标写 follower
// 都会返回 xoption.ErrLeadership；Pop 删除 leader 的一个下标并把 follower 整体前移。
//
// # 扇出写入
//
// GroupConfig、MixConfig、MetaConfig 的 SetValue / ResetValue 分两阶段执行：
// 先对每个子配置做不落盘的校验并收集错误，全部通过后才写入；
// 写入中途失败时用写入前的导出快照恢复已写入的子配置。
//
// # 使用示例
//
//	mgr := xconfig.NewManager(xstore.NewRegistry(xstore.NewMemory()))
//	defer mgr.Close(ctx)
//
//	cfg, err := mgr.NewConfig(ctx, root)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Set(ctx, "general.mode", "expert"); err != nil {
//	    return err
//	}
//	v, err := cfg.Get(ctx, "general.mode")
package xconfig

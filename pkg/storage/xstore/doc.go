// Package xstore 提供选项树的持久化契约、会话存储与后端驱动。
//
// # 分层
//
//   - 契约：ValueStore、PropertyStore、InformationStore，按会话组合为 Storage
//   - 会话：Registry 负责打开、列出、删除会话，同一会话同一时刻只能打开一次
//   - 驱动：Driver 是按 (session, key) 寻址的字节存储，内置 memory、redis、badger、etcd
//
// 所有记录以 JSON 编码写入驱动；读取时整数还原为 int，其余数字为 float64。
//
// # 后端选择
//
// 通过环境变量选择默认后端：
//
//	XOPTION_STORAGE=memory|redis|badger|etcd
//	XOPTION_REDIS_ADDR=127.0.0.1:6379
//	XOPTION_BADGER_DIR=/var/lib/xoption
//	XOPTION_ETCD_ENDPOINTS=10.0.0.1:2379,10.0.0.2:2379
//
// 远程驱动（redis、etcd）以及 badger 的每次调用都经过重试与熔断，并通过 xmetrics 上报。
//
// # 使用示例
//
//	driver, err := xstore.OpenDriver(ctx, xstore.ConfigFromEnv())
//	if err != nil {
//	    return err
//	}
//	registry := xstore.NewRegistry(driver)
//	defer registry.Close(ctx)
//
//	st, err := registry.Open(ctx, "", false)
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
package xstore

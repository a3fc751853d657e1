package storageopt

import (
	"context"
	"time"
)

// DefaultHealthTimeout Ping 的默认超时。
const DefaultHealthTimeout = 5 * time.Second

// HealthContext 为 Ping 附加超时。timeout 非正时原样返回，nil ctx 视为 Background。
func HealthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

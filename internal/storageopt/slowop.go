package storageopt

import (
	"context"
	"sync/atomic"
	"time"
)

// SlowOpDetector 慢操作检测器。
type SlowOpDetector struct {
	threshold time.Duration
	hook      SlowOpHook
	count     atomic.Int64
}

// NewSlowOpDetector 创建慢操作检测器，threshold 为 0 时不触发。
func NewSlowOpDetector(threshold time.Duration, hook SlowOpHook) *SlowOpDetector {
	return &SlowOpDetector{threshold: threshold, hook: hook}
}

// MaybeSlowOp 耗时达到阈值时计数并调用钩子，返回是否判定为慢操作。
func (d *SlowOpDetector) MaybeSlowOp(ctx context.Context, info SlowOpInfo) bool {
	if d == nil || d.threshold == 0 || info.Duration < d.threshold {
		return false
	}
	d.count.Add(1)
	if d.hook != nil {
		d.hook(ctx, info)
	}
	return true
}

// Count 返回已检测到的慢操作次数。
func (d *SlowOpDetector) Count() int64 {
	if d == nil {
		return 0
	}
	return d.count.Load()
}

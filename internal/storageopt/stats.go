package storageopt

import "sync/atomic"

// Stats 驱动统计快照，由 xstore 的 Stats 方法对外暴露。
type Stats struct {
	Ops        int64  `json:"ops"`
	Errors     int64  `json:"errors"`
	SlowOps    int64  `json:"slow_ops"`
	Pings      int64  `json:"pings"`
	PingErrors int64  `json:"ping_errors"`
	Breaker    string `json:"breaker,omitempty"`
}

// counters 按调用计数，重试不重复计入。
type counters struct {
	ops        atomic.Int64
	errors     atomic.Int64
	pings      atomic.Int64
	pingErrors atomic.Int64
}

func (c *counters) call(err error) {
	c.ops.Add(1)
	if err != nil {
		c.errors.Add(1)
	}
}

func (c *counters) ping(err error) {
	c.pings.Add(1)
	if err != nil {
		c.pingErrors.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ops:        c.ops.Load(),
		Errors:     c.errors.Load(),
		Pings:      c.pings.Load(),
		PingErrors: c.pingErrors.Load(),
	}
}

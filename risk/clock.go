package risk

import (
	"sync"
	"time"
)

// Clock 抽象时间便于测试与回测。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NowUTC 默认使用 UTC 时间。
var NowUTC Clock = realClock{}

// VirtualClock 回测用虚拟时钟：由引擎按事件时间推进。
type VirtualClock struct {
	mu sync.RWMutex
	t  time.Time
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{t: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Advance 推进到指定时间；时间只前进不后退。
func (c *VirtualClock) Advance(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.t) {
		c.t = t
	}
}

package risk

import (
	"fmt"
	"sync"
	"time"
)

// DailyLossGuard 监控当日权益回撤。超过阈值后拒绝一切新单并要求清仓，
// 直到自然日切换才解除。
type DailyLossGuard struct {
	maxLossPct float64 // 相对当日起始权益的最大亏损比例
	book       Valuation
	clock      Clock

	mu        sync.Mutex
	dayStart  time.Time
	baseline  float64
	breached  bool
	haveBase  bool
}

func NewDailyLossGuard(maxLossPct float64, book Valuation, clock Clock) *DailyLossGuard {
	if clock == nil {
		clock = NowUTC
	}
	return &DailyLossGuard{
		maxLossPct: maxLossPct,
		book:       book,
		clock:      clock,
	}
}

func (g *DailyLossGuard) PreOrder(symbol string, deltaQty, price float64) error {
	if g.maxLossPct <= 0 || g.book == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roll()
	if g.breached {
		return fmt.Errorf("%w: trading halted until next session", ErrMaxDailyLoss)
	}
	if loss := g.lossPct(); loss > g.maxLossPct+eps {
		g.breached = true
		return fmt.Errorf("%w: day loss %.4f max %.4f", ErrMaxDailyLoss, loss, g.maxLossPct)
	}
	return nil
}

// Breached 每个行情事件调用一次；首次越限返回 true 并锁定直到日切。
func (g *DailyLossGuard) Breached() bool {
	if g.maxLossPct <= 0 || g.book == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roll()
	if g.breached {
		return true
	}
	if g.lossPct() > g.maxLossPct+eps {
		g.breached = true
	}
	return g.breached
}

// roll 处理自然日切换：重置基线与越限标志。调用方持锁。
func (g *DailyLossGuard) roll() {
	now := g.clock.Now()
	day := now.Truncate(24 * time.Hour)
	if !g.haveBase || day.After(g.dayStart) {
		g.dayStart = day
		g.baseline = g.book.Equity()
		g.breached = false
		g.haveBase = true
	}
}

func (g *DailyLossGuard) lossPct() float64 {
	if g.baseline <= 0 {
		return 0
	}
	return (g.baseline - g.book.Equity()) / g.baseline
}

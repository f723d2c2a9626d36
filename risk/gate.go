package risk

// Gate 统一的下单前风控入口：依次执行全部 Guard，任一拒绝立即返回。
// 拒单同步推送给 Notifier，不影响调用方。
type Gate struct {
	guards   MultiGuard
	daily    *DailyLossGuard
	notifier *Notifier
}

// Thresholds 风控阈值配置；零值字段表示对应检查关闭。
type Thresholds struct {
	MaxPositionSize  float64
	MaxDailyLossPct  float64
	MaxLeverage      float64
	MaxConcentration float64
	SymbolLimits     map[string]float64
}

// NewGate 按配置组装 Guard 链。
func NewGate(th Thresholds, book interface {
	Exposure
	Valuation
}, clock Clock, notifier *Notifier) *Gate {
	daily := NewDailyLossGuard(th.MaxDailyLossPct, book, clock)
	guards := []Guard{
		daily,
		&PositionSizeGuard{Max: th.MaxPositionSize, Book: book},
		&SymbolLimitGuard{Limits: th.SymbolLimits, Book: book},
		&LeverageGuard{Max: th.MaxLeverage, Book: book},
		&ConcentrationGuard{MaxFraction: th.MaxConcentration, Book: book, Exposure: book},
	}
	return &Gate{
		guards:   MultiGuard{Guards: guards},
		daily:    daily,
		notifier: notifier,
	}
}

// PreOrder 下单前校验；返回的错误文本即 reason 码。
func (g *Gate) PreOrder(symbol string, deltaQty, price float64) error {
	err := g.guards.PreOrder(symbol, deltaQty, price)
	if err != nil && g.notifier != nil {
		g.notifier.NotifyRejection(symbol, err)
	}
	return err
}

// ShouldLiquidate 每个行情事件评估一次；日内亏损越限后要求立即清仓。
func (g *Gate) ShouldLiquidate() bool {
	if g.daily == nil {
		return false
	}
	breached := g.daily.Breached()
	if breached && g.notifier != nil {
		g.notifier.NotifyLiquidation(ErrMaxDailyLoss.Error())
	}
	return breached
}

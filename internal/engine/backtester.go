package engine

import (
	"errors"
	"fmt"
	"time"

	"trading-engine-go/execution"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/inventory"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/posttrade"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// BacktestConfig 回测参数。
type BacktestConfig struct {
	Symbol         string
	InitialCapital float64
	PeriodsPerYear float64
	Execution      execution.Config
	Risk           risk.Thresholds
}

// Result 一次回测的全部产出。
type Result struct {
	Metrics     posttrade.Metrics
	EquityCurve []posttrade.EquityPoint
	Trades      []inventory.Trade
	Orders      []order.Order
}

// Backtester 单线程事件回放回测器。同样的输入永远产出同样的结果：
// 订单ID为递增序号，成交按提交顺序撮合，时间全部来自行情事件。
type Backtester struct {
	cfg     BacktestConfig
	ledger  *order.Ledger
	tracker *inventory.Tracker
	sim     *execution.Simulator
	gate    *risk.Gate
	clock   *risk.VirtualClock
	strat   strategy.Strategy
	log     *logger.Logger

	view        *accountView
	curve       []posttrade.EquityPoint
	lastClose   float64
	liquidating bool
}

// NewBacktester 组装回测器。notifier 可为 nil（回测不发告警）。
func NewBacktester(cfg BacktestConfig, strat strategy.Strategy, log *logger.Logger, notifier *risk.Notifier) *Backtester {
	ledger := order.NewLedger()
	seq := 0
	ledger.SetIDGenerator(func() string {
		seq++
		return fmt.Sprintf("bt-%06d", seq)
	})

	tracker := inventory.NewTracker(cfg.InitialCapital)
	clock := risk.NewVirtualClock(time.Time{})

	return &Backtester{
		cfg:     cfg,
		ledger:  ledger,
		tracker: tracker,
		sim:     execution.NewSimulator(cfg.Execution),
		gate:    risk.NewGate(cfg.Risk, tracker, clock, notifier),
		clock:   clock,
		strat:   strat,
		log:     log,
		view:    &accountView{ledger: ledger, tracker: tracker},
	}
}

// Run 顺序消费行情直到耗尽。乱序数据和账本不一致是致命错误。
func (b *Backtester) Run(src market.Source) (*Result, error) {
	if err := b.strat.Initialize(b.view); err != nil {
		return nil, fmt.Errorf("strategy init: %w", err)
	}

	for {
		ev, ok, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("market replay: %w", err)
		}
		if !ok {
			break
		}

		if ev.Candle == nil {
			// tick 只用于刷新估值
			if ev.Tick != nil {
				b.tracker.MarkPrice(ev.Tick.Symbol, ev.Tick.Price, ev.Tick.Ts)
			}
			continue
		}

		if err := b.step(*ev.Candle); err != nil {
			return nil, err
		}
	}

	b.strat.Shutdown(b.view)
	b.cancelPending("backtest_end")

	trades := b.tracker.Trades()
	result := &Result{
		Metrics:     posttrade.Calculate(trades, b.curve, b.cfg.InitialCapital, b.cfg.PeriodsPerYear),
		EquityCurve: b.curve,
		Trades:      trades,
		Orders:      b.ledger.All(),
	}
	return result, nil
}

// step 处理单根K线：撮合 → 记账 → 估值 → 风控 → 策略。
func (b *Backtester) step(c market.Candle) error {
	b.clock.Advance(c.Ts)

	fills, err := b.sim.ProcessCandle(b.ledger, c)
	if err != nil {
		return fmt.Errorf("fill simulation at %s: %w", c.Ts.Format(time.RFC3339), err)
	}
	for _, f := range fills {
		if trade := b.tracker.ApplyFill(f); trade != nil && b.log != nil {
			b.log.LogTrade("position_closed", map[string]interface{}{
				"event":  "position_closed",
				"symbol": trade.Symbol,
				"pnl":    trade.PnL,
			})
		}
		b.strat.OnFill(b.view, f)
	}

	b.tracker.MarkPrice(c.Symbol, c.Close, c.Ts)
	b.lastClose = c.Close

	if b.gate.ShouldLiquidate() {
		if !b.liquidating {
			b.liquidating = true
			b.liquidate(c.Ts)
		}
	} else {
		b.liquidating = false
		signals, err := b.strat.OnCandle(b.view, c)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", b.strat.Name(), err)
		}
		for _, sig := range signals {
			if err := b.routeSignal(sig, c.Ts); err != nil {
				return err
			}
		}
	}

	b.curve = append(b.curve, posttrade.EquityPoint{Ts: c.Ts, Equity: b.tracker.Equity()})
	return nil
}

// routeSignal 执行单个信号。风控拒绝不是错误：订单进入REJECTED终态，
// 策略收到回调，回测继续。
func (b *Backtester) routeSignal(sig strategy.Signal, at time.Time) error {
	plan, err := planSignal(sig, b.ledger, b.tracker.NetExposure(sig.Symbol))
	if err != nil {
		if errors.Is(err, order.ErrUnknownOrder) {
			// MODIFY 目标已不在账本里，当作过期信号丢弃
			return nil
		}
		return err
	}

	reason := "modify_replace"
	if sig.Type == strategy.SignalClose {
		reason = "close_position"
	}
	for _, id := range plan.cancels {
		if _, err := b.ledger.Cancel(id, reason, at); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
	}

	for _, o := range plan.orders {
		if err := b.submit(o, at); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backtester) submit(o order.Order, at time.Time) error {
	if err := b.gate.PreOrder(o.Symbol, o.SignedQty(), riskPrice(o, b.lastClose)); err != nil {
		if !risk.IsRejection(err) {
			return err
		}
		rejected, subErr := b.ledger.Submit(o, at)
		if subErr != nil {
			return subErr
		}
		rejected, subErr = b.ledger.Reject(rejected.ID, risk.Reason(err), at)
		if subErr != nil {
			return subErr
		}
		b.strat.OnReject(b.view, rejected, rejected.Reason)
		return nil
	}

	submitted, err := b.ledger.Submit(o, at)
	if err != nil {
		if order.IsValidation(err) {
			// 校验失败同样回调策略，不中断回测
			o.Status = order.StatusRejected
			o.Reason = err.Error()
			b.strat.OnReject(b.view, o, o.Reason)
			return nil
		}
		return err
	}

	if b.log != nil {
		b.log.LogOrder("submitted", submitted.ID, map[string]interface{}{
			"symbol": submitted.Symbol,
			"status": string(submitted.Status),
			"side":   string(submitted.Side),
			"type":   string(submitted.Type),
			"qty":    submitted.Quantity,
		})
	}
	return nil
}

// liquidate 日内亏损越限：撤掉全部挂单，市价平掉全部持仓。
// 平仓单不过风控（风控此刻必然拒绝一切新单）。
func (b *Backtester) liquidate(at time.Time) {
	b.cancelPending("liquidation")
	for _, p := range b.tracker.Positions() {
		if p.Quantity == 0 {
			continue
		}
		side := order.SideSell
		if p.Side == inventory.Short {
			side = order.SideBuy
		}
		_, _ = b.ledger.Submit(order.Order{
			Symbol:   p.Symbol,
			Side:     side,
			Type:     order.TypeMarket,
			Quantity: p.Quantity,
		}, at)
	}
	if b.log != nil {
		b.log.LogRisk("liquidation", map[string]interface{}{
			"event":  "liquidation",
			"symbol": b.cfg.Symbol,
			"reason": risk.ErrMaxDailyLoss.Error(),
		})
	}
}

func (b *Backtester) cancelPending(reason string) {
	for _, o := range b.ledger.Pending() {
		at := o.UpdatedAt
		if n := len(b.curve); n > 0 {
			at = b.curve[n-1].Ts
		}
		_, _ = b.ledger.Cancel(o.ID, reason, at)
	}
}

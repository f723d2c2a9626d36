package engine

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"trading-engine-go/execution"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// scripted 按K线序号出信号的测试策略。实盘引擎在独立goroutine里
// 回调，这里加锁让测试断言可以并发读。
type scripted struct {
	strategy.BaseStrategy
	script map[int][]strategy.Signal

	mu      sync.Mutex
	n       int
	fills   []order.Fill
	rejects []string
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) OnCandle(_ strategy.Context, _ market.Candle) ([]strategy.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sigs := s.script[s.n]
	s.n++
	return sigs, nil
}

func (s *scripted) OnFill(_ strategy.Context, f order.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, f)
}

func (s *scripted) OnReject(_ strategy.Context, _ order.Order, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects = append(s.rejects, reason)
}

func (s *scripted) fillsCopy() []order.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.Fill(nil), s.fills...)
}

func (s *scripted) rejectsCopy() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rejects...)
}

var testBase = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

// flatCandles 构造 OHLC 全相等的K线序列，便于手算成交价。
func flatCandles(symbol string, closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Symbol: symbol,
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1000,
			Ts:     testBase.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Outputs: []string{"stdout"}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestBacktester(strat strategy.Strategy, th risk.Thresholds) *Backtester {
	return NewBacktester(BacktestConfig{
		Symbol:         "BTCUSDT",
		InitialCapital: 10000,
		PeriodsPerYear: 252,
		Execution:      execution.Config{},
		Risk:           th,
	}, strat, nil, nil)
}

func TestBacktestRoundTrip(t *testing.T) {
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 1)},
		3: {strategy.MarketSell("BTCUSDT", 1)},
	}}
	b := newTestBacktester(strat, risk.Thresholds{})

	result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 101, 102, 103, 104)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 买单在下一根K线成交于101，卖单成交于104
	if len(strat.fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(strat.fills))
	}
	if strat.fills[0].Price != 101 || strat.fills[1].Price != 104 {
		t.Fatalf("fill prices = %f, %f", strat.fills[0].Price, strat.fills[1].Price)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	if result.Trades[0].PnL != 3 {
		t.Fatalf("trade pnl = %f, want 3", result.Trades[0].PnL)
	}
	if got := result.EquityCurve[len(result.EquityCurve)-1].Equity; got != 10003 {
		t.Fatalf("final equity = %f, want 10003", got)
	}
	if result.Metrics.TotalTrades != 1 || result.Metrics.WinningTrades != 1 {
		t.Fatalf("metrics mismatch: %+v", result.Metrics)
	}

	for _, o := range result.Orders {
		if o.Status != order.StatusFilled {
			t.Fatalf("order %s status = %s, want FILLED", o.ID, o.Status)
		}
	}
}

func TestBacktestDeterministic(t *testing.T) {
	run := func() *Result {
		strat := &scripted{script: map[int][]strategy.Signal{
			0: {strategy.MarketBuy("BTCUSDT", 2)},
			2: {strategy.LimitSell("BTCUSDT", 2, 103)},
		}}
		b := newTestBacktester(strat, risk.Thresholds{})
		result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 101, 102, 103, 104)))
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a.Trades, b.Trades) {
		t.Fatalf("trades differ between runs")
	}
	if !reflect.DeepEqual(a.EquityCurve, b.EquityCurve) {
		t.Fatalf("equity curves differ between runs")
	}
	if !reflect.DeepEqual(a.Orders, b.Orders) {
		t.Fatalf("order histories differ between runs")
	}
	if a.Orders[0].ID != "bt-000001" {
		t.Fatalf("sequential id expected, got %s", a.Orders[0].ID)
	}
}

func TestBacktestRiskRejection(t *testing.T) {
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 0.6)},
		2: {strategy.MarketBuy("BTCUSDT", 0.6)},
	}}
	b := newTestBacktester(strat, risk.Thresholds{MaxPositionSize: 1.0})

	result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 100, 100, 100, 100)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(strat.rejects) != 1 || strat.rejects[0] != "max_position_size_exceeded" {
		t.Fatalf("rejects = %v", strat.rejects)
	}

	var rejected int
	for _, o := range result.Orders {
		if o.Status == order.StatusRejected {
			rejected++
			if o.Reason != "max_position_size_exceeded" {
				t.Fatalf("reject reason = %q", o.Reason)
			}
		}
	}
	if rejected != 1 {
		t.Fatalf("rejected orders = %d, want 1", rejected)
	}
	// 首单正常成交
	if len(strat.fills) != 1 || strat.fills[0].Quantity != 0.6 {
		t.Fatalf("fills = %+v", strat.fills)
	}
}

func TestBacktestOutOfOrderData(t *testing.T) {
	candles := flatCandles("BTCUSDT", 100, 101, 102)
	candles[2].Ts = candles[0].Ts.Add(-time.Hour)

	b := newTestBacktester(&scripted{}, risk.Thresholds{})
	if _, err := b.Run(market.NewReplaySource(candles)); err == nil {
		t.Fatalf("expected out-of-order error")
	}
}

func TestBacktestDailyLossLiquidation(t *testing.T) {
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 100)},
	}}
	b := newTestBacktester(strat, risk.Thresholds{MaxDailyLossPct: 0.05})

	// 满仓后价格跌6%，触发强制清仓
	result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 100, 94, 94, 94)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	if result.Trades[0].PnL >= 0 {
		t.Fatalf("liquidation trade should be a loss, got %f", result.Trades[0].PnL)
	}
	if pos, ok := b.tracker.Position("BTCUSDT"); ok && pos.Quantity != 0 {
		t.Fatalf("position not flat after liquidation: %+v", pos)
	}
}

func TestBacktestModifySignal(t *testing.T) {
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.LimitBuy("BTCUSDT", 1, 90)},
		1: {strategy.ModifyOrder("bt-000001", 101, 0)},
	}}
	b := newTestBacktester(strat, risk.Thresholds{})

	result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 100, 100, 100)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 原单90不可成交；改价到101后在下一根K线成交
	if len(strat.fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(strat.fills))
	}

	var canceled, filled int
	for _, o := range result.Orders {
		switch o.Status {
		case order.StatusCanceled:
			canceled++
			if o.Reason != "modify_replace" {
				t.Fatalf("cancel reason = %q", o.Reason)
			}
		case order.StatusFilled:
			filled++
			if o.Price != 101 {
				t.Fatalf("replacement price = %f, want 101", o.Price)
			}
		}
	}
	if canceled != 1 || filled != 1 {
		t.Fatalf("canceled = %d filled = %d", canceled, filled)
	}
}

func TestBacktestClosePosition(t *testing.T) {
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 2)},
		2: {strategy.ClosePosition("BTCUSDT")},
	}}
	b := newTestBacktester(strat, risk.Thresholds{})

	result, err := b.Run(market.NewReplaySource(flatCandles("BTCUSDT", 100, 102, 104, 106)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	// 买入102，平仓106
	if result.Trades[0].PnL != 8 {
		t.Fatalf("pnl = %f, want 8", result.Trades[0].PnL)
	}
	if pos, ok := b.tracker.Position("BTCUSDT"); ok && pos.Quantity != 0 {
		t.Fatalf("position not flat: %+v", pos)
	}
}

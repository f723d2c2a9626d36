package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"trading-engine-go/execution"
	"trading-engine-go/gateway"
	"trading-engine-go/inventory"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

type liveFixture struct {
	engine  *Engine
	ledger  *order.Ledger
	tracker *inventory.Tracker
	client  *gateway.PaperClient
	stream  *market.Buffer
	strat   *scripted
}

func newLiveFixture(t *testing.T, script map[int][]strategy.Signal) *liveFixture {
	t.Helper()

	ledger := order.NewLedger()
	tracker := inventory.NewTracker(10000)
	client := gateway.NewPaperClient(execution.Config{}, 16)
	stream := market.NewBuffer(16, market.Block)
	strat := &scripted{script: script}

	eng, err := New(Config{
		Symbol:       "BTCUSDT",
		DrainTimeout: 200 * time.Millisecond,
	}, Components{
		Strategy: strat,
		Client:   client,
		Stream:   stream,
		Ledger:   ledger,
		Tracker:  tracker,
		Gate:     risk.NewGate(risk.Thresholds{}, tracker, nil, nil),
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	return &liveFixture{
		engine:  eng,
		ledger:  ledger,
		tracker: tracker,
		client:  client,
		stream:  stream,
		strat:   strat,
	}
}

// waitFor 轮询直到条件成立或超时。
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestEngineFillRoundTrip(t *testing.T) {
	fx := newLiveFixture(t, map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 1)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fx.engine.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	candles := flatCandles("BTCUSDT", 100, 101)
	if err := fx.stream.Publish(ctx, market.CandleEvent(candles[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// 等订单到达模拟交易所
	waitFor(t, time.Second, func() bool {
		return len(fx.ledger.Pending()) == 1
	}, "order not submitted")

	// 第二根K线驱动撮合，成交经由回报通道回流
	if err := fx.client.OnMarketData(candles[1]); err != nil {
		t.Fatalf("match: %v", err)
	}
	if err := fx.stream.Publish(ctx, market.CandleEvent(candles[1])); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		pos, ok := fx.tracker.Position("BTCUSDT")
		return ok && pos.Quantity == 1
	}, "fill not applied")

	pos, _ := fx.tracker.Position("BTCUSDT")
	if pos.EntryPrice != 101 {
		t.Fatalf("entry price = %f, want 101", pos.EntryPrice)
	}
	if got := fx.strat.fillsCopy(); len(got) != 1 {
		t.Fatalf("strategy fills = %d, want 1", len(got))
	}

	if err := fx.engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := fx.engine.GetState(); got != StateStopped {
		t.Fatalf("state = %s, want STOPPED", got)
	}
}

// exposureRecorder 在每根K线上记录策略当时看到的持仓数量。
type exposureRecorder struct {
	strategy.BaseStrategy
	script map[int][]strategy.Signal

	mu   sync.Mutex
	n    int
	seen []float64
}

func (s *exposureRecorder) Name() string { return "exposure_recorder" }

func (s *exposureRecorder) OnCandle(ctx strategy.Context, _ market.Candle) ([]strategy.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var qty float64
	if pos, ok := ctx.Position("BTCUSDT"); ok {
		qty = pos.Quantity
	}
	s.seen = append(s.seen, qty)
	sigs := s.script[s.n]
	s.n++
	return sigs, nil
}

func (s *exposureRecorder) seenCopy() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seen...)
}

func TestEngineDrainsFillsBeforeNextCandle(t *testing.T) {
	ledger := order.NewLedger()
	tracker := inventory.NewTracker(10000)
	client := gateway.NewPaperClient(execution.Config{}, 16)
	stream := market.NewBuffer(16, market.Block)
	strat := &exposureRecorder{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 1)},
	}}

	eng, err := New(Config{Symbol: "BTCUSDT", DrainTimeout: 200 * time.Millisecond}, Components{
		Strategy: strat,
		Client:   client,
		Stream:   stream,
		Ledger:   ledger,
		Tracker:  tracker,
		Gate:     risk.NewGate(risk.Thresholds{}, tracker, nil, nil),
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	candles := flatCandles("BTCUSDT", 100, 101)
	if err := stream.Publish(ctx, market.CandleEvent(candles[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return len(ledger.Pending()) == 1
	}, "order not submitted")

	// 成交回报先于第二根K线进入通道：策略在第二根K线上
	// 必须已经看到这笔持仓
	if err := client.OnMarketData(candles[1]); err != nil {
		t.Fatalf("match: %v", err)
	}
	if err := stream.Publish(ctx, market.CandleEvent(candles[1])); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(strat.seenCopy()) == 2
	}, "second candle not processed")

	seen := strat.seenCopy()
	if seen[0] != 0 {
		t.Fatalf("candle 1 exposure = %v, want 0", seen[0])
	}
	if seen[1] != 1 {
		t.Fatalf("candle 2 exposure = %v, want 1 (fill must land before the candle)", seen[1])
	}
}

func TestEngineCancelsPendingOnShutdown(t *testing.T) {
	fx := newLiveFixture(t, map[int][]strategy.Signal{
		0: {strategy.LimitBuy("BTCUSDT", 1, 90)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fx.engine.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := fx.stream.Publish(ctx, market.CandleEvent(flatCandles("BTCUSDT", 100)[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return len(fx.ledger.Pending()) == 1
	}, "order not submitted")

	if err := fx.engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if n := len(fx.ledger.Pending()); n != 0 {
		t.Fatalf("pending after shutdown = %d, want 0", n)
	}
	for _, o := range fx.ledger.All() {
		if o.Status != order.StatusCanceled {
			t.Fatalf("order %s status = %s, want CANCELED", o.ID, o.Status)
		}
		if o.Reason != "engine_shutdown" {
			t.Fatalf("cancel reason = %q", o.Reason)
		}
	}
}

func TestEngineRejectsOversizedOrder(t *testing.T) {
	ledger := order.NewLedger()
	tracker := inventory.NewTracker(10000)
	client := gateway.NewPaperClient(execution.Config{}, 16)
	stream := market.NewBuffer(16, market.Block)
	strat := &scripted{script: map[int][]strategy.Signal{
		0: {strategy.MarketBuy("BTCUSDT", 5)},
	}}

	eng, err := New(Config{Symbol: "BTCUSDT", DrainTimeout: 100 * time.Millisecond}, Components{
		Strategy: strat,
		Client:   client,
		Stream:   stream,
		Ledger:   ledger,
		Tracker:  tracker,
		Gate:     risk.NewGate(risk.Thresholds{MaxPositionSize: 1}, tracker, nil, nil),
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	if err := stream.Publish(ctx, market.CandleEvent(flatCandles("BTCUSDT", 100)[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(strat.rejectsCopy()) == 1
	}, "reject callback not delivered")

	if got := strat.rejectsCopy(); got[0] != "max_position_size_exceeded" {
		t.Fatalf("reject reason = %q", got[0])
	}
	// 拒单留痕：REJECTED终态，不占用活跃队列
	var rejected int
	for _, o := range ledger.All() {
		if o.Status == order.StatusRejected {
			rejected++
		}
	}
	if rejected != 1 || len(ledger.Pending()) != 0 {
		t.Fatalf("rejected = %d pending = %d", rejected, len(ledger.Pending()))
	}
}

func TestEngineDoubleStart(t *testing.T) {
	fx := newLiveFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fx.engine.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer fx.engine.Stop()

	if err := fx.engine.Start(ctx); err == nil {
		t.Fatalf("second start must fail")
	}
}

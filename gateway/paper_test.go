package gateway

import (
	"context"
	"testing"
	"time"

	"trading-engine-go/execution"
	"trading-engine-go/market"
	"trading-engine-go/order"
)

func TestPaperClientLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewPaperClient(execution.Config{SlippageRate: 0.001}, 8)
	defer p.Close()

	fills, err := p.SubscribeFills(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	id, err := p.SubmitOrder(ctx, order.Order{Symbol: "BTCUSDT", Side: order.SideBuy, Type: order.TypeMarket, Quantity: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st, _ := p.OrderStatus(ctx, id); st != order.StatusSubmitted {
		t.Fatalf("status = %s", st)
	}

	c := market.Candle{Symbol: "BTCUSDT", Open: 100, High: 101, Low: 99, Close: 100, Volume: 10, Ts: time.Now().UTC()}
	if err := p.OnMarketData(c); err != nil {
		t.Fatalf("on market data: %v", err)
	}

	select {
	case f := <-fills:
		if f.OrderID != id || f.Price != 100.1 {
			t.Fatalf("fill = %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no fill delivered")
	}
	if st, _ := p.OrderStatus(ctx, id); st != order.StatusFilled {
		t.Fatalf("status after fill = %s", st)
	}
}

func TestPaperClientSubmitWhileFillBufferFull(t *testing.T) {
	ctx := context.Background()
	p := NewPaperClient(execution.Config{}, 1)
	defer p.Close()

	fills, err := p.SubscribeFills(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// 两个必成市价单：一根K线产生两笔回报，超出容量1的缓冲
	if _, err := p.SubmitOrder(ctx, order.Order{Symbol: "BTCUSDT", Side: order.SideBuy, Type: order.TypeMarket, Quantity: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := p.SubmitOrder(ctx, order.Order{Symbol: "BTCUSDT", Side: order.SideBuy, Type: order.TypeMarket, Quantity: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	c := market.Candle{Symbol: "BTCUSDT", Open: 100, High: 101, Low: 99, Close: 100, Volume: 10, Ts: time.Now().UTC()}
	delivered := make(chan error, 1)
	go func() { delivered <- p.OnMarketData(c) }()

	// 第二笔回报投递受阻期间，下单路径必须仍然可用
	submitted := make(chan error, 1)
	go func() {
		_, err := p.SubmitOrder(ctx, order.Order{Symbol: "BTCUSDT", Side: order.SideSell, Type: order.TypeLimit, Quantity: 1, Price: 200})
		submitted <- err
	}()

	select {
	case err := <-submitted:
		if err != nil {
			t.Fatalf("submit during delivery: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit blocked while fill delivery was pending")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fills:
		case <-time.After(time.Second):
			t.Fatalf("fill %d not delivered", i)
		}
	}
	if err := <-delivered; err != nil {
		t.Fatalf("on market data: %v", err)
	}
}

func TestPaperClientCancel(t *testing.T) {
	ctx := context.Background()
	p := NewPaperClient(execution.Config{}, 8)
	defer p.Close()

	id, _ := p.SubmitOrder(ctx, order.Order{Symbol: "BTCUSDT", Side: order.SideSell, Type: order.TypeLimit, Quantity: 1, Price: 200})
	if err := p.CancelOrder(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if st, _ := p.OrderStatus(ctx, id); st != order.StatusCanceled {
		t.Fatalf("status = %s", st)
	}
	if err := p.CancelOrder(ctx, "missing"); err == nil {
		t.Fatal("cancel unknown must fail")
	}
}

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trading-engine-go/execution"
	"trading-engine-go/market"
	"trading-engine-go/order"
)

// PaperClient is an in-process exchange used for dry runs: it accepts
// orders into its own ledger and matches them against incoming market data
// with the same fill model as backtests. Fills are delivered through
// SubscribeFills just like a real exchange.
type PaperClient struct {
	mu      sync.Mutex
	ledger  *order.Ledger
	sim     *execution.Simulator
	fills   chan order.Fill
	done    chan struct{}
	sending sync.WaitGroup
	subbed  bool
	closed  bool
}

func NewPaperClient(cfg execution.Config, fillBuffer int) *PaperClient {
	if fillBuffer <= 0 {
		fillBuffer = 256
	}
	return &PaperClient{
		ledger: order.NewLedger(),
		sim:    execution.NewSimulator(cfg),
		fills:  make(chan order.Fill, fillBuffer),
		done:   make(chan struct{}),
	}
}

func (p *PaperClient) SubmitOrder(ctx context.Context, o order.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", &ExecutionError{Op: "submit", Err: fmt.Errorf("paper client closed")}
	}
	accepted, err := p.ledger.Submit(o, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return accepted.ID, nil
}

func (p *PaperClient) CancelOrder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.ledger.Cancel(id, "client cancel", time.Now().UTC())
	return err
}

func (p *PaperClient) OrderStatus(ctx context.Context, id string) (order.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.ledger.Get(id)
	if !ok {
		return "", order.ErrUnknownOrder
	}
	return o.Status, nil
}

func (p *PaperClient) SubscribeFills(ctx context.Context) (<-chan order.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subbed {
		return nil, fmt.Errorf("fills already subscribed")
	}
	p.subbed = true
	return p.fills, nil
}

// OnMarketData matches resting orders against the candle and emits fills.
// Call it from the market data path. Matching runs under the client lock;
// delivery happens after release so a full fill buffer never blocks the
// order-entry path.
func (p *PaperClient) OnMarketData(c market.Candle) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	fills, err := p.sim.ProcessCandle(p.ledger, c)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.sending.Add(1)
	p.mu.Unlock()
	defer p.sending.Done()

	for _, f := range fills {
		select {
		case p.fills <- f:
		case <-p.done:
			return nil
		}
	}
	return nil
}

// Close stops accepting orders, unblocks in-flight fill delivery, and
// closes the fill channel once all deliveries have returned.
func (p *PaperClient) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.sending.Wait()
	close(p.fills)
}

var _ Client = (*PaperClient)(nil)

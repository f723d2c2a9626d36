package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trading-engine-go/order"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed allows all requests.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of probes through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrBreakerOpen is returned while the breaker rejects requests.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerConfig configures the order gateway circuit breaker.
type BreakerConfig struct {
	Threshold      int           // consecutive failures before opening
	Cooldown       time.Duration // how long to stay open
	HalfOpenProbes int           // probes required to close again
}

// Breaker trips after Threshold consecutive exchange failures, rejects
// everything for Cooldown, then lets HalfOpenProbes requests through.
// Any probe failure reopens it; all probes succeeding closes it.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	probes    int

	mu         sync.Mutex
	state      BreakerState
	consecFail int
	probeOK    int
	openedAt   time.Time

	now func() time.Time // for tests
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 3
	}
	return &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.HalfOpenProbes,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed. An open breaker moves to
// half-open once the cooldown has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			b.probeOK = 0
			return nil
		}
		remaining := b.cooldown - b.now().Sub(b.openedAt)
		return fmt.Errorf("%w, retry in %v", ErrBreakerOpen, remaining.Round(time.Millisecond))
	default:
		return fmt.Errorf("unknown breaker state %d", b.state)
	}
}

// RecordSuccess notes a completed request.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecFail = 0
	if b.state == BreakerHalfOpen {
		b.probeOK++
		if b.probeOK >= b.probes {
			b.state = BreakerClosed
		}
	}
}

// RecordFailure notes a failed request; it may trip the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecFail++
	switch b.state {
	case BreakerClosed:
		if b.consecFail >= b.threshold {
			b.open()
		}
	case BreakerHalfOpen:
		// 半开状态探测失败，立即重新熔断
		b.open()
	}
}

func (b *Breaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.probeOK = 0
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.consecFail = 0
	b.probeOK = 0
	b.openedAt = time.Time{}
}

// BreakerClient wraps a Client so order mutations flow through a circuit
// breaker. Only transient exchange failures count against the breaker;
// validation errors pass through without tripping it.
type BreakerClient struct {
	inner   Client
	breaker *Breaker
}

func WithBreaker(inner Client, b *Breaker) *BreakerClient {
	if b == nil {
		b = NewBreaker(BreakerConfig{})
	}
	return &BreakerClient{inner: inner, breaker: b}
}

// Breaker exposes the underlying breaker for inspection.
func (c *BreakerClient) Breaker() *Breaker { return c.breaker }

func (c *BreakerClient) SubmitOrder(ctx context.Context, o order.Order) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		return "", &ExecutionError{Op: "submit", Err: err}
	}
	id, err := c.inner.SubmitOrder(ctx, o)
	c.record(err)
	return id, err
}

func (c *BreakerClient) CancelOrder(ctx context.Context, id string) error {
	if err := c.breaker.Allow(); err != nil {
		return &ExecutionError{Op: "cancel", Err: err}
	}
	err := c.inner.CancelOrder(ctx, id)
	c.record(err)
	return err
}

func (c *BreakerClient) OrderStatus(ctx context.Context, id string) (order.Status, error) {
	return c.inner.OrderStatus(ctx, id)
}

func (c *BreakerClient) SubscribeFills(ctx context.Context) (<-chan order.Fill, error) {
	return c.inner.SubscribeFills(ctx)
}

func (c *BreakerClient) record(err error) {
	switch {
	case err == nil:
		c.breaker.RecordSuccess()
	case IsRetryable(err):
		c.breaker.RecordFailure()
	}
}

var _ Client = (*BreakerClient)(nil)

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-engine-go/execution"
	"trading-engine-go/gateway"
	"trading-engine-go/infrastructure/alert"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/infrastructure/monitor"
	"trading-engine-go/inventory"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// State 引擎状态
type State int

const (
	// StateIdle 空闲状态
	StateIdle State = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 实盘引擎配置
type Config struct {
	Symbol            string
	RetryAttempts     int           // 下单重试次数
	RetryBaseDelay    time.Duration // 重试基础退避
	DrainTimeout      time.Duration // 停机时等待在途成交的时长
	ReconcileInterval time.Duration // 周期性对账间隔，交易所状态为准
}

// Components 引擎依赖组件
type Components struct {
	Strategy   strategy.Strategy
	Client     gateway.Client
	Limiter    gateway.RateLimiter
	Stream     market.Stream
	Ledger     *order.Ledger
	Tracker    *inventory.Tracker
	Gate       *risk.Gate
	Reconciler *execution.Reconciler
	Logger     *logger.Logger
	Monitor    *monitor.Monitor
	Alerts     *alert.Manager
}

// Engine 实盘交易引擎：单goroutine事件循环，行情与成交回报
// 经由通道汇入，处理每个行情事件前先排空已到达的成交。
type Engine struct {
	config Config

	strat      strategy.Strategy
	client     gateway.Client
	limiter    gateway.RateLimiter
	stream     market.Stream
	ledger     *order.Ledger
	tracker    *inventory.Tracker
	gate       *risk.Gate
	reconciler *execution.Reconciler
	logger     *logger.Logger
	monitor    *monitor.Monitor
	alerts     *alert.Manager

	view        *accountView
	lastClose   float64
	lastDropped uint64
	liquidating bool

	state State
	mu    sync.RWMutex

	stopChan chan struct{}
	doneChan chan struct{}
}

// New 创建实盘引擎
func New(cfg Config, comp Components) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(comp); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 30 * time.Second
	}
	if comp.Limiter == nil {
		comp.Limiter = gateway.Unlimited()
	}
	if comp.Reconciler == nil {
		comp.Reconciler = execution.NewReconciler(comp.Ledger, comp.Tracker, comp.Logger)
	}

	return &Engine{
		config:     cfg,
		strat:      comp.Strategy,
		client:     comp.Client,
		limiter:    comp.Limiter,
		stream:     comp.Stream,
		ledger:     comp.Ledger,
		tracker:    comp.Tracker,
		gate:       comp.Gate,
		reconciler: comp.Reconciler,
		logger:     comp.Logger,
		monitor:    comp.Monitor,
		alerts:     comp.Alerts,
		view:       &accountView{ledger: comp.Ledger, tracker: comp.Tracker},
		state:      StateIdle,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// Start 启动引擎
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	e.state = StateRunning
	e.mu.Unlock()

	if err := e.strat.Initialize(e.view); err != nil {
		return fmt.Errorf("strategy init: %w", err)
	}

	fills, err := e.client.SubscribeFills(ctx)
	if err != nil {
		return fmt.Errorf("subscribe fills: %w", err)
	}

	e.logger.Info("engine starting",
		zap.String("symbol", e.config.Symbol),
		zap.String("strategy", e.strat.Name()))

	go e.run(ctx, fills)

	return nil
}

// Stop 停止引擎：撤掉全部挂单并等待在途成交落账。
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.mu.Unlock()

	e.logger.Info("engine stopping")

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	select {
	case <-e.doneChan:
	case <-time.After(10*time.Second + e.config.DrainTimeout):
		e.logger.Warn("timeout waiting for engine to stop")
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	e.logger.Info("engine stopped")
	return nil
}

// GetState 获取引擎状态
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// run 主事件循环
func (e *Engine) run(ctx context.Context, fills <-chan order.Fill) {
	defer close(e.doneChan)

	reconcile := time.NewTicker(e.config.ReconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("context done, shutting down")
			e.shutdown(fills)
			return

		case <-e.stopChan:
			e.shutdown(fills)
			return

		case f, ok := <-fills:
			if !ok {
				e.logger.Warn("fill stream closed")
				e.shutdown(nil)
				return
			}
			if err := e.handleFill(f); err != nil {
				e.fatal(err)
				e.shutdown(fills)
				return
			}

		case <-reconcile.C:
			if err := e.reconciler.SyncStatuses(ctx, e.client, time.Now().UTC()); err != nil {
				e.logger.Warn("status reconcile failed", zap.Error(err))
			}

		case ev, ok := <-e.stream.Events():
			if !ok {
				if err := e.stream.Err(); err != nil {
					e.logger.Error("market stream failed", zap.Error(err))
				}
				e.shutdown(fills)
				return
			}
			// 先排空已到达的成交，策略永远看到最新账本
			if err := e.drainFills(fills); err != nil {
				e.fatal(err)
				e.shutdown(fills)
				return
			}
			e.handleEvent(ctx, ev)
		}
	}
}

// drainFills 非阻塞排空成交通道。
func (e *Engine) drainFills(fills <-chan order.Fill) error {
	for {
		select {
		case f, ok := <-fills:
			if !ok {
				return nil
			}
			if err := e.handleFill(f); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// handleFill 单笔成交落账。账本不一致（超量成交）是致命错误；
// 未知/终态订单的回报由 reconciler 计数后丢弃。
func (e *Engine) handleFill(f order.Fill) error {
	trade, discarded, err := e.reconciler.OnFill(f)
	if err != nil {
		if errors.Is(err, order.ErrOverFill) || errors.Is(err, order.ErrInvalidState) {
			return fmt.Errorf("ledger corrupted by fill for %s: %w", f.OrderID, err)
		}
		return err
	}

	// 被 reconciler 丢弃的回报不进入策略
	if discarded {
		if e.monitor != nil {
			e.monitor.RecordAnomalyDiscarded()
		}
		return nil
	}

	if e.monitor != nil {
		e.monitor.RecordFill(f.Quantity)
		if o, ok := e.ledger.Get(f.OrderID); ok && o.Status == order.StatusFilled {
			e.monitor.RecordOrderFilled()
		}
	}
	e.strat.OnFill(e.view, f)

	if trade != nil {
		e.logger.LogTrade("position_closed", map[string]interface{}{
			"event":  "position_closed",
			"symbol": trade.Symbol,
			"pnl":    trade.PnL,
		})
		if e.monitor != nil {
			e.monitor.RecordTradeClosed()
		}
	}
	return nil
}

// handleEvent 处理单个行情事件。
func (e *Engine) handleEvent(ctx context.Context, ev market.Event) {
	start := time.Now()
	defer func() {
		if e.monitor != nil {
			e.monitor.RecordEvent(time.Since(start).Seconds())
		}
	}()

	if ev.Tick != nil {
		e.tracker.MarkPrice(ev.Tick.Symbol, ev.Tick.Price, ev.Tick.Ts)
		e.updateGauges()
		return
	}
	if ev.Candle == nil {
		return
	}
	c := *ev.Candle

	e.tracker.MarkPrice(c.Symbol, c.Close, c.Ts)
	e.lastClose = c.Close

	if e.gate.ShouldLiquidate() {
		if !e.liquidating {
			e.liquidating = true
			e.liquidate(ctx, c.Ts)
		}
	} else {
		e.liquidating = false
		signals, err := e.strat.OnCandle(e.view, c)
		if err != nil {
			e.logger.Error("strategy failed", zap.Error(err), zap.String("strategy", e.strat.Name()))
		} else {
			for _, sig := range signals {
				e.routeSignal(ctx, sig, c.Ts)
			}
		}
	}

	e.updateGauges()
	e.recordFeedDrops()
}

// routeSignal 执行单个信号；所有失败都记录但不打断事件循环。
func (e *Engine) routeSignal(ctx context.Context, sig strategy.Signal, at time.Time) {
	if sig.Type == strategy.SignalHold {
		return
	}
	if e.logger != nil {
		e.logger.LogSignal(e.strat.Name(), string(sig.Type), map[string]interface{}{
			"symbol": sig.Symbol,
			"qty":    sig.Quantity,
		})
	}

	plan, err := planSignal(sig, e.ledger, e.tracker.NetExposure(sig.Symbol))
	if err != nil {
		if !errors.Is(err, order.ErrUnknownOrder) {
			e.logger.Error("signal planning failed", zap.Error(err))
		}
		return
	}

	reason := "modify_replace"
	if sig.Type == strategy.SignalClose {
		reason = "close_position"
	}
	for _, id := range plan.cancels {
		e.cancelOrder(ctx, id, reason, at)
	}
	for _, o := range plan.orders {
		e.submitOrder(ctx, o, at)
	}
}

// submitOrder 风控 → 本地账本 → 网关（限速+重试）。
// 网关最终失败时本地订单转REJECTED，策略收到回调。
func (e *Engine) submitOrder(ctx context.Context, o order.Order, at time.Time) {
	if err := e.gate.PreOrder(o.Symbol, o.SignedQty(), riskPrice(o, e.lastClose)); err != nil {
		if !risk.IsRejection(err) {
			e.logger.Error("risk check failed", zap.Error(err))
			return
		}
		e.rejectLocally(o, risk.Reason(err), at)
		if e.monitor != nil {
			e.monitor.RecordRiskReject()
		}
		return
	}

	submitted, err := e.ledger.Submit(o, at)
	if err != nil {
		if order.IsValidation(err) {
			o.Status = order.StatusRejected
			o.Reason = err.Error()
			e.strat.OnReject(e.view, o, o.Reason)
			if e.monitor != nil {
				e.monitor.RecordOrderRejected()
			}
			return
		}
		e.logger.Error("ledger submit failed", zap.Error(err))
		return
	}

	err = gateway.Retry(ctx, e.config.RetryAttempts, e.config.RetryBaseDelay, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		_, submitErr := e.client.SubmitOrder(ctx, submitted)
		if submitErr != nil && e.monitor != nil {
			e.monitor.RecordSubmitRetry("retried")
		}
		return submitErr
	})
	if err != nil {
		e.logger.Error("gateway submit failed", zap.String("order_id", submitted.ID), zap.Error(err))
		if e.monitor != nil {
			e.monitor.RecordSubmitRetry("exhausted")
		}
		if rejected, rerr := e.ledger.Reject(submitted.ID, "gateway_error", at); rerr == nil {
			e.strat.OnReject(e.view, rejected, rejected.Reason)
		}
		if e.monitor != nil {
			e.monitor.RecordOrderRejected()
		}
		if e.alerts != nil {
			_ = e.alerts.SendError("order submission failed", map[string]interface{}{
				"order_id": submitted.ID,
				"symbol":   submitted.Symbol,
			})
		}
		return
	}

	if e.monitor != nil {
		e.monitor.RecordOrderSubmitted()
	}
	e.logger.LogOrder("submitted", submitted.ID, map[string]interface{}{
		"symbol": submitted.Symbol,
		"status": string(submitted.Status),
		"side":   string(submitted.Side),
		"type":   string(submitted.Type),
		"qty":    submitted.Quantity,
	})
}

// rejectLocally 风控拒单：订单入账后立即转REJECTED，保留审计痕迹。
func (e *Engine) rejectLocally(o order.Order, reason string, at time.Time) {
	submitted, err := e.ledger.Submit(o, at)
	if err != nil {
		o.Status = order.StatusRejected
		o.Reason = reason
		e.strat.OnReject(e.view, o, reason)
		return
	}
	rejected, err := e.ledger.Reject(submitted.ID, reason, at)
	if err != nil {
		return
	}
	e.strat.OnReject(e.view, rejected, reason)
	if e.monitor != nil {
		e.monitor.RecordOrderRejected()
	}
}

func (e *Engine) cancelOrder(ctx context.Context, id, reason string, at time.Time) {
	if err := e.client.CancelOrder(ctx, id); err != nil {
		e.logger.Error("gateway cancel failed", zap.String("order_id", id), zap.Error(err))
	}
	if _, err := e.ledger.Cancel(id, reason, at); err != nil {
		e.logger.Error("ledger cancel failed", zap.String("order_id", id), zap.Error(err))
		return
	}
	if e.monitor != nil {
		e.monitor.RecordOrderCanceled()
	}
}

// liquidate 日内亏损越限：撤单并市价清仓，平仓单绕过风控。
func (e *Engine) liquidate(ctx context.Context, at time.Time) {
	e.logger.LogRisk("liquidation", map[string]interface{}{
		"event":  "liquidation",
		"symbol": e.config.Symbol,
		"reason": risk.ErrMaxDailyLoss.Error(),
	})
	if e.monitor != nil {
		e.monitor.RecordLiquidation()
	}
	if e.alerts != nil {
		_ = e.alerts.SendCritical("daily loss limit breached, liquidating", map[string]interface{}{
			"symbol": e.config.Symbol,
			"equity": e.tracker.Equity(),
		})
	}

	for _, o := range e.ledger.Pending() {
		e.cancelOrder(ctx, o.ID, "liquidation", at)
	}
	for _, p := range e.tracker.Positions() {
		if p.Quantity == 0 {
			continue
		}
		side := order.SideSell
		if p.Side == inventory.Short {
			side = order.SideBuy
		}
		closing := order.Order{
			Symbol:   p.Symbol,
			Side:     side,
			Type:     order.TypeMarket,
			Quantity: p.Quantity,
		}
		submitted, err := e.ledger.Submit(closing, at)
		if err != nil {
			e.logger.Error("liquidation submit failed", zap.Error(err))
			continue
		}
		if _, err := e.client.SubmitOrder(ctx, submitted); err != nil {
			e.logger.Error("liquidation gateway submit failed", zap.String("order_id", submitted.ID), zap.Error(err))
		}
	}
}

// shutdown 撤掉挂单并在限定时间内等待在途成交。
func (e *Engine) shutdown(fills <-chan order.Fill) {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.DrainTimeout)
	defer cancel()

	now := time.Now().UTC()
	for _, o := range e.ledger.Pending() {
		e.cancelOrder(ctx, o.ID, "engine_shutdown", now)
	}

	if fills != nil {
		deadline := time.NewTimer(e.config.DrainTimeout)
		defer deadline.Stop()
	drain:
		for {
			select {
			case f, ok := <-fills:
				if !ok {
					break drain
				}
				if err := e.handleFill(f); err != nil {
					e.logger.Error("fill during shutdown", zap.Error(err))
					break drain
				}
			case <-deadline.C:
				break drain
			}
		}
	}

	e.strat.Shutdown(e.view)
	e.updateGauges()
}

func (e *Engine) updateGauges() {
	if e.monitor == nil {
		return
	}
	e.monitor.UpdateAccount(e.tracker.Equity(), e.tracker.Cash(), e.tracker.RealizedPnL(), e.tracker.UnrealizedPnL())
	e.monitor.UpdateBookSizes(len(e.tracker.Positions()), len(e.ledger.Pending()))
}

// recordFeedDrops 把行情缓冲的累计丢弃量换算为增量上报。
func (e *Engine) recordFeedDrops() {
	if e.monitor == nil {
		return
	}
	buf, ok := e.stream.(*market.Buffer)
	if !ok {
		return
	}
	if dropped := buf.Dropped(); dropped > e.lastDropped {
		e.monitor.RecordFeedDrop(dropped - e.lastDropped)
		e.lastDropped = dropped
	}
}

func (e *Engine) fatal(err error) {
	e.logger.Error("fatal engine error", zap.Error(err))
	if e.alerts != nil {
		_ = e.alerts.SendCritical(err.Error(), nil)
	}
}

// validateConfig 验证配置
func validateConfig(cfg Config) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	return nil
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.Strategy == nil {
		return errors.New("strategy is required")
	}
	if comp.Client == nil {
		return errors.New("client is required")
	}
	if comp.Stream == nil {
		return errors.New("stream is required")
	}
	if comp.Ledger == nil {
		return errors.New("ledger is required")
	}
	if comp.Tracker == nil {
		return errors.New("tracker is required")
	}
	if comp.Gate == nil {
		return errors.New("gate is required")
	}
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

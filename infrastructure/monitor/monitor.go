package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersSubmitted prometheus.Counter
	ordersFilled    prometheus.Counter
	ordersCanceled  prometheus.Counter
	ordersRejected  prometheus.Counter
	fills           prometheus.Counter
	filledVolume    prometheus.Counter

	// 交易指标
	tradesClosed prometheus.Counter

	// 账户指标
	equity        prometheus.Gauge
	cash          prometheus.Gauge
	realizedPnL   prometheus.Gauge
	unrealizedPnL prometheus.Gauge
	openPositions prometheus.Gauge
	pendingOrders prometheus.Gauge

	// 风控指标
	riskRejects  prometheus.Counter
	liquidations prometheus.Counter

	// 引擎指标
	eventsProcessed   prometheus.Counter
	eventLatency      prometheus.Histogram
	anomaliesDropped  prometheus.Counter
	feedEventsDropped prometheus.Counter

	// 网关指标
	submitRetries *prometheus.CounterVec
	wsReconnects  prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "engine",
		Subsystem: "trading",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		ordersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_submitted_total",
			Help:      "订单提交总数",
		}),
		ordersFilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_filled_total",
			Help:      "订单完全成交总数",
		}),
		ordersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_canceled_total",
			Help:      "订单撤销总数",
		}),
		ordersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "订单拒绝总数（校验+风控+执行）",
		}),
		fills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "成交回报总数",
		}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "累计成交数量",
		}),

		tradesClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_closed_total",
			Help:      "平仓笔数总数",
		}),

		equity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "equity",
			Help:      "当前账户权益",
		}),
		cash: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cash",
			Help:      "当前可用资金",
		}),
		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "realized_pnl",
			Help:      "已实现盈亏",
		}),
		unrealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unrealized_pnl",
			Help:      "未实现盈亏",
		}),
		openPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "open_positions",
			Help:      "当前持仓数量",
		}),
		pendingOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "pending_orders",
			Help:      "当前活跃订单数量",
		}),

		riskRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "risk_rejects_total",
			Help:      "风控拒单总数",
		}),
		liquidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "liquidations_total",
			Help:      "强制清仓触发次数",
		}),

		eventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "events_processed_total",
			Help:      "已处理市场事件总数",
		}),
		eventLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "event_handling_seconds",
			Help:      "单个市场事件处理耗时（秒）",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		anomaliesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "anomalies_discarded_total",
			Help:      "丢弃的异常回报总数（未知/终态订单）",
		}),
		feedEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_events_dropped_total",
			Help:      "行情队列溢出丢弃的事件总数",
		}),

		submitRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "submit_retries_total",
				Help:      "下单重试总数",
			},
			[]string{"outcome"},
		),
		wsReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_reconnects_total",
			Help:      "行情连接重连次数",
		}),
	}

	return m
}

// 订单相关方法
func (m *Monitor) RecordOrderSubmitted() { m.ordersSubmitted.Inc() }

func (m *Monitor) RecordOrderFilled() { m.ordersFilled.Inc() }

func (m *Monitor) RecordOrderCanceled() { m.ordersCanceled.Inc() }

func (m *Monitor) RecordOrderRejected() { m.ordersRejected.Inc() }

func (m *Monitor) RecordFill(volume float64) {
	m.fills.Inc()
	m.filledVolume.Add(volume)
}

func (m *Monitor) RecordTradeClosed() { m.tradesClosed.Inc() }

// 账户相关方法
func (m *Monitor) UpdateAccount(equity, cash, realized, unrealized float64) {
	m.equity.Set(equity)
	m.cash.Set(cash)
	m.realizedPnL.Set(realized)
	m.unrealizedPnL.Set(unrealized)
}

func (m *Monitor) UpdateBookSizes(positions, pending int) {
	m.openPositions.Set(float64(positions))
	m.pendingOrders.Set(float64(pending))
}

// 风控相关方法
func (m *Monitor) RecordRiskReject() { m.riskRejects.Inc() }

func (m *Monitor) RecordLiquidation() { m.liquidations.Inc() }

// 引擎相关方法
func (m *Monitor) RecordEvent(seconds float64) {
	m.eventsProcessed.Inc()
	m.eventLatency.Observe(seconds)
}

func (m *Monitor) RecordAnomalyDiscarded() { m.anomaliesDropped.Inc() }

func (m *Monitor) RecordFeedDrop(n uint64) { m.feedEventsDropped.Add(float64(n)) }

// 网关相关方法
func (m *Monitor) RecordSubmitRetry(outcome string) {
	m.submitRetries.WithLabelValues(outcome).Inc()
}

func (m *Monitor) RecordWSReconnect() { m.wsReconnects.Inc() }

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

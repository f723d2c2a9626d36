package strategy

import (
	"trading-engine-go/inventory"
	"trading-engine-go/market"
	"trading-engine-go/order"
)

// Context 策略可见的只读账户视图，由引擎实现。
type Context interface {
	Position(symbol string) (inventory.Position, bool)
	PendingOrders(symbol string) []order.Order
	Equity() float64
	Cash() float64
}

// Strategy 统一的策略回调接口。实现必须无副作用地返回信号，
// 不直接触碰订单账本。
type Strategy interface {
	Name() string
	Initialize(ctx Context) error
	// OnCandle 每根K线调用一次；返回的信号按序执行。
	OnCandle(ctx Context, c market.Candle) ([]Signal, error)
	// OnFill 成交通知，包括被拒订单之外的全部账本变化。
	OnFill(ctx Context, f order.Fill)
	// OnReject 订单被风控或校验拒绝时通知。
	OnReject(ctx Context, o order.Order, reason string)
	Shutdown(ctx Context)
}

// BaseStrategy 提供空实现，策略只需覆盖关心的回调。
type BaseStrategy struct{}

func (BaseStrategy) Initialize(Context) error { return nil }

func (BaseStrategy) OnFill(Context, order.Fill) {}

func (BaseStrategy) OnReject(Context, order.Order, string) {}

func (BaseStrategy) Shutdown(Context) {}

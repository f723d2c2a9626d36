package engine

import (
	"fmt"

	"trading-engine-go/order"
	"trading-engine-go/strategy"
)

// signalPlan 信号翻译出的账本动作：先撤单，再按序提交新订单。
type signalPlan struct {
	cancels []string
	orders  []order.Order
}

func (p signalPlan) empty() bool {
	return len(p.cancels) == 0 && len(p.orders) == 0
}

// orderBook 是 planSignal 需要的账本只读视图；*order.Ledger 满足它。
type orderBook interface {
	Get(id string) (order.Order, bool)
	IsTerminal(id string) bool
	PendingFor(symbol string) []order.Order
}

// planSignal 把策略意图翻译为订单操作。netExposure 为 sig.Symbol 的
// 带方向净仓位（买正卖负）；MODIFY 信号只带订单号，按 ID 直接查账本。
func planSignal(sig strategy.Signal, book orderBook, netExposure float64) (signalPlan, error) {
	var plan signalPlan

	switch sig.Type {
	case strategy.SignalHold:
		return plan, nil

	case strategy.SignalBuy, strategy.SignalSell:
		o := order.Order{
			Symbol:    sig.Symbol,
			Side:      order.SideBuy,
			Quantity:  sig.Quantity,
			Price:     sig.LimitPrice,
			StopPrice: sig.StopPrice,
		}
		if sig.Type == strategy.SignalSell {
			o.Side = order.SideSell
		}
		o.Type = orderType(sig.LimitPrice, sig.StopPrice)
		plan.orders = append(plan.orders, o)
		return plan, nil

	case strategy.SignalClose:
		for _, p := range book.PendingFor(sig.Symbol) {
			plan.cancels = append(plan.cancels, p.ID)
		}
		if netExposure != 0 {
			o := order.Order{
				Symbol:   sig.Symbol,
				Side:     order.SideBuy,
				Type:     order.TypeMarket,
				Quantity: netExposure,
			}
			if netExposure > 0 {
				o.Side = order.SideSell
			} else {
				o.Quantity = -netExposure
			}
			plan.orders = append(plan.orders, o)
		}
		return plan, nil

	case strategy.SignalModify:
		// 撤旧挂新；零值参数沿用原订单。
		current, ok := book.Get(sig.OrderID)
		if !ok || book.IsTerminal(sig.OrderID) {
			return plan, fmt.Errorf("%w: %s", order.ErrUnknownOrder, sig.OrderID)
		}
		plan.cancels = append(plan.cancels, current.ID)

		replacement := order.Order{
			Symbol:    current.Symbol,
			Side:      current.Side,
			Type:      current.Type,
			Quantity:  current.Remaining(),
			Price:     current.Price,
			StopPrice: current.StopPrice,
		}
		if sig.NewQuantity > 0 {
			replacement.Quantity = sig.NewQuantity
		}
		if sig.NewPrice > 0 {
			replacement.Price = sig.NewPrice
		}
		plan.orders = append(plan.orders, replacement)
		return plan, nil

	default:
		return plan, fmt.Errorf("unknown signal type %q", sig.Type)
	}
}

func orderType(limitPrice, stopPrice float64) order.Type {
	switch {
	case stopPrice > 0 && limitPrice > 0:
		return order.TypeStopLimit
	case stopPrice > 0:
		return order.TypeStop
	case limitPrice > 0:
		return order.TypeLimit
	default:
		return order.TypeMarket
	}
}

// riskPrice 风控估值用的参考价：限价优先，否则用最新收盘价。
func riskPrice(o order.Order, lastClose float64) float64 {
	if o.Price > 0 {
		return o.Price
	}
	if o.StopPrice > 0 {
		return o.StopPrice
	}
	return lastClose
}

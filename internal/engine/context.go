package engine

import (
	"trading-engine-go/inventory"
	"trading-engine-go/order"
)

// accountView 把账本+持仓包装成策略可见的只读视图。
type accountView struct {
	ledger  *order.Ledger
	tracker *inventory.Tracker
}

func (v *accountView) Position(symbol string) (inventory.Position, bool) {
	return v.tracker.Position(symbol)
}

func (v *accountView) PendingOrders(symbol string) []order.Order {
	return v.ledger.PendingFor(symbol)
}

func (v *accountView) Equity() float64 {
	return v.tracker.Equity()
}

func (v *accountView) Cash() float64 {
	return v.tracker.Cash()
}

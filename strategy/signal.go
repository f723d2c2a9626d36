package strategy

// SignalType 策略意图类型。
type SignalType string

const (
	SignalHold   SignalType = "HOLD"
	SignalBuy    SignalType = "BUY"
	SignalSell   SignalType = "SELL"
	SignalClose  SignalType = "CLOSE"
	SignalModify SignalType = "MODIFY"
)

// Signal 策略输出的交易意图；引擎负责翻译为订单操作。
type Signal struct {
	Type     SignalType
	Symbol   string
	Quantity float64
	// LimitPrice 大于零表示限价单，否则市价。
	LimitPrice float64
	// StopPrice 大于零表示带止损触发。
	StopPrice float64
	// Modify 专用：目标订单与新参数（零值字段保持不变）。
	OrderID     string
	NewPrice    float64
	NewQuantity float64
}

func Hold() Signal {
	return Signal{Type: SignalHold}
}

func MarketBuy(symbol string, qty float64) Signal {
	return Signal{Type: SignalBuy, Symbol: symbol, Quantity: qty}
}

func LimitBuy(symbol string, qty, price float64) Signal {
	return Signal{Type: SignalBuy, Symbol: symbol, Quantity: qty, LimitPrice: price}
}

func MarketSell(symbol string, qty float64) Signal {
	return Signal{Type: SignalSell, Symbol: symbol, Quantity: qty}
}

func LimitSell(symbol string, qty, price float64) Signal {
	return Signal{Type: SignalSell, Symbol: symbol, Quantity: qty, LimitPrice: price}
}

// ClosePosition 市价平掉该交易对的全部持仓并撤销其挂单。
func ClosePosition(symbol string) Signal {
	return Signal{Type: SignalClose, Symbol: symbol}
}

// ModifyOrder 调整活跃订单的价格/数量；实现为撤旧挂新。
func ModifyOrder(orderID string, newPrice, newQty float64) Signal {
	return Signal{Type: SignalModify, OrderID: orderID, NewPrice: newPrice, NewQuantity: newQty}
}

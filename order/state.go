package order

import "time"

// Status represents order lifecycle.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusSubmitted Status = "SUBMITTED"
	StatusPartial   Status = "PARTIALLY_FILLED"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type 订单类型。
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// Order 订单全量视图；由 Ledger 维护，外部只读副本。
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Type           Type
	Quantity       float64
	Price          float64 // LIMIT/STOP_LIMIT 的限价
	StopPrice      float64 // STOP/STOP_LIMIT 的触发价
	FilledQuantity float64
	AvgFillPrice   float64
	Status         Status
	Reason         string // 终态原因（拒绝/撤销说明）
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Remaining 返回未成交数量。
func (o *Order) Remaining() float64 {
	r := o.Quantity - o.FilledQuantity
	if r < 0 {
		return 0
	}
	return r
}

// SignedQty 返回带方向的委托数量（买正卖负）。
func (o *Order) SignedQty() float64 {
	if o.Side == SideSell {
		return -o.Quantity
	}
	return o.Quantity
}

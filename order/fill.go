package order

import "time"

// Fill 一次成交记录，写入后不可变。
type Fill struct {
	OrderID    string
	Symbol     string
	Side       Side
	Price      float64
	Quantity   float64
	Commission float64
	Ts         time.Time
}

// Notional 成交名义价值。
func (f Fill) Notional() float64 {
	return f.Price * f.Quantity
}

// SignedQty 返回带方向的成交数量（买正卖负）。
func (f Fill) SignedQty() float64 {
	if f.Side == SideSell {
		return -f.Quantity
	}
	return f.Quantity
}

package risk

// Guard 是通用接口，仓位、杠杆、集中度等检查都可实现。
// deltaQty 为本次下单数量（买正卖负），price 为参考成交价。
type Guard interface {
	PreOrder(symbol string, deltaQty, price float64) error
}

// MultiGuard 顺序执行多个 Guard，只要有一个返回错误则中止。
type MultiGuard struct {
	Guards []Guard
}

func (m MultiGuard) PreOrder(symbol string, deltaQty, price float64) error {
	for _, g := range m.Guards {
		if g == nil {
			continue
		}
		if err := g.PreOrder(symbol, deltaQty, price); err != nil {
			return err
		}
	}
	return nil
}

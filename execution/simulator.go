package execution

import (
	"fmt"

	"trading-engine-go/market"
	"trading-engine-go/order"
)

// FillPolicy 限价成交定价策略。
type FillPolicy string

const (
	// PolicyOptimistic 按限价原价成交。
	PolicyOptimistic FillPolicy = "optimistic"
	// PolicyRealistic 在限价基础上向不利方向偏移 slippage，模拟排队与冲击成本。
	PolicyRealistic FillPolicy = "realistic"
)

// Config 成交模拟参数。
type Config struct {
	CommissionRate float64
	SlippageRate   float64
	Policy         FillPolicy
	// CapLiquidity 开启后单根K线可成交量受 LiquidityFraction*Volume 限制，
	// 超出部分留待后续K线，可能产生部分成交。默认关闭。
	CapLiquidity      bool
	LiquidityFraction float64
}

// Simulator 对挂单账本逐K线撮合；给定相同输入输出完全一致。
type Simulator struct {
	cfg Config
}

func NewSimulator(cfg Config) *Simulator {
	if cfg.Policy == "" {
		cfg.Policy = PolicyOptimistic
	}
	if cfg.CapLiquidity && cfg.LiquidityFraction <= 0 {
		cfg.LiquidityFraction = 1.0
	}
	return &Simulator{cfg: cfg}
}

// ProcessCandle 按提交顺序撮合该交易对的全部活跃订单，将成交写回账本并返回。
// 账本写入失败说明状态已损坏，错误必须向上传播并停机。
func (s *Simulator) ProcessCandle(ledger *order.Ledger, c market.Candle) ([]order.Fill, error) {
	budget := -1.0 // 负数表示不限量
	if s.cfg.CapLiquidity {
		budget = c.Volume * s.cfg.LiquidityFraction
	}

	var fills []order.Fill
	for _, o := range ledger.PendingFor(c.Symbol) {
		price, ok := s.fillPrice(o, c)
		if !ok {
			continue
		}
		qty := o.Remaining()
		if budget >= 0 {
			if budget <= 0 {
				break
			}
			if qty > budget {
				qty = budget
			}
			budget -= qty
		}
		f := order.Fill{
			OrderID:    o.ID,
			Symbol:     o.Symbol,
			Side:       o.Side,
			Price:      price,
			Quantity:   qty,
			Commission: s.cfg.CommissionRate * price * qty,
			Ts:         c.Ts,
		}
		if _, err := ledger.ApplyFill(f); err != nil {
			return fills, fmt.Errorf("apply simulated fill: %w", err)
		}
		fills = append(fills, f)
	}
	return fills, nil
}

// fillPrice 判定订单在该K线内是否成交及成交价。
func (s *Simulator) fillPrice(o order.Order, c market.Candle) (float64, bool) {
	switch o.Type {
	case order.TypeMarket:
		return s.slip(c.Close, o.Side), true

	case order.TypeLimit:
		return s.limitPrice(o.Side, o.Price, c)

	case order.TypeStop:
		// 触发后视同市价，以触发价为基准计算滑点
		if !stopTriggered(o.Side, o.StopPrice, c) {
			return 0, false
		}
		return s.slip(o.StopPrice, o.Side), true

	case order.TypeStopLimit:
		// 同一根K线内先触发再按限价规则判定
		if !stopTriggered(o.Side, o.StopPrice, c) {
			return 0, false
		}
		return s.limitPrice(o.Side, o.Price, c)
	}
	return 0, false
}

// limitPrice 限价穿越判定：买单要求 low 触及限价，卖单要求 high 触及限价。
func (s *Simulator) limitPrice(side order.Side, limit float64, c market.Candle) (float64, bool) {
	if side == order.SideBuy {
		if c.Low > limit {
			return 0, false
		}
	} else {
		if c.High < limit {
			return 0, false
		}
	}
	if s.cfg.Policy == PolicyRealistic {
		return s.slip(limit, side), true
	}
	return limit, true
}

// slip 市价基准价向不利方向偏移：买方付出更高、卖方拿到更低。
func (s *Simulator) slip(base float64, side order.Side) float64 {
	if side == order.SideBuy {
		return base * (1 + s.cfg.SlippageRate)
	}
	return base * (1 - s.cfg.SlippageRate)
}

// stopTriggered 买入止损在价格上穿触发，卖出止损在价格下穿触发。
func stopTriggered(side order.Side, stop float64, c market.Candle) bool {
	if side == order.SideBuy {
		return c.High >= stop
	}
	return c.Low <= stop
}

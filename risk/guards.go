package risk

import "fmt"

// Exposure 提供净仓位（多正空负）。
type Exposure interface {
	NetExposure(symbol string) float64
}

// Valuation 提供账户估值。
type Valuation interface {
	Equity() float64
	GrossNotional() float64
}

// PositionSizeGuard 限制任一交易对的净仓位绝对值。
type PositionSizeGuard struct {
	Max  float64
	Book Exposure
}

func (g *PositionSizeGuard) PreOrder(symbol string, deltaQty, price float64) error {
	if g.Max <= 0 {
		return nil
	}
	projected := deltaQty
	if g.Book != nil {
		projected += g.Book.NetExposure(symbol)
	}
	if abs(projected) > g.Max+eps {
		return fmt.Errorf("%w: %s projected %.6f max %.6f",
			ErrMaxPositionSize, symbol, projected, g.Max)
	}
	return nil
}

// SymbolLimitGuard 按交易对单独限仓；未配置的交易对不限制。
type SymbolLimitGuard struct {
	Limits map[string]float64
	Book   Exposure
}

func (g *SymbolLimitGuard) PreOrder(symbol string, deltaQty, price float64) error {
	limit, ok := g.Limits[symbol]
	if !ok || limit <= 0 {
		return nil
	}
	projected := deltaQty
	if g.Book != nil {
		projected += g.Book.NetExposure(symbol)
	}
	if abs(projected) > limit+eps {
		return fmt.Errorf("%w: %s projected %.6f limit %.6f",
			ErrSymbolLimit, symbol, projected, limit)
	}
	return nil
}

// LeverageGuard 限制总名义敞口对权益的倍数。
type LeverageGuard struct {
	Max  float64
	Book Valuation
}

func (g *LeverageGuard) PreOrder(symbol string, deltaQty, price float64) error {
	if g.Max <= 0 || g.Book == nil {
		return nil
	}
	equity := g.Book.Equity()
	if equity <= 0 {
		return fmt.Errorf("%w: equity %.2f is non-positive", ErrMaxLeverage, equity)
	}
	projected := g.Book.GrossNotional() + abs(deltaQty)*price
	if projected/equity > g.Max+eps {
		return fmt.Errorf("%w: projected notional %.2f equity %.2f max %.2fx",
			ErrMaxLeverage, projected, equity, g.Max)
	}
	return nil
}

// ConcentrationGuard 限制单一交易对名义敞口占权益的比例。
type ConcentrationGuard struct {
	MaxFraction float64
	Book        Valuation
	Exposure    Exposure
}

func (g *ConcentrationGuard) PreOrder(symbol string, deltaQty, price float64) error {
	if g.MaxFraction <= 0 || g.Book == nil {
		return nil
	}
	equity := g.Book.Equity()
	if equity <= 0 {
		return fmt.Errorf("%w: equity %.2f is non-positive", ErrMaxConcentration, equity)
	}
	net := deltaQty
	if g.Exposure != nil {
		net += g.Exposure.NetExposure(symbol)
	}
	fraction := abs(net) * price / equity
	if fraction > g.MaxFraction+eps {
		return fmt.Errorf("%w: %s fraction %.4f max %.4f",
			ErrMaxConcentration, symbol, fraction, g.MaxFraction)
	}
	return nil
}

const eps = 1e-9

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

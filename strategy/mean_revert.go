package strategy

import (
	"fmt"

	"trading-engine-go/market"
)

// MeanRevert 均值回归策略：收盘价跌破波动率下轨时做多，
// 回归均值后平仓。下轨宽度随EWMA波动率自适应。
type MeanRevert struct {
	BaseStrategy

	Symbol   string
	Window   int     // 均值窗口
	Entry    float64 // 入场阈值，单位为单周期波动率倍数
	Quantity float64

	vol    *VolEstimator
	closes []float64
}

func NewMeanRevert(symbol string, window int, entry, qty float64) (*MeanRevert, error) {
	if window < 2 {
		return nil, fmt.Errorf("window must be >= 2, got %d", window)
	}
	if entry <= 0 {
		return nil, fmt.Errorf("entry threshold must be > 0")
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be > 0")
	}
	return &MeanRevert{
		Symbol:   symbol,
		Window:   window,
		Entry:    entry,
		Quantity: qty,
		vol:      NewVolEstimator(0.1),
	}, nil
}

func (s *MeanRevert) Name() string { return "mean_revert" }

func (s *MeanRevert) OnCandle(ctx Context, c market.Candle) ([]Signal, error) {
	if c.Symbol != s.Symbol {
		return nil, nil
	}
	s.vol.Update(c.Close)
	s.closes = append(s.closes, c.Close)
	if len(s.closes) > s.Window {
		s.closes = s.closes[1:]
	}
	if len(s.closes) < s.Window || s.vol.Samples() < s.Window {
		return nil, nil
	}

	mean := 0.0
	for _, v := range s.closes {
		mean += v
	}
	mean /= float64(len(s.closes))

	sigma := s.vol.Volatility()
	if sigma <= 0 {
		return nil, nil
	}
	lower := mean * (1 - s.Entry*sigma)

	_, holding := ctx.Position(s.Symbol)
	switch {
	case !holding && c.Close < lower && len(ctx.PendingOrders(s.Symbol)) == 0:
		return []Signal{MarketBuy(s.Symbol, s.Quantity)}, nil
	case holding && c.Close >= mean:
		return []Signal{ClosePosition(s.Symbol)}, nil
	}
	return nil, nil
}

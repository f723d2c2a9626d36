package strategy

import (
	"fmt"

	"trading-engine-go/market"
)

// SMACross 双均线交叉策略：快线上穿慢线做多，下穿平仓。
// 主要用于回测验证与演示，不构成完整的交易策略。
type SMACross struct {
	BaseStrategy

	Symbol   string
	Fast     int
	Slow     int
	Quantity float64

	closes []float64
}

func NewSMACross(symbol string, fast, slow int, qty float64) (*SMACross, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("sma windows must satisfy 0 < fast < slow, got %d/%d", fast, slow)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be > 0")
	}
	return &SMACross{Symbol: symbol, Fast: fast, Slow: slow, Quantity: qty}, nil
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) OnCandle(ctx Context, c market.Candle) ([]Signal, error) {
	if c.Symbol != s.Symbol {
		return nil, nil
	}
	s.closes = append(s.closes, c.Close)
	if len(s.closes) > s.Slow+1 {
		s.closes = s.closes[1:]
	}
	if len(s.closes) < s.Slow+1 {
		return nil, nil
	}

	prevFast, prevSlow := s.sma(s.Fast, 1), s.sma(s.Slow, 1)
	curFast, curSlow := s.sma(s.Fast, 0), s.sma(s.Slow, 0)

	_, holding := ctx.Position(s.Symbol)
	crossedUp := prevFast <= prevSlow && curFast > curSlow
	crossedDown := prevFast >= prevSlow && curFast < curSlow

	switch {
	case crossedUp && !holding:
		return []Signal{MarketBuy(s.Symbol, s.Quantity)}, nil
	case crossedDown && holding:
		return []Signal{ClosePosition(s.Symbol)}, nil
	}
	return nil, nil
}

// sma 计算窗口均值；back 为从最新值回退的偏移。
func (s *SMACross) sma(window, back int) float64 {
	end := len(s.closes) - back
	sum := 0.0
	for _, v := range s.closes[end-window : end] {
		sum += v
	}
	return sum / float64(window)
}

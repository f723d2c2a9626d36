package posttrade

import (
	"math"
	"time"

	"trading-engine-go/inventory"
)

// EquityPoint is one sample of account equity over time.
type EquityPoint struct {
	Ts     time.Time
	Equity float64
}

// Metrics contains performance statistics computed from closed trades and
// the equity curve. All values are plain numbers with no side effects;
// degenerate inputs (no trades, flat curve) produce zeros, never panics.
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64 // peak-to-trough fraction, 0.07 = 7%
	MaxDrawdownSpan  time.Duration
	WinRate          float64
	ProfitFactor     float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	AvgWin        float64
	AvgLoss       float64 // negative
	LargestWin    float64
	LargestLoss   float64 // negative
	AvgHolding    time.Duration

	TotalPnL    float64
	FinalEquity float64
}

// Calculate computes all metrics. periodsPerYear is the annualization
// factor for ratio scaling (252 for daily bars).
func Calculate(trades []inventory.Trade, curve []EquityPoint, initialCapital, periodsPerYear float64) Metrics {
	var m Metrics

	m.FinalEquity = initialCapital
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalEquity - initialCapital) / initialCapital
	}

	returns := periodReturns(curve)
	if n := float64(len(returns)); n > 0 && periodsPerYear > 0 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, periodsPerYear/n) - 1
	}
	m.SharpeRatio = sharpe(returns, periodsPerYear)
	m.SortinoRatio = sortino(returns, periodsPerYear)
	m.MaxDrawdown, m.MaxDrawdownSpan = maxDrawdown(curve)

	m.TotalTrades = len(trades)
	var grossProfit, grossLoss float64
	var holding time.Duration
	for _, t := range trades {
		m.TotalPnL += t.PnL
		holding += t.ExitTime.Sub(t.EntryTime)
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			grossProfit += t.PnL
			if t.PnL > m.LargestWin {
				m.LargestWin = t.PnL
			}
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss += -t.PnL
			if t.PnL < m.LargestLoss {
				m.LargestLoss = t.PnL
			}
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.AvgHolding = holding / time.Duration(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = -grossLoss / float64(m.LosingTrades)
	}
	switch {
	case m.TotalTrades == 0:
		m.ProfitFactor = 0
	case grossLoss == 0 && grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case grossLoss == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = grossProfit / grossLoss
	}

	return m
}

// periodReturns converts the equity curve into simple per-period returns.
func periodReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

// sharpe is mean over stddev scaled by sqrt(periodsPerYear); zero when the
// return series has no variance.
func sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := meanOf(returns)
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// sortino penalizes only downside deviation, computed over the negative
// returns alone; +Inf when the series has no downside at all.
func sortino(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := meanOf(returns)
	var downside float64
	var negatives int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			negatives++
		}
	}
	if negatives == 0 {
		return math.Inf(1)
	}
	dev := math.Sqrt(downside / float64(negatives))
	if dev == 0 {
		return 0
	}
	return mean / dev * math.Sqrt(periodsPerYear)
}

// maxDrawdown returns the deepest peak-to-trough fall as a fraction of the
// peak, and the longest stretch spent below a prior peak.
func maxDrawdown(curve []EquityPoint) (float64, time.Duration) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0].Equity
	peakTs := curve[0].Ts
	var worst float64
	var longest time.Duration
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
			peakTs = p.Ts
			continue
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
		if span := p.Ts.Sub(peakTs); span > longest {
			longest = span
		}
	}
	return worst, longest
}

func meanOf(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

package strategy

import "math"

// VolEstimator 基于对数收益率的EWMA波动率估计器。
// 按K线驱动更新，不依赖墙上时钟，回测与实盘行为一致。
type VolEstimator struct {
	alpha    float64
	last     float64
	variance float64
	n        int
}

// NewVolEstimator 创建估计器；alpha 为EWMA平滑系数，越大越敏感。
func NewVolEstimator(alpha float64) *VolEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &VolEstimator{alpha: alpha}
}

// Update 喂入最新价格。非正价格忽略。
func (v *VolEstimator) Update(price float64) {
	if price <= 0 {
		return
	}
	if v.last > 0 {
		r := math.Log(price / v.last)
		if v.n == 0 {
			// 首个收益率直接初始化方差
			v.variance = r * r
		} else {
			v.variance = v.alpha*r*r + (1-v.alpha)*v.variance
		}
		v.n++
	}
	v.last = price
}

// Volatility 返回单周期波动率（收益率标准差）。
func (v *VolEstimator) Volatility() float64 {
	if v.variance <= 0 {
		return 0
	}
	return math.Sqrt(v.variance)
}

// Annualized 按每年周期数年化。
func (v *VolEstimator) Annualized(periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 0
	}
	return v.Volatility() * math.Sqrt(periodsPerYear)
}

// Samples 返回已累计的收益率样本数。
func (v *VolEstimator) Samples() int { return v.n }

// Reset 清空状态。
func (v *VolEstimator) Reset() {
	v.last = 0
	v.variance = 0
	v.n = 0
}

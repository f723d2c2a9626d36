package inventory

import "time"

// PositionSide 持仓方向。
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
	Flat  PositionSide = "FLAT"
)

// Position 某交易对的当前持仓快照。Quantity 恒为非负，方向由 Side 表示。
type Position struct {
	Symbol        string
	Side          PositionSide
	Quantity      float64
	EntryPrice    float64 // 成交量加权平均入场价
	RealizedPnL   float64 // 本持仓生命周期内已实现盈亏（毛）
	UnrealizedPnL float64
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// Trade 一段完整持仓（开到平）的记录，平仓时一次性生成。
type Trade struct {
	Symbol     string
	Side       PositionSide
	EntryPrice float64
	ExitPrice  float64 // 各次减仓按量加权
	Quantity   float64 // 累计平掉的数量
	PnL        float64 // 扣除手续费后的净盈亏
	EntryTime  time.Time
	ExitTime   time.Time
}

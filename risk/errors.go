package risk

import "errors"

// 拒单原因哨兵；错误文本即对外的 reason 码，写入订单与日志。
var (
	ErrMaxPositionSize  = errors.New("max_position_size_exceeded")
	ErrMaxDailyLoss     = errors.New("max_daily_loss_exceeded")
	ErrMaxLeverage      = errors.New("max_leverage_exceeded")
	ErrMaxConcentration = errors.New("max_concentration_exceeded")
	ErrSymbolLimit      = errors.New("symbol_position_limit_exceeded")
)

var reasons = []error{
	ErrMaxPositionSize,
	ErrMaxDailyLoss,
	ErrMaxLeverage,
	ErrMaxConcentration,
	ErrSymbolLimit,
}

// Reason 提取错误对应的 reason 码；非风控错误返回原始文本。
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range reasons {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// IsRejection 判断错误是否为风控拒单。
func IsRejection(err error) bool {
	for _, sentinel := range reasons {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

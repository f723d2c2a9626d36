package alert

// RiskBridge 适配风控通知到告警管理器，满足 risk.AlertClient。
type RiskBridge struct {
	Manager *Manager
}

func (b RiskBridge) Send(typ, msg string) {
	if b.Manager == nil {
		return
	}
	_ = b.Manager.SendWarning(msg, map[string]interface{}{"type": typ})
}

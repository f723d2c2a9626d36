package risk

import "log/slog"

// AlertClient 抽象告警发送。
type AlertClient interface {
	Send(typ, msg string)
}

type Notifier struct {
	alert AlertClient
}

func NewNotifier(alert AlertClient) *Notifier {
	return &Notifier{alert: alert}
}

func (n *Notifier) NotifyRejection(symbol string, err error) {
	msg := "OrderRejected symbol=" + symbol
	if err != nil {
		msg += " reason=" + Reason(err)
	}
	slog.Warn(msg)
	if n.alert != nil {
		n.alert.Send("RiskReject", msg)
	}
}

func (n *Notifier) NotifyLiquidation(reason string) {
	msg := "EmergencyLiquidation reason=" + reason
	slog.Warn(msg)
	if n.alert != nil {
		n.alert.Send("Liquidation", msg)
	}
}

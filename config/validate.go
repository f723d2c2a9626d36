package config

import "fmt"

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures the configuration is internally consistent.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}

	if cfg.Engine.PeriodsPerYear <= 0 {
		return ErrInvalid("engine.periodsPerYear must be > 0")
	}
	if cfg.Engine.EventBufferSize <= 0 {
		return ErrInvalid("engine.eventBufferSize must be > 0")
	}
	if cfg.Engine.FillBufferSize <= 0 {
		return ErrInvalid("engine.fillBufferSize must be > 0")
	}
	switch cfg.Engine.OverflowPolicy {
	case "block", "drop_oldest":
	default:
		return ErrInvalid(fmt.Sprintf("engine.overflowPolicy must be block or drop_oldest, got %q", cfg.Engine.OverflowPolicy))
	}

	if cfg.Execution.CommissionRate < 0 {
		return ErrInvalid("execution.commissionRate must be >= 0")
	}
	if cfg.Execution.SlippageRate < 0 {
		return ErrInvalid("execution.slippageRate must be >= 0")
	}
	switch cfg.Execution.FillPolicy {
	case "optimistic", "realistic":
	default:
		return ErrInvalid(fmt.Sprintf("execution.fillPolicy must be optimistic or realistic, got %q", cfg.Execution.FillPolicy))
	}
	if cfg.Execution.CapLiquidity && (cfg.Execution.LiquidityFraction <= 0 || cfg.Execution.LiquidityFraction > 1) {
		return ErrInvalid("execution.liquidityFraction must be in (0, 1] when capLiquidity is set")
	}

	if cfg.Risk.MaxPositionSize < 0 {
		return ErrInvalid("risk.maxPositionSize must be >= 0")
	}
	if cfg.Risk.MaxDailyLossPct < 0 || cfg.Risk.MaxDailyLossPct > 1 {
		return ErrInvalid("risk.maxDailyLossPct must be in [0, 1]")
	}
	if cfg.Risk.MaxLeverage < 0 {
		return ErrInvalid("risk.maxLeverage must be >= 0")
	}
	if cfg.Risk.MaxConcentration < 0 || cfg.Risk.MaxConcentration > 1 {
		return ErrInvalid("risk.maxConcentration must be in [0, 1]")
	}
	for sym, limit := range cfg.Risk.SymbolLimits {
		if limit < 0 {
			return ErrInvalid(fmt.Sprintf("risk.symbolLimits[%s] must be >= 0", sym))
		}
	}

	if cfg.Backtest.InitialCapital <= 0 {
		return ErrInvalid("backtest.initialCapital must be > 0")
	}
	switch cfg.Backtest.ReportFormat {
	case "json", "parquet":
	default:
		return ErrInvalid(fmt.Sprintf("backtest.reportFormat must be json or parquet, got %q", cfg.Backtest.ReportFormat))
	}

	if cfg.Gateway.MaxOrdersPerSecond <= 0 {
		return ErrInvalid("gateway.maxOrdersPerSecond must be > 0")
	}
	if cfg.Gateway.RetryAttempts < 1 {
		return ErrInvalid("gateway.retryAttempts must be >= 1")
	}
	if cfg.Gateway.RetryBaseDelayMs < 0 {
		return ErrInvalid("gateway.retryBaseDelayMs must be >= 0")
	}

	switch cfg.Logger.Format {
	case "json", "console":
	default:
		return ErrInvalid(fmt.Sprintf("logger.format must be json or console, got %q", cfg.Logger.Format))
	}

	if cfg.Alert.Enabled && cfg.Alert.MaxAlertsPerMin <= 0 {
		return ErrInvalid("alert.maxAlertsPerMin must be > 0 when alert.enabled is set")
	}

	return nil
}

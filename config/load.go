package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Engine    EngineConfig    `yaml:"engine"`
	Execution ExecutionConfig `yaml:"execution"`
	Risk      RiskConfig      `yaml:"risk"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Logger    LoggerConfig    `yaml:"logger"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Alert     AlertConfig     `yaml:"alert"`
}

type EngineConfig struct {
	Symbols         []string `yaml:"symbols"`
	PeriodsPerYear  float64  `yaml:"periodsPerYear"`  // 年化周期数，日线252，小时线24*365
	EventBufferSize int      `yaml:"eventBufferSize"` // 行情事件队列容量
	FillBufferSize  int      `yaml:"fillBufferSize"`  // 成交回报队列容量
	OverflowPolicy  string   `yaml:"overflowPolicy"`  // block | drop_oldest
}

type ExecutionConfig struct {
	CommissionRate    float64 `yaml:"commissionRate"`
	SlippageRate      float64 `yaml:"slippageRate"`
	FillPolicy        string  `yaml:"fillPolicy"` // optimistic | realistic
	CapLiquidity      bool    `yaml:"capLiquidity"`
	LiquidityFraction float64 `yaml:"liquidityFraction"`
}

type RiskConfig struct {
	MaxPositionSize  float64            `yaml:"maxPositionSize"`
	MaxDailyLossPct  float64            `yaml:"maxDailyLossPct"`
	MaxLeverage      float64            `yaml:"maxLeverage"`
	MaxConcentration float64            `yaml:"maxConcentration"`
	SymbolLimits     map[string]float64 `yaml:"symbolLimits"`
}

type BacktestConfig struct {
	InitialCapital float64 `yaml:"initialCapital"`
	DataPath       string  `yaml:"dataPath"`
	Symbol         string  `yaml:"symbol"`
	OutputDir      string  `yaml:"outputDir"`
	ReportFormat   string  `yaml:"reportFormat"` // json | parquet
}

type GatewayConfig struct {
	WSURL              string  `yaml:"wsURL"`
	APIKey             string  `yaml:"apiKey"`
	APISecret          string  `yaml:"apiSecret"`
	MaxOrdersPerSecond float64 `yaml:"maxOrdersPerSecond"`
	RetryAttempts      int     `yaml:"retryAttempts"`
	RetryBaseDelayMs   int     `yaml:"retryBaseDelayMs"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json | console
	OutputPath string `yaml:"outputPath"`
}

type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type AlertConfig struct {
	Enabled         bool `yaml:"enabled"`
	ThrottleSeconds int  `yaml:"throttleSeconds"`
	MaxAlertsPerMin int  `yaml:"maxAlertsPerMin"`
}

// Default 返回各字段的安全默认值，YAML与环境变量在其上覆盖。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Engine: EngineConfig{
			PeriodsPerYear:  252,
			EventBufferSize: 1024,
			FillBufferSize:  256,
			OverflowPolicy:  "block",
		},
		Execution: ExecutionConfig{
			CommissionRate:    0.001,
			SlippageRate:      0.0005,
			FillPolicy:        "optimistic",
			LiquidityFraction: 0.1,
		},
		Risk: RiskConfig{
			MaxLeverage:      1.0,
			MaxConcentration: 1.0,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			ReportFormat:   "json",
		},
		Gateway: GatewayConfig{
			MaxOrdersPerSecond: 5,
			RetryAttempts:      3,
			RetryBaseDelayMs:   200,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Monitor: MonitorConfig{
			Addr: ":9100",
		},
		Alert: AlertConfig{
			ThrottleSeconds: 60,
			MaxAlertsPerMin: 10,
		},
	}
}

// Load reads YAML config from path on top of defaults. If a sibling
// config.<env>.yaml exists for the resolved env it is merged in as an
// overlay, then TRADER_* env vars override individual fields.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if err := mergeFile(&cfg, path); err != nil {
		return cfg, err
	}

	env := cfg.Env
	if v := os.Getenv("TRADER_ENV"); v != "" {
		env = v
		cfg.Env = v
	}
	overlay := filepath.Join(filepath.Dir(path), fmt.Sprintf("config.%s.yaml", env))
	if overlay != path {
		if _, err := os.Stat(overlay); err == nil {
			if err := mergeFile(&cfg, overlay); err != nil {
				return cfg, err
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides 环境变量覆盖，主要用于密钥与部署时差异项。
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("TRADER_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("TRADER_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if v := os.Getenv("TRADER_WS_URL"); v != "" {
		cfg.Gateway.WSURL = v
	}
	if v := os.Getenv("TRADER_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TRADER_MONITOR_ADDR"); v != "" {
		cfg.Monitor.Addr = v
	}
	if v := os.Getenv("TRADER_INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Backtest.InitialCapital = f
		}
	}
}

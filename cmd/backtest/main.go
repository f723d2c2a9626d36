package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"trading-engine-go/config"
	"trading-engine-go/execution"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/internal/engine"
	"trading-engine-go/market"
	"trading-engine-go/report"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// 回测入口。
// 用法：
//
//	go run ./cmd/backtest -config configs/config.yaml -data data/btc_1h.csv -symbol BTCUSDT -out results/
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dataPath := flag.String("data", "", "K线CSV路径（覆盖配置）")
	symbol := flag.String("symbol", "", "交易对（覆盖配置）")
	outDir := flag.String("out", "", "报告输出目录（覆盖配置）")
	format := flag.String("format", "", "报告格式 json|parquet（覆盖配置）")
	fast := flag.Int("fast", 10, "快线窗口")
	slow := flag.Int("slow", 30, "慢线窗口")
	qty := flag.Float64("qty", 1, "每次信号的下单数量")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dataPath != "" {
		cfg.Backtest.DataPath = *dataPath
	}
	if *symbol != "" {
		cfg.Backtest.Symbol = strings.ToUpper(*symbol)
	}
	if *outDir != "" {
		cfg.Backtest.OutputDir = *outDir
	}
	if *format != "" {
		cfg.Backtest.ReportFormat = *format
	}
	if cfg.Backtest.DataPath == "" || cfg.Backtest.Symbol == "" {
		log.Fatal("缺少数据路径或交易对")
	}

	appLog, err := logger.New(logger.Config{
		Level:   cfg.Logger.Level,
		Format:  cfg.Logger.Format,
		Outputs: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer appLog.Close()

	candles, err := market.LoadCSV(cfg.Backtest.DataPath, cfg.Backtest.Symbol)
	if err != nil {
		log.Fatalf("加载行情失败: %v", err)
	}

	strat, err := strategy.NewSMACross(cfg.Backtest.Symbol, *fast, *slow, *qty)
	if err != nil {
		log.Fatalf("初始化策略失败: %v", err)
	}

	b := engine.NewBacktester(engine.BacktestConfig{
		Symbol:         cfg.Backtest.Symbol,
		InitialCapital: cfg.Backtest.InitialCapital,
		PeriodsPerYear: cfg.Engine.PeriodsPerYear,
		Execution: execution.Config{
			CommissionRate:    cfg.Execution.CommissionRate,
			SlippageRate:      cfg.Execution.SlippageRate,
			Policy:            execution.FillPolicy(cfg.Execution.FillPolicy),
			CapLiquidity:      cfg.Execution.CapLiquidity,
			LiquidityFraction: cfg.Execution.LiquidityFraction,
		},
		Risk: risk.Thresholds{
			MaxPositionSize:  cfg.Risk.MaxPositionSize,
			MaxDailyLossPct:  cfg.Risk.MaxDailyLossPct,
			MaxLeverage:      cfg.Risk.MaxLeverage,
			MaxConcentration: cfg.Risk.MaxConcentration,
			SymbolLimits:     cfg.Risk.SymbolLimits,
		},
	}, strat, appLog, nil)

	result, err := b.Run(market.NewReplaySource(candles))
	if err != nil {
		log.Fatalf("回测失败: %v", err)
	}

	printSummary(result)

	if cfg.Backtest.OutputDir != "" {
		r := report.New(strat.Name(), cfg.Backtest.Symbol, cfg.Backtest.InitialCapital,
			result.Metrics, result.EquityCurve, result.Trades)
		paths, err := report.Write(cfg.Backtest.OutputDir, cfg.Backtest.ReportFormat, r)
		if err != nil {
			log.Fatalf("写报告失败: %v", err)
		}
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "written %s\n", p)
		}
	}
}

func printSummary(result *engine.Result) {
	m := result.Metrics
	fmt.Printf("trades:            %d (win %d / lose %d)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Printf("total return:      %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("annualized return: %.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("sharpe:            %.3f\n", m.SharpeRatio)
	fmt.Printf("sortino:           %.3f\n", m.SortinoRatio)
	fmt.Printf("max drawdown:      %.2f%% (%s underwater)\n", m.MaxDrawdown*100, m.MaxDrawdownSpan)
	fmt.Printf("profit factor:     %.3f\n", m.ProfitFactor)
	fmt.Printf("win rate:          %.2f%%\n", m.WinRate*100)
	fmt.Printf("final equity:      %.2f\n", m.FinalEquity)
}

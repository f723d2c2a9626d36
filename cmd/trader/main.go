package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"trading-engine-go/config"
	"trading-engine-go/internal/app"
	"trading-engine-go/strategy"
)

// 实盘（纸面撮合）交易守护进程。
// 行情经WebSocket流入，订单由内置纸面撮合器成交，
// 支持配置热加载、Prometheus指标和systemd看护。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	stratName := flag.String("strategy", "sma_cross", "策略 sma_cross|mean_revert")
	fast := flag.Int("fast", 10, "快线窗口（sma_cross）")
	slow := flag.Int("slow", 30, "慢线窗口（sma_cross）")
	window := flag.Int("window", 20, "均值窗口（mean_revert）")
	entry := flag.Float64("entry", 2, "入场阈值，波动率倍数（mean_revert）")
	qty := flag.Float64("qty", 1, "每次信号的下单数量")
	flag.Parse()

	a, err := buildApp(*cfgPath, *stratName, *fast, *slow, *window, *entry, *qty)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}

	// systemd 就绪通知与看护心跳
	daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go watchdog(ctx, a, interval)
	}

	<-ctx.Done()
	a.Logger().Info("shutdown signal received")
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err := a.Stop(); err != nil {
		log.Printf("停止时出错: %v", err)
	}
}

func buildApp(cfgPath, stratName string, fast, slow, window int, entry, qty float64) (*app.App, error) {
	a, err := app.New(cfgPath, func(cfg config.AppConfig) (strategy.Strategy, error) {
		symbol := strings.ToUpper(cfg.Engine.Symbols[0])
		switch stratName {
		case "sma_cross":
			return strategy.NewSMACross(symbol, fast, slow, qty)
		case "mean_revert":
			return strategy.NewMeanRevert(symbol, window, entry, qty)
		default:
			return nil, fmt.Errorf("unknown strategy %q", stratName)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := a.Build(); err != nil {
		return nil, err
	}
	return a, nil
}

// watchdog 按 systemd 要求的间隔上报心跳；组件不健康时停止上报。
func watchdog(ctx context.Context, a *app.App, interval time.Duration) {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.HealthCheck(); err != nil {
				a.Logger().Warn("health check failed: " + err.Error())
				continue
			}
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

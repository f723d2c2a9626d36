package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"trading-engine-go/config"
	"trading-engine-go/execution"
	"trading-engine-go/gateway"
	"trading-engine-go/infrastructure/alert"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/infrastructure/monitor"
	"trading-engine-go/internal/engine"
	"trading-engine-go/inventory"
	"trading-engine-go/market"
	"trading-engine-go/metrics"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// App 组装纸面交易进程的全部组件并管理其生命周期：
// 指标服务、行情接入、纸面撮合、交易引擎与配置热加载。
type App struct {
	cfg        config.AppConfig
	configPath string
	strat      strategy.Strategy

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 网关与核心服务
	client    *gateway.PaperClient
	breaker   *gateway.Breaker
	feed      *gateway.WSFeed
	feedBuf   *market.Buffer
	engineBuf *market.Buffer
	engine    *engine.Engine

	metricsServer *metrics.Server
	watcher       *config.Watcher

	lifecycle *LifecycleManager
}

// New 加载配置并创建App实例；策略由工厂按生效配置构建，
// 其余组件在 Build 中构建。
func New(configPath string, buildStrat func(cfg config.AppConfig) (strategy.Strategy, error)) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if len(cfg.Engine.Symbols) == 0 {
		return nil, fmt.Errorf("engine.symbols must not be empty")
	}
	if buildStrat == nil {
		return nil, fmt.Errorf("strategy factory is required")
	}
	strat, err := buildStrat(cfg)
	if err != nil {
		return nil, fmt.Errorf("build strategy failed: %w", err)
	}
	return &App{
		cfg:        cfg,
		configPath: configPath,
		strat:      strat,
		lifecycle:  NewLifecycleManager(),
	}, nil
}

// Config 返回生效配置。
func (a *App) Config() config.AppConfig { return a.cfg }

// Logger 返回应用日志器；Build 之前为 nil。
func (a *App) Logger() *logger.Logger { return a.logger }

// Build 构建所有组件
func (a *App) Build() error {
	if err := a.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := a.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}
	if err := a.buildEngine(); err != nil {
		return fmt.Errorf("build engine failed: %w", err)
	}
	a.registerLifecycleComponents()
	a.logger.Info("app built")
	return nil
}

func (a *App) buildInfrastructure() error {
	logCfg := logger.Config{
		Level:   a.cfg.Logger.Level,
		Format:  a.cfg.Logger.Format,
		Outputs: []string{"stdout"},
	}
	if a.cfg.Logger.OutputPath != "" {
		logCfg.Outputs = append(logCfg.Outputs, "file")
		logCfg.OutputFile = a.cfg.Logger.OutputPath
	}

	var err error
	a.logger, err = logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	if a.cfg.Monitor.Enabled {
		a.monitor = monitor.New(monitor.DefaultConfig())
		a.metricsServer = metrics.NewServer(a.cfg.Monitor.Addr, a.monitor.Handler())
	}

	if a.cfg.Alert.Enabled {
		throttle := time.Duration(a.cfg.Alert.ThrottleSeconds) * time.Second
		a.alerts = alert.NewManager([]alert.Channel{
			alert.NewZapChannel("log", a.logger.Logger),
		}, throttle)
	}

	return nil
}

func (a *App) buildGateway() error {
	execCfg := execution.Config{
		CommissionRate:    a.cfg.Execution.CommissionRate,
		SlippageRate:      a.cfg.Execution.SlippageRate,
		Policy:            execution.FillPolicy(a.cfg.Execution.FillPolicy),
		CapLiquidity:      a.cfg.Execution.CapLiquidity,
		LiquidityFraction: a.cfg.Execution.LiquidityFraction,
	}
	a.client = gateway.NewPaperClient(execCfg, a.cfg.Engine.FillBufferSize)
	a.breaker = gateway.NewBreaker(gateway.BreakerConfig{
		Threshold: a.cfg.Gateway.RetryAttempts * 2,
		Cooldown:  30 * time.Second,
	})

	policy := market.Block
	if a.cfg.Engine.OverflowPolicy == "drop_oldest" {
		policy = market.DropOldest
	}
	a.feedBuf = market.NewBuffer(a.cfg.Engine.EventBufferSize, policy)
	a.engineBuf = market.NewBuffer(a.cfg.Engine.EventBufferSize, policy)
	a.feed = gateway.NewWSFeed(gateway.FeedConfig{
		URL:     a.cfg.Gateway.WSURL,
		Symbols: a.cfg.Engine.Symbols,
	}, a.feedBuf)

	return nil
}

func (a *App) buildEngine() error {
	var notifier *risk.Notifier
	if a.alerts != nil {
		notifier = risk.NewNotifier(alert.RiskBridge{Manager: a.alerts})
	}

	ledger := order.NewLedger()
	tracker := inventory.NewTracker(a.cfg.Backtest.InitialCapital)
	gate := risk.NewGate(risk.Thresholds{
		MaxPositionSize:  a.cfg.Risk.MaxPositionSize,
		MaxDailyLossPct:  a.cfg.Risk.MaxDailyLossPct,
		MaxLeverage:      a.cfg.Risk.MaxLeverage,
		MaxConcentration: a.cfg.Risk.MaxConcentration,
		SymbolLimits:     a.cfg.Risk.SymbolLimits,
	}, tracker, nil, notifier)

	eng, err := engine.New(engine.Config{
		Symbol:         strings.ToUpper(a.cfg.Engine.Symbols[0]),
		RetryAttempts:  a.cfg.Gateway.RetryAttempts,
		RetryBaseDelay: time.Duration(a.cfg.Gateway.RetryBaseDelayMs) * time.Millisecond,
	}, engine.Components{
		Strategy: a.strat,
		Client:   gateway.WithBreaker(a.client, a.breaker),
		Limiter:  gateway.NewTokenBucketLimiter(a.cfg.Gateway.MaxOrdersPerSecond, 1),
		Stream:   a.engineBuf,
		Ledger:   ledger,
		Tracker:  tracker,
		Gate:     gate,
		Logger:   a.logger,
		Monitor:  a.monitor,
		Alerts:   a.alerts,
	})
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

func (a *App) registerLifecycleComponents() {
	if a.metricsServer != nil {
		a.lifecycle.Register(&metricsComponent{server: a.metricsServer, addr: a.cfg.Monitor.Addr, logger: a.logger})
	}
	a.lifecycle.Register(&feedComponent{app: a})
	a.lifecycle.Register(&engineComponent{engine: a.engine})
	a.lifecycle.Register(&watcherComponent{app: a})
}

// Start 启动全部组件。
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting app...")
	if err := a.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	a.logger.Info("app started")
	return nil
}

// Stop 逆序停止全部组件并关闭纸面撮合器。
func (a *App) Stop() error {
	a.logger.Info("stopping app...")
	err := a.lifecycle.StopAll()
	if err != nil {
		a.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	a.client.Close()
	a.logger.Close()
	return err
}

// HealthCheck 检查全部组件健康状态。
func (a *App) HealthCheck() error {
	return a.lifecycle.CheckHealth()
}

// metricsComponent 指标HTTP服务组件
type metricsComponent struct {
	server *metrics.Server
	addr   string
	logger *logger.Logger
}

func (c *metricsComponent) Start(ctx context.Context) error {
	c.server.Start()
	c.logger.Info("metrics server listening on " + c.addr)
	return nil
}

func (c *metricsComponent) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}

func (c *metricsComponent) Health() error { return nil }

// feedComponent 行情接入组件：WS行情先经纸面撮合再转发给引擎，
// 保证成交回报不晚于对应行情事件。
type feedComponent struct {
	app     *App
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	started bool
}

func (c *feedComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		if err := c.app.feed.Run(runCtx); err != nil {
			c.app.logger.LogError(err, map[string]interface{}{"component": "ws_feed"})
		}
	}()

	go func() {
		defer close(c.done)
		defer c.app.engineBuf.Close(c.app.feedBuf.Err())
		for ev := range c.app.feedBuf.Events() {
			if ev.Candle != nil {
				if err := c.app.client.OnMarketData(*ev.Candle); err != nil {
					c.app.logger.LogError(err, map[string]interface{}{"component": "paper_match"})
				}
			}
			if err := c.app.engineBuf.Publish(runCtx, ev); err != nil {
				return
			}
		}
	}()

	c.started = true
	return nil
}

func (c *feedComponent) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
	}
	c.started = false
	return nil
}

func (c *feedComponent) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return fmt.Errorf("feed not started")
	}
	return nil
}

// engineComponent 交易引擎组件
type engineComponent struct {
	engine *engine.Engine
}

func (c *engineComponent) Start(ctx context.Context) error {
	return c.engine.Start(ctx)
}

func (c *engineComponent) Stop() error {
	if c.engine.GetState() != engine.StateRunning {
		return nil
	}
	return c.engine.Stop()
}

func (c *engineComponent) Health() error {
	if st := c.engine.GetState(); st != engine.StateRunning {
		return fmt.Errorf("engine state %s", st)
	}
	return nil
}

// watcherComponent 配置热加载组件：运行中仅记录变更，重配置需重启进程。
type watcherComponent struct {
	app     *App
	watcher *config.Watcher
}

func (c *watcherComponent) Start(ctx context.Context) error {
	w, err := config.NewWatcher(c.app.configPath, config.WatchConfig{
		Enabled:      true,
		CooldownTime: 2 * time.Second,
	})
	if err != nil {
		// 热加载不可用不阻塞启动
		c.app.logger.Warn("config watcher unavailable: " + err.Error())
		return nil
	}
	w.OnUpdate(func(next config.AppConfig) {
		c.app.logger.Info("config reloaded, restart to apply engine changes")
	})
	w.OnError(func(err error) {
		c.app.logger.LogError(err, map[string]interface{}{"component": "config_watch"})
	})
	if err := w.Start(ctx); err != nil {
		c.app.logger.Warn("config watcher start failed: " + err.Error())
		return nil
	}
	c.watcher = w
	return nil
}

func (c *watcherComponent) Stop() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Stop()
}

func (c *watcherComponent) Health() error { return nil }

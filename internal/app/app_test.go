package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trading-engine-go/config"
	"trading-engine-go/strategy"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
engine:
  symbols: ["BTCUSDT"]
gateway:
  wsURL: "ws://127.0.0.1:1/stream"
monitor:
  enabled: false
alert:
  enabled: false
logger:
  level: "error"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func smaFactory(cfg config.AppConfig) (strategy.Strategy, error) {
	return strategy.NewSMACross(cfg.Engine.Symbols[0], 2, 3, 1)
}

func TestAppBuildStartStop(t *testing.T) {
	a, err := New(writeTestConfig(t), smaFactory)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.HealthCheck(); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestAppRejectsBadStrategyFactory(t *testing.T) {
	path := writeTestConfig(t)
	if _, err := New(path, nil); err == nil {
		t.Fatal("nil factory must be rejected")
	}
	_, err := New(path, func(config.AppConfig) (strategy.Strategy, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("factory error must propagate")
	}
}

// fakeComponent 记录生命周期调用顺序。
type fakeComponent struct {
	name    string
	calls   *[]string
	failure error
}

func (f *fakeComponent) Start(ctx context.Context) error {
	*f.calls = append(*f.calls, "start:"+f.name)
	return f.failure
}

func (f *fakeComponent) Stop() error {
	*f.calls = append(*f.calls, "stop:"+f.name)
	return nil
}

func (f *fakeComponent) Health() error { return f.failure }

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	var calls []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", calls: &calls})
	m.Register(&fakeComponent{name: "b", calls: &calls})

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := m.StopAll(); err != nil {
		t.Fatalf("stop all: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestLifecycleRollsBackOnStartFailure(t *testing.T) {
	var calls []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", calls: &calls})
	m.Register(&fakeComponent{name: "b", calls: &calls, failure: errors.New("boom")})

	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("start must fail")
	}
	// a 已启动，必须被回滚
	found := false
	for _, c := range calls {
		if c == "stop:a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("component a not rolled back: %v", calls)
	}
}

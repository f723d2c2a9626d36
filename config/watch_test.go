package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, baseYAML)

	w, err := NewWatcher(path, WatchConfig{Enabled: true, CooldownTime: 0})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ch := make(chan AppConfig, 1)
	w.OnUpdate(func(cfg AppConfig) {
		select {
		case ch <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 给watcher一点时间注册再写入
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(baseYAML+"\nlogger:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Logger.Level != "debug" {
			t.Fatalf("reloaded config stale: %q", cfg.Logger.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected update callback")
	}
}

func TestWatcherKeepsOldConfigOnError(t *testing.T) {
	path := writeTempConfig(t, baseYAML)

	w, err := NewWatcher(path, WatchConfig{Enabled: true, CooldownTime: 0})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	updates := make(chan struct{}, 1)
	errs := make(chan error, 1)
	w.OnUpdate(func(AppConfig) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	w.OnError(func(e error) {
		select {
		case errs <- e:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("env: \n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-errs:
	case <-updates:
		t.Fatalf("invalid config must not trigger update")
	case <-time.After(2 * time.Second):
		t.Fatalf("expected error callback")
	}
}

func TestWatcherDisabled(t *testing.T) {
	path := writeTempConfig(t, baseYAML)

	w, err := NewWatcher(path, WatchConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("disabled start should be a no-op: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

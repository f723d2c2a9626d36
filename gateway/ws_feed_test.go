package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"trading-engine-go/market"
)

func TestWSFeedClosesBufferWithTerminalError(t *testing.T) {
	buf := market.NewBuffer(4, market.Block)
	feed := NewWSFeed(FeedConfig{
		URL:               "ws://127.0.0.1:1/stream",
		ReconnectAttempts: 2,
		ReconnectDelay:    10 * time.Millisecond,
		HandshakeTimeout:  100 * time.Millisecond,
	}, buf)

	err := feed.Run(context.Background())
	if err == nil {
		t.Fatal("expected reconnects exhausted error")
	}

	// 消费端读完后必须能看到中止原因，而不是 nil
	for range buf.Events() {
	}
	if got := buf.Err(); got == nil || !strings.Contains(got.Error(), "reconnects exhausted") {
		t.Fatalf("stream err = %v, want terminal feed error", got)
	}
}

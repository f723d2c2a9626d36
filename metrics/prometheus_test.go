package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trading-engine-go/infrastructure/monitor"
)

func TestMetricsEndpoint(t *testing.T) {
	m := monitor.New(monitor.DefaultConfig())
	m.RecordOrderSubmitted()
	m.RecordFill(2.5)
	m.UpdateAccount(10500, 9000, 300, 200)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		"engine_trading_orders_submitted_total 1",
		"engine_trading_fills_total 1",
		"engine_trading_filled_volume_total 2.5",
		"engine_trading_equity 10500",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHealthz(t *testing.T) {
	m := monitor.New(monitor.DefaultConfig())
	s := NewServer("127.0.0.1:0", m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

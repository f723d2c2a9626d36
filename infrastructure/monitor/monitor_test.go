package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOrderSubmitted()
	m.RecordOrderSubmitted()
	m.RecordOrderFilled()
	m.RecordOrderRejected()
	m.RecordFill(5)
	m.RecordFill(3)

	if got := testutil.ToFloat64(m.ordersSubmitted); got != 2 {
		t.Errorf("ordersSubmitted = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.ordersFilled); got != 1 {
		t.Errorf("ordersFilled = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected); got != 1 {
		t.Errorf("ordersRejected = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.fills); got != 2 {
		t.Errorf("fills = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.filledVolume); got != 8 {
		t.Errorf("filledVolume = %f, want 8", got)
	}
}

func TestAccountGauges(t *testing.T) {
	m := New(DefaultConfig())

	m.UpdateAccount(10500, 8000, 300, 200)
	m.UpdateBookSizes(2, 3)

	if got := testutil.ToFloat64(m.equity); got != 10500 {
		t.Errorf("equity = %f, want 10500", got)
	}
	if got := testutil.ToFloat64(m.cash); got != 8000 {
		t.Errorf("cash = %f, want 8000", got)
	}
	if got := testutil.ToFloat64(m.realizedPnL); got != 300 {
		t.Errorf("realizedPnL = %f, want 300", got)
	}
	if got := testutil.ToFloat64(m.unrealizedPnL); got != 200 {
		t.Errorf("unrealizedPnL = %f, want 200", got)
	}
	if got := testutil.ToFloat64(m.openPositions); got != 2 {
		t.Errorf("openPositions = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.pendingOrders); got != 3 {
		t.Errorf("pendingOrders = %f, want 3", got)
	}
}

func TestRiskAndEngineCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordRiskReject()
	m.RecordLiquidation()
	m.RecordEvent(0.002)
	m.RecordEvent(0.004)
	m.RecordAnomalyDiscarded()
	m.RecordFeedDrop(3)

	if got := testutil.ToFloat64(m.riskRejects); got != 1 {
		t.Errorf("riskRejects = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.liquidations); got != 1 {
		t.Errorf("liquidations = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsProcessed); got != 2 {
		t.Errorf("eventsProcessed = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.anomaliesDropped); got != 1 {
		t.Errorf("anomaliesDropped = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.feedEventsDropped); got != 3 {
		t.Errorf("feedEventsDropped = %f, want 3", got)
	}
}

func TestRetryOutcomes(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordSubmitRetry("retried")
	m.RecordSubmitRetry("retried")
	m.RecordSubmitRetry("exhausted")

	if got := testutil.ToFloat64(m.submitRetries.WithLabelValues("retried")); got != 2 {
		t.Errorf("submitRetries[retried] = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.submitRetries.WithLabelValues("exhausted")); got != 1 {
		t.Errorf("submitRetries[exhausted] = %f, want 1", got)
	}
}

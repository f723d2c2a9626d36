package order

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("ord-%06d", n)
	}
}

func newTestLedger() *Ledger {
	l := NewLedger()
	l.SetIDGenerator(seqIDs())
	return l
}

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func TestSubmitValidates(t *testing.T) {
	l := newTestLedger()

	cases := []Order{
		{Side: SideBuy, Type: TypeMarket, Quantity: 1},                       // no symbol
		{Symbol: "BTCUSDT", Side: "LONG", Type: TypeMarket, Quantity: 1},     // bad side
		{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeMarket, Quantity: 0},    // zero qty
		{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeLimit, Quantity: 1},     // limit w/o price
		{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeStop, Quantity: 1},      // stop w/o trigger
		{Symbol: "BTCUSDT", Side: SideBuy, Type: "ICEBERG", Quantity: 1},     // unknown type
	}
	for i, o := range cases {
		if _, err := l.Submit(o, t0); !IsValidation(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
	if len(l.Pending()) != 0 {
		t.Fatalf("rejected submissions must not enter the ledger")
	}
}

func TestSubmitRegistersPending(t *testing.T) {
	l := newTestLedger()

	o, err := l.Submit(Order{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeLimit, Quantity: 2, Price: 100}, t0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.ID == "" || o.Status != StatusSubmitted {
		t.Fatalf("unexpected order after submit: %+v", o)
	}
	pending := l.Pending()
	if len(pending) != 1 || pending[0].ID != o.ID {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestApplyFillPartialThenFull(t *testing.T) {
	l := newTestLedger()
	o, _ := l.Submit(Order{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeLimit, Quantity: 2, Price: 100}, t0)

	got, err := l.ApplyFill(Fill{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Price: 99, Quantity: 1, Ts: t0})
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if got.Status != StatusPartial || got.FilledQuantity != 1 || got.AvgFillPrice != 99 {
		t.Fatalf("after partial: %+v", got)
	}

	got, err = l.ApplyFill(Fill{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Price: 101, Quantity: 1, Ts: t0})
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if got.Status != StatusFilled || got.FilledQuantity != 2 {
		t.Fatalf("after full: %+v", got)
	}
	if got.AvgFillPrice != 100 {
		t.Fatalf("avg fill price = %v, want 100", got.AvgFillPrice)
	}
	if len(l.Pending()) != 0 {
		t.Fatalf("filled order must leave pending set")
	}
}

func TestApplyFillOverfill(t *testing.T) {
	l := newTestLedger()
	o, _ := l.Submit(Order{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: 100}, t0)

	if _, err := l.ApplyFill(Fill{OrderID: o.ID, Price: 100, Quantity: 1.5, Ts: t0}); !errors.Is(err, ErrOverFill) {
		t.Fatalf("expected ErrOverFill, got %v", err)
	}
}

func TestApplyFillUnknownOrder(t *testing.T) {
	l := newTestLedger()
	if _, err := l.ApplyFill(Fill{OrderID: "nope", Price: 1, Quantity: 1, Ts: t0}); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	l := newTestLedger()
	o, _ := l.Submit(Order{Symbol: "BTCUSDT", Side: SideSell, Type: TypeLimit, Quantity: 1, Price: 105}, t0)

	got, err := l.Cancel(o.ID, "strategy close", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCanceled || got.Reason != "strategy close" {
		t.Fatalf("after cancel: %+v", got)
	}

	// 终态不可再撤
	if _, err := l.Cancel(o.ID, "again", t0.Add(2*time.Second)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	// 终态不可再成交
	if _, err := l.ApplyFill(Fill{OrderID: o.ID, Price: 105, Quantity: 1, Ts: t0}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on fill after cancel, got %v", err)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	l := newTestLedger()
	o, _ := l.Submit(Order{Symbol: "BTCUSDT", Side: SideBuy, Type: TypeMarket, Quantity: 5}, t0)

	got, err := l.Reject(o.ID, "max_position_size_exceeded", t0)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected || got.Reason != "max_position_size_exceeded" {
		t.Fatalf("after reject: %+v", got)
	}
}

func TestPendingKeepsSubmissionOrder(t *testing.T) {
	l := newTestLedger()
	for i := 0; i < 5; i++ {
		if _, err := l.Submit(Order{Symbol: "ETHUSDT", Side: SideBuy, Type: TypeLimit, Quantity: 1, Price: float64(10 + i)}, t0); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	pending := l.Pending()
	for i := 1; i < len(pending); i++ {
		if pending[i-1].ID >= pending[i].ID {
			t.Fatalf("pending not in submission order: %v then %v", pending[i-1].ID, pending[i].ID)
		}
	}
}

package execution

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/inventory"
	"trading-engine-go/order"
)

// StatusSource answers order status queries, typically an exchange client.
type StatusSource interface {
	OrderStatus(ctx context.Context, id string) (order.Status, error)
}

// Reconciler applies live fill confirmations to the ledger and position
// tracker. Confirmations for unknown or already-terminal orders are a
// non-fatal anomaly: logged, counted, and discarded.
type Reconciler struct {
	ledger    *order.Ledger
	tracker   *inventory.Tracker
	log       *logger.Logger
	anomalies atomic.Uint64
}

func NewReconciler(ledger *order.Ledger, tracker *inventory.Tracker, log *logger.Logger) *Reconciler {
	return &Reconciler{ledger: ledger, tracker: tracker, log: log}
}

// OnFill applies one confirmation. The returned trade is non-nil when the
// fill fully closed a position; discarded reports that the confirmation
// was an anomaly and never reached the ledger. Ledger corruption
// (overfill) is fatal and returned to the caller.
func (r *Reconciler) OnFill(f order.Fill) (trade *inventory.Trade, discarded bool, err error) {
	if _, ok := r.ledger.Get(f.OrderID); !ok {
		r.discard(f, "unknown order")
		return nil, true, nil
	}
	if r.ledger.IsTerminal(f.OrderID) {
		r.discard(f, "order already terminal")
		return nil, true, nil
	}
	if _, err := r.ledger.ApplyFill(f); err != nil {
		if errors.Is(err, order.ErrInvalidState) {
			r.discard(f, err.Error())
			return nil, true, nil
		}
		return nil, false, err
	}
	trade = r.tracker.ApplyFill(f)
	if r.log != nil {
		r.log.LogFill(f.OrderID, map[string]interface{}{
			"symbol":   f.Symbol,
			"side":     f.Side,
			"price":    f.Price,
			"quantity": f.Quantity,
		})
	}
	return trade, false, nil
}

// Anomalies returns the number of discarded confirmations.
func (r *Reconciler) Anomalies() uint64 {
	return r.anomalies.Load()
}

func (r *Reconciler) discard(f order.Fill, why string) {
	r.anomalies.Add(1)
	if r.log != nil {
		r.log.LogError(errors.New("discarded fill confirmation"), map[string]interface{}{
			"order_id": f.OrderID,
			"symbol":   f.Symbol,
			"why":      why,
		})
	}
}

// SyncStatuses polls the exchange for every pending order and adopts the
// exchange view when it disagrees: exchange-terminal orders are closed out
// locally. Intended to run periodically from the live engine.
func (r *Reconciler) SyncStatuses(ctx context.Context, src StatusSource, now time.Time) error {
	for _, o := range r.ledger.Pending() {
		st, err := src.OrderStatus(ctx, o.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		switch st {
		case order.StatusCanceled:
			if _, err := r.ledger.Cancel(o.ID, "exchange reconcile", now); err != nil {
				r.anomalies.Add(1)
			}
		case order.StatusRejected:
			if _, err := r.ledger.Reject(o.ID, "exchange reconcile", now); err != nil {
				r.anomalies.Add(1)
			}
		}
	}
	return nil
}

package gateway

import (
	"context"
	"errors"
	"fmt"

	"trading-engine-go/order"
)

// Client is the exchange-facing capability surface. Implementations must be
// safe for concurrent use.
type Client interface {
	// SubmitOrder sends the order and returns the exchange-assigned id.
	SubmitOrder(ctx context.Context, o order.Order) (string, error)
	CancelOrder(ctx context.Context, id string) error
	OrderStatus(ctx context.Context, id string) (order.Status, error)
	// SubscribeFills returns a channel of fill confirmations. The channel
	// is closed when the subscription ends.
	SubscribeFills(ctx context.Context) (<-chan order.Fill, error)
}

// ExecutionError marks a transient exchange failure. Callers retry these
// with backoff; anything else is handed up unchanged.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient execution failure.
func IsRetryable(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

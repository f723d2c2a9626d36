package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger 订单账本：唯一的订单状态权威，所有状态迁移都经过状态机校验。
type Ledger struct {
	mu      sync.RWMutex
	sm      *StateMachine
	orders  map[string]*Order
	pending []string // 活跃订单ID，保持提交顺序以保证回放确定性
	genID   func() string
}

func NewLedger() *Ledger {
	return &Ledger{
		sm:     NewStateMachine(),
		orders: make(map[string]*Order),
		genID:  uuid.NewString,
	}
}

// SetIDGenerator 替换订单ID生成器；回测用顺序ID保证可重放。
func (l *Ledger) SetIDGenerator(gen func() string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != nil {
		l.genID = gen
	}
}

// Submit 校验并登记新订单：CREATED 入账后立即迁移到 SUBMITTED。
func (l *Ledger) Submit(o Order, at time.Time) (Order, error) {
	if err := validate(o); err != nil {
		return Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if o.ID == "" {
		o.ID = l.genID()
	}
	if _, exists := l.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("duplicate order id %s", o.ID)
	}
	o.Status = StatusCreated
	o.FilledQuantity = 0
	o.AvgFillPrice = 0
	o.CreatedAt = at
	o.UpdatedAt = at

	stored := o
	l.orders[o.ID] = &stored

	if err := l.transition(&stored, StatusSubmitted, at); err != nil {
		delete(l.orders, o.ID)
		return Order{}, err
	}
	l.pending = append(l.pending, o.ID)
	return stored, nil
}

// Cancel 将活跃订单迁移到 CANCELED；终态拒绝。
func (l *Ledger) Cancel(id, reason string, at time.Time) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if !l.sm.CanCancel(o.Status) {
		return Order{}, fmt.Errorf("%w: cancel in %s", ErrInvalidState, o.Status)
	}
	if err := l.transition(o, StatusCanceled, at); err != nil {
		return Order{}, err
	}
	o.Reason = reason
	l.removePending(id)
	return *o, nil
}

// Reject 标记订单被拒绝并记录原因。
func (l *Ledger) Reject(id, reason string, at time.Time) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if err := l.transition(o, StatusRejected, at); err != nil {
		return Order{}, err
	}
	o.Reason = reason
	l.removePending(id)
	return *o, nil
}

// ApplyFill 应用一笔成交：维护累计成交量与均价，按剩余量迁移状态。
// 超量成交说明账本已损坏，返回 ErrOverFill，调用方必须停机。
func (l *Ledger) ApplyFill(f Fill) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[f.OrderID]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if l.sm.IsFinalState(o.Status) {
		return Order{}, fmt.Errorf("%w: fill in %s", ErrInvalidState, o.Status)
	}
	const eps = 1e-9
	if f.Quantity <= 0 {
		return Order{}, fmt.Errorf("fill quantity must be > 0, got %v", f.Quantity)
	}
	if f.Quantity > o.Remaining()+eps {
		return Order{}, fmt.Errorf("%w: order %s fill %v remaining %v",
			ErrOverFill, o.ID, f.Quantity, o.Remaining())
	}

	filledNotional := o.AvgFillPrice*o.FilledQuantity + f.Price*f.Quantity
	o.FilledQuantity += f.Quantity
	o.AvgFillPrice = filledNotional / o.FilledQuantity

	next := StatusPartial
	if o.Remaining() <= eps {
		o.FilledQuantity = o.Quantity
		next = StatusFilled
	}
	if err := l.transition(o, next, f.Ts); err != nil {
		return Order{}, err
	}
	if next == StatusFilled {
		l.removePending(o.ID)
	}
	return *o, nil
}

// Get 返回订单副本。
func (l *Ledger) Get(id string) (Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Pending 按提交顺序返回所有活跃订单副本。
func (l *Ledger) Pending() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0, len(l.pending))
	for _, id := range l.pending {
		if o, ok := l.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// PendingFor 返回指定交易对的活跃订单。
func (l *Ledger) PendingFor(symbol string) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Order
	for _, id := range l.pending {
		if o, ok := l.orders[id]; ok && o.Symbol == symbol {
			out = append(out, *o)
		}
	}
	return out
}

// All 返回全部订单副本（含终态），用于报告输出。
func (l *Ledger) All() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, *o)
	}
	return out
}

// IsTerminal 判断订单是否处于终态；未知订单返回 false。
func (l *Ledger) IsTerminal(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	return ok && l.sm.IsFinalState(o.Status)
}

func (l *Ledger) transition(o *Order, to Status, at time.Time) error {
	if err := l.sm.ValidateTransition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}

func (l *Ledger) removePending(id string) {
	for i, pid := range l.pending {
		if pid == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

func validate(o Order) error {
	if o.Symbol == "" {
		return &ValidationError{Field: "symbol", Msg: "is required"}
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return &ValidationError{Field: "side", Msg: fmt.Sprintf("unknown %q", o.Side)}
	}
	if o.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Msg: "must be > 0"}
	}
	switch o.Type {
	case TypeLimit, TypeStopLimit:
		if o.Price <= 0 {
			return &ValidationError{Field: "price", Msg: "required for limit orders"}
		}
	case TypeMarket:
	case TypeStop:
	default:
		return &ValidationError{Field: "type", Msg: fmt.Sprintf("unknown %q", o.Type)}
	}
	if o.Type == TypeStop || o.Type == TypeStopLimit {
		if o.StopPrice <= 0 {
			return &ValidationError{Field: "stop_price", Msg: "required for stop orders"}
		}
	}
	return nil
}

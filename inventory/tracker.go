package inventory

import (
	"sort"
	"sync"
	"time"

	"trading-engine-go/order"
)

const eps = 1e-9

// book 单交易对的内部持仓账目；净数量带符号（多正空负）。
type book struct {
	net          float64
	entry        float64
	realized     float64
	commission   float64
	closedQty    float64
	exitNotional float64
	lastPrice    float64
	openedAt     time.Time
	updatedAt    time.Time
}

// Tracker 维护资金与全部持仓；成交为唯一的仓位变更来源。
type Tracker struct {
	mu        sync.RWMutex
	cash      float64
	initial   float64
	books     map[string]*book
	closed    []Trade
	realized  float64 // 累计已实现盈亏（毛）
	fees      float64 // 累计手续费
}

func NewTracker(initialCapital float64) *Tracker {
	return &Tracker{
		cash:    initialCapital,
		initial: initialCapital,
		books:   make(map[string]*book),
	}
}

// ApplyFill 应用一笔成交。加仓重算加权均价；减仓按比例实现盈亏；
// 穿越零点时平掉旧仓生成一条 Trade，剩余量以成交价反向开仓。
// 返回本次成交平掉的完整持仓记录（最多一条）。
func (t *Tracker) ApplyFill(f order.Fill) *Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cash -= f.Commission
	t.fees += f.Commission

	b, ok := t.books[f.Symbol]
	if !ok {
		b = &book{}
		t.books[f.Symbol] = b
	}

	delta := f.SignedQty()
	b.lastPrice = f.Price
	b.updatedAt = f.Ts

	switch {
	case abs(b.net) <= eps:
		// 开新仓
		b.net = delta
		b.entry = f.Price
		b.openedAt = f.Ts
		b.commission = f.Commission
		return nil

	case sameSign(b.net, delta):
		// 同向加仓：加权均价
		total := abs(b.net) + abs(delta)
		b.entry = (b.entry*abs(b.net) + f.Price*abs(delta)) / total
		b.net += delta
		b.commission += f.Commission
		return nil

	default:
		closeQty := min(abs(delta), abs(b.net))
		dir := sign(b.net)
		pnl := (f.Price - b.entry) * closeQty * dir

		b.realized += pnl
		t.realized += pnl
		t.cash += pnl
		b.commission += f.Commission
		b.closedQty += closeQty
		b.exitNotional += f.Price * closeQty

		remainder := b.net + delta
		if abs(remainder) <= eps {
			// 完全平仓
			tr := t.closeBook(f.Symbol, b, f.Ts)
			delete(t.books, f.Symbol)
			return &tr
		}
		if sameSign(remainder, b.net) {
			// 部分减仓
			b.net = remainder
			return nil
		}
		// 穿越零点：旧仓结清，剩余量反向开仓
		tr := t.closeBook(f.Symbol, b, f.Ts)
		t.books[f.Symbol] = &book{
			net:       remainder,
			entry:     f.Price,
			lastPrice: f.Price,
			openedAt:  f.Ts,
			updatedAt: f.Ts,
		}
		return &tr
	}
}

func (t *Tracker) closeBook(symbol string, b *book, at time.Time) Trade {
	side := Long
	if b.net < 0 {
		side = Short
	}
	tr := Trade{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: b.entry,
		ExitPrice:  b.exitNotional / b.closedQty,
		Quantity:   b.closedQty,
		PnL:        b.realized - b.commission,
		EntryTime:  b.openedAt,
		ExitTime:   at,
	}
	t.closed = append(t.closed, tr)
	return tr
}

// MarkPrice 用最新行情价刷新浮动盈亏。
func (t *Tracker) MarkPrice(symbol string, price float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.books[symbol]; ok {
		b.lastPrice = price
		b.updatedAt = at
	}
}

// Position 返回指定交易对的持仓快照；无持仓时 ok 为 false。
func (t *Tracker) Position(symbol string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.books[symbol]
	if !ok || abs(b.net) <= eps {
		return Position{Symbol: symbol, Side: Flat}, false
	}
	return t.snapshot(symbol, b), true
}

// Positions 返回全部持仓快照，按交易对排序保证遍历确定性。
func (t *Tracker) Positions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	symbols := make([]string, 0, len(t.books))
	for sym := range t.books {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	out := make([]Position, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, t.snapshot(sym, t.books[sym]))
	}
	return out
}

func (t *Tracker) snapshot(symbol string, b *book) Position {
	side := Long
	if b.net < 0 {
		side = Short
	}
	return Position{
		Symbol:        symbol,
		Side:          side,
		Quantity:      abs(b.net),
		EntryPrice:    b.entry,
		RealizedPnL:   b.realized,
		UnrealizedPnL: (b.lastPrice - b.entry) * b.net,
		OpenedAt:      b.openedAt,
		UpdatedAt:     b.updatedAt,
	}
}

// NetExposure 返回带符号的净持仓数量（多正空负）。
func (t *Tracker) NetExposure(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.books[symbol]; ok {
		return b.net
	}
	return 0
}

// GrossNotional 返回全部持仓按最新价计的名义价值之和。
func (t *Tracker) GrossNotional() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, b := range t.books {
		total += abs(b.net) * b.lastPrice
	}
	return total
}

// Equity 账户权益 = 现金 + 全部浮动盈亏。
func (t *Tracker) Equity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	equity := t.cash
	for _, b := range t.books {
		equity += (b.lastPrice - b.entry) * b.net
	}
	return equity
}

func (t *Tracker) Cash() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash
}

func (t *Tracker) InitialCapital() float64 {
	return t.initial
}

// RealizedPnL 累计已实现盈亏（毛，不含手续费）。
func (t *Tracker) RealizedPnL() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.realized
}

// UnrealizedPnL 全部持仓的浮动盈亏之和。
func (t *Tracker) UnrealizedPnL() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, b := range t.books {
		total += (b.lastPrice - b.entry) * b.net
	}
	return total
}

// TotalFees 累计手续费。
func (t *Tracker) TotalFees() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fees
}

// Trades 返回全部已平仓记录的副本。
func (t *Tracker) Trades() []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Trade, len(t.closed))
	copy(out, t.closed)
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

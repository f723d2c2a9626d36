package market

import "time"

// Candle represents OHLCV data for one interval.
type Candle struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Tick represents a single traded price update.
type Tick struct {
	Symbol string
	Price  float64
	Size   float64
	Ts     time.Time
}

// Event 市场事件：K线或逐笔，二者取其一。
type Event struct {
	Candle *Candle
	Tick   *Tick
}

// Time 返回事件时间戳。
func (e Event) Time() time.Time {
	if e.Candle != nil {
		return e.Candle.Ts
	}
	if e.Tick != nil {
		return e.Tick.Ts
	}
	return time.Time{}
}

// Symbol 返回事件交易对。
func (e Event) Symbol() string {
	if e.Candle != nil {
		return e.Candle.Symbol
	}
	if e.Tick != nil {
		return e.Tick.Symbol
	}
	return ""
}

// Price 返回事件的参考价（K线取收盘价）。
func (e Event) Price() float64 {
	if e.Candle != nil {
		return e.Candle.Close
	}
	if e.Tick != nil {
		return e.Tick.Price
	}
	return 0
}

// CandleEvent wraps a candle as an Event.
func CandleEvent(c Candle) Event {
	return Event{Candle: &c}
}

// TickEvent wraps a tick as an Event.
func TickEvent(t Tick) Event {
	return Event{Tick: &t}
}

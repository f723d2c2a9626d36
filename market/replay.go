package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ErrOutOfOrder 数据源时间戳倒序，视为数据损坏。
var ErrOutOfOrder = errors.New("market data out of order")

// Source 提供有限、有序、可重放的历史行情。
type Source interface {
	// Next 返回下一个事件；耗尽时 ok 为 false。
	Next() (ev Event, ok bool, err error)
	// Reset 回到起点，保证两次遍历产生完全相同的序列。
	Reset()
}

// ReplaySource 按顺序重放内存中的K线序列。
type ReplaySource struct {
	candles []Candle
	idx     int
	lastTs  time.Time
}

func NewReplaySource(candles []Candle) *ReplaySource {
	return &ReplaySource{candles: candles}
}

func (s *ReplaySource) Next() (Event, bool, error) {
	if s.idx >= len(s.candles) {
		return Event{}, false, nil
	}
	c := s.candles[s.idx]
	s.idx++
	if !s.lastTs.IsZero() && c.Ts.Before(s.lastTs) {
		return Event{}, false, fmt.Errorf("%w: %s after %s", ErrOutOfOrder,
			c.Ts.Format(time.RFC3339), s.lastTs.Format(time.RFC3339))
	}
	s.lastTs = c.Ts
	return CandleEvent(c), true, nil
}

func (s *ReplaySource) Reset() {
	s.idx = 0
	s.lastTs = time.Time{}
}

// Len 返回剩余未消费的事件数。
func (s *ReplaySource) Len() int {
	return len(s.candles) - s.idx
}

// LoadCSV reads candles from a CSV file with columns
// timestamp,open,high,low,close,volume. Timestamps are RFC3339 or Unix
// seconds. A header row is skipped if present.
func LoadCSV(path, symbol string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var candles []Candle
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++
		// header
		if line == 1 {
			if _, err := strconv.ParseFloat(rec[1], 64); err != nil {
				continue
			}
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d col %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		candles = append(candles, Candle{
			Symbol: symbol,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
			Ts:     ts,
		})
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

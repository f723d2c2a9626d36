package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"trading-engine-go/inventory"
	"trading-engine-go/posttrade"
)

// TradeRecord is the Parquet schema for closed trades.
type TradeRecord struct {
	Symbol     string  `parquet:"symbol"`
	Side       string  `parquet:"side"`
	EntryTime  int64   `parquet:"entry_time,timestamp(millisecond)"` // Unix ms
	ExitTime   int64   `parquet:"exit_time,timestamp(millisecond)"`  // Unix ms
	EntryPrice float64 `parquet:"entry_price"`
	ExitPrice  float64 `parquet:"exit_price"`
	Quantity   float64 `parquet:"quantity"`
	PnL        float64 `parquet:"pnl"`
}

// EquityRecord is the Parquet schema for equity curve samples.
type EquityRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Equity    float64 `parquet:"equity"`
}

// WriteParquet writes trades and the equity curve as Parquet files plus a
// small JSON metrics summary, all under dir. Returns the paths written.
func WriteParquet(dir string, r Report) ([]string, error) {
	tradeRecords := make([]TradeRecord, 0, len(r.Trades))
	for _, t := range r.Trades {
		tradeRecords = append(tradeRecords, TradeRecord{
			Symbol:     t.Symbol,
			Side:       string(t.Side),
			EntryTime:  t.EntryTime.UnixMilli(),
			ExitTime:   t.ExitTime.UnixMilli(),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.PnL,
		})
	}

	equityRecords := make([]EquityRecord, 0, len(r.EquityCurve))
	for _, p := range r.EquityCurve {
		equityRecords = append(equityRecords, EquityRecord{
			Timestamp: p.Ts.UnixMilli(),
			Equity:    p.Equity,
		})
	}

	tradesPath := filepath.Join(dir, "trades.parquet")
	equityPath := filepath.Join(dir, "equity.parquet")
	metricsPath := filepath.Join(dir, "metrics.json")

	if err := writeParquetFile(tradesPath, tradeRecords); err != nil {
		return nil, fmt.Errorf("writing trades: %w", err)
	}
	if err := writeParquetFile(equityPath, equityRecords); err != nil {
		return nil, fmt.Errorf("writing equity curve: %w", err)
	}

	summary := Report{
		GeneratedAt:    r.GeneratedAt,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		InitialCapital: r.InitialCapital,
		Metrics:        r.Metrics,
	}
	if err := WriteJSON(metricsPath, summary); err != nil {
		return nil, fmt.Errorf("writing metrics summary: %w", err)
	}

	return []string{tradesPath, equityPath, metricsPath}, nil
}

// ReadTrades loads closed trades back from a Parquet file.
func ReadTrades(path string) ([]inventory.Trade, error) {
	records, err := readParquetFile[TradeRecord](path)
	if err != nil {
		return nil, err
	}
	trades := make([]inventory.Trade, 0, len(records))
	for _, r := range records {
		trades = append(trades, inventory.Trade{
			Symbol:     r.Symbol,
			Side:       inventory.PositionSide(r.Side),
			EntryTime:  time.UnixMilli(r.EntryTime).UTC(),
			ExitTime:   time.UnixMilli(r.ExitTime).UTC(),
			EntryPrice: r.EntryPrice,
			ExitPrice:  r.ExitPrice,
			Quantity:   r.Quantity,
			PnL:        r.PnL,
		})
	}
	return trades, nil
}

// ReadEquityCurve loads equity samples back from a Parquet file.
func ReadEquityCurve(path string) ([]posttrade.EquityPoint, error) {
	records, err := readParquetFile[EquityRecord](path)
	if err != nil {
		return nil, err
	}
	curve := make([]posttrade.EquityPoint, 0, len(records))
	for _, r := range records {
		curve = append(curve, posttrade.EquityPoint{
			Ts:     time.UnixMilli(r.Timestamp).UTC(),
			Equity: r.Equity,
		})
	}
	return curve, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

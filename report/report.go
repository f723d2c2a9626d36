// Package report renders backtest results to disk in JSON or Parquet form.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"trading-engine-go/inventory"
	"trading-engine-go/posttrade"
)

// Report bundles everything a backtest run produced.
type Report struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	Strategy       string                  `json:"strategy"`
	Symbol         string                  `json:"symbol"`
	InitialCapital float64                 `json:"initial_capital"`
	Metrics        posttrade.Metrics       `json:"metrics"`
	EquityCurve    []posttrade.EquityPoint `json:"equity_curve"`
	Trades         []inventory.Trade       `json:"trades"`
}

// New assembles a Report from backtest outputs, stamped with the current time.
func New(strategy, symbol string, initialCapital float64, m posttrade.Metrics, curve []posttrade.EquityPoint, trades []inventory.Trade) Report {
	return Report{
		GeneratedAt:    time.Now().UTC(),
		Strategy:       strategy,
		Symbol:         symbol,
		InitialCapital: initialCapital,
		Metrics:        m,
		EquityCurve:    curve,
		Trades:         trades,
	}
}

// Write renders the report under dir in the requested format
// ("json" or "parquet") and returns the paths written.
func Write(dir, format string, r Report) ([]string, error) {
	switch format {
	case "json":
		path := filepath.Join(dir, "report.json")
		if err := WriteJSON(path, r); err != nil {
			return nil, err
		}
		return []string{path}, nil
	case "parquet":
		return WriteParquet(dir, r)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// ratio is a float64 whose JSON form tolerates IEEE infinities, which
// encoding/json rejects in plain floats. Sortino and profit factor are
// +Inf on runs with no downside / no losing trades; those are encoded
// as the string "+Inf" and parsed back on read.
type ratio float64

func (v ratio) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(f)
}

func (v *ratio) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = ratio(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid ratio %q: %w", s, err)
	}
	*v = ratio(f)
	return nil
}

// metricsJSON shadows the two possibly-infinite fields with the
// tolerant ratio type; the rest marshal as plain numbers.
type metricsJSON struct {
	posttrade.Metrics
	SortinoRatio ratio
	ProfitFactor ratio
}

type reportJSON struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	Strategy       string                  `json:"strategy"`
	Symbol         string                  `json:"symbol"`
	InitialCapital float64                 `json:"initial_capital"`
	Metrics        metricsJSON             `json:"metrics"`
	EquityCurve    []posttrade.EquityPoint `json:"equity_curve"`
	Trades         []inventory.Trade       `json:"trades"`
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	j := reportJSON{
		GeneratedAt:    r.GeneratedAt,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		InitialCapital: r.InitialCapital,
		Metrics: metricsJSON{
			Metrics:      r.Metrics,
			SortinoRatio: ratio(r.Metrics.SortinoRatio),
			ProfitFactor: ratio(r.Metrics.ProfitFactor),
		},
		EquityCurve: r.EquityCurve,
		Trades:      r.Trades,
	}
	raw, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// ReadJSON loads a previously written JSON report.
func ReadJSON(path string) (Report, error) {
	var r Report
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	var j reportJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return r, fmt.Errorf("parse report: %w", err)
	}
	m := j.Metrics.Metrics
	m.SortinoRatio = float64(j.Metrics.SortinoRatio)
	m.ProfitFactor = float64(j.Metrics.ProfitFactor)
	r = Report{
		GeneratedAt:    j.GeneratedAt,
		Strategy:       j.Strategy,
		Symbol:         j.Symbol,
		InitialCapital: j.InitialCapital,
		Metrics:        m,
		EquityCurve:    j.EquityCurve,
		Trades:         j.Trades,
	}
	return r, nil
}

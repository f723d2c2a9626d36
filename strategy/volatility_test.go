package strategy

import (
	"math"
	"testing"
)

func TestVolEstimatorFlatPrices(t *testing.T) {
	v := NewVolEstimator(0.1)
	for i := 0; i < 10; i++ {
		v.Update(100)
	}
	if got := v.Volatility(); got != 0 {
		t.Fatalf("volatility of flat series = %v, want 0", got)
	}
	if v.Samples() != 9 {
		t.Fatalf("samples = %d, want 9", v.Samples())
	}
}

func TestVolEstimatorFirstReturnSeedsVariance(t *testing.T) {
	v := NewVolEstimator(0.1)
	v.Update(100)
	v.Update(101)

	want := math.Abs(math.Log(101.0 / 100.0))
	if got := v.Volatility(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("volatility = %v, want %v", got, want)
	}
}

func TestVolEstimatorAnnualized(t *testing.T) {
	v := NewVolEstimator(0.5)
	v.Update(100)
	v.Update(102)
	want := v.Volatility() * math.Sqrt(252)
	if got := v.Annualized(252); math.Abs(got-want) > 1e-12 {
		t.Fatalf("annualized = %v, want %v", got, want)
	}
	if v.Annualized(0) != 0 {
		t.Fatal("non-positive periods must yield 0")
	}
}

func TestVolEstimatorIgnoresBadPrices(t *testing.T) {
	v := NewVolEstimator(0.1)
	v.Update(100)
	v.Update(0)
	v.Update(-5)
	if v.Samples() != 0 {
		t.Fatalf("bad prices must be ignored, samples = %d", v.Samples())
	}
}

func TestVolEstimatorReset(t *testing.T) {
	v := NewVolEstimator(0.1)
	v.Update(100)
	v.Update(110)
	v.Reset()
	if v.Volatility() != 0 || v.Samples() != 0 {
		t.Fatal("reset must clear state")
	}
}

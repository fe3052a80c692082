package indicator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"bandrebalance/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, close float64) model.DailyBar {
	return model.DailyBar{
		Date: day0.AddDate(0, 0, i),
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
		Volume: 1000,
	}
}

func bars(closes ...float64) []model.DailyBar {
	out := make([]model.DailyBar, len(closes))
	for i, c := range closes {
		out[i] = bar(i, c)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// SMA(3) over 100, 102, 104, 103, 105
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(i, p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_WindowOrder(t *testing.T) {
	sma := NewSMA(3)
	if sma.Window() != nil {
		t.Fatal("expected nil window before ready")
	}
	for i, p := range []float64{1, 2, 3, 4} {
		sma.Update(bar(i, p))
	}
	got := sma.Window()
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window: got %v, want %v", got, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger Correctness
// ────────────────────────────────────────────────────────────

func TestBollinger_Correctness_Period5(t *testing.T) {
	// Closes 1..5: mean 3, sample variance (4+1+0+1+4)/4 = 2.5
	bb := NewBollinger(5, 2)
	for i, p := range []float64{1, 2, 3, 4, 5} {
		bb.Update(bar(i, p))
	}
	if !bb.Ready() {
		t.Fatal("expected Ready after 5 bars")
	}
	sd := math.Sqrt(2.5)
	b := bb.Bands()
	assertClose(t, "ma", b.MovingAverage, 3, 1e-9)
	assertClose(t, "std", b.StdDev, sd, 1e-9)
	assertClose(t, "upper", b.Upper, 3+2*sd, 1e-9)
	assertClose(t, "lower", b.Lower, 3-2*sd, 1e-9)

	// Roll the window: 2..6 has the same spread, mean 4
	bb.Update(bar(5, 6))
	b = bb.Bands()
	assertClose(t, "rolled ma", b.MovingAverage, 4, 1e-9)
	assertClose(t, "rolled std", b.StdDev, sd, 1e-9)
}

func TestBollinger_FlatSeriesCollapses(t *testing.T) {
	bb := NewBollinger(20, 2)
	for i := 0; i < 20; i++ {
		bb.Update(bar(i, 10))
	}
	b := bb.Bands()
	if b.StdDev != 0 || b.Upper != 10 || b.Lower != 10 {
		t.Errorf("flat series: got %+v, want std=0 upper=lower=10", b)
	}
}

// fixedBands is ready from the second bar and echoes the last close as a
// zero-width envelope.
type fixedBands struct {
	n    int
	last float64
}

func (f *fixedBands) Update(bar model.DailyBar) { f.n++; f.last = bar.Close }
func (f *fixedBands) Ready() bool               { return f.n >= 2 }
func (f *fixedBands) Bands() model.BandSnapshot {
	return model.BandSnapshot{MovingAverage: f.last, Upper: f.last, Lower: f.last}
}

func TestApply_UsesAnyIndicator(t *testing.T) {
	out := Apply(&fixedBands{}, bars(5, 6, 7), 0)
	if len(out) != 2 {
		t.Fatalf("expected 2 banded bars, got %d", len(out))
	}
	if out[0].Close != 6 || out[0].Bands.MovingAverage != 6 || out[1].Bands.Upper != 7 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestBollinger_StdUsesWindowOnly(t *testing.T) {
	// The 100 leaves the window; 1,2,3 has sample std 1.
	bb := NewBollinger(3, 1)
	for i, p := range []float64{100, 1, 2, 3} {
		bb.Update(bar(i, p))
	}
	b := bb.Bands()
	assertClose(t, "ma", b.MovingAverage, 2, 1e-9)
	assertClose(t, "std", b.StdDev, 1, 1e-9)
	assertClose(t, "upper", b.Upper, 3, 1e-9)
}

func TestBollinger_BandOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bb := NewBollinger(20, 2)
	price := 50.0
	for i := 0; i < 500; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.08
		bb.Update(bar(i, price))
		if !bb.Ready() {
			continue
		}
		b := bb.Bands()
		if !(b.Lower <= b.MovingAverage && b.MovingAverage <= b.Upper) {
			t.Fatalf("bar %d: band ordering violated: %+v", i, b)
		}
		if b.StdDev < 0 {
			t.Fatalf("bar %d: negative std %f", i, b.StdDev)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ComputeBands
// ────────────────────────────────────────────────────────────

func TestComputeBands_TrimsWarmup(t *testing.T) {
	series := make([]float64, 25)
	for i := range series {
		series[i] = 100 + float64(i)
	}
	out := ComputeBands(bars(series...), 20, 2)
	if len(out) != 6 {
		t.Fatalf("expected 6 banded bars, got %d", len(out))
	}
	// First output is the 20th input bar.
	if !out[0].Date.Equal(day0.AddDate(0, 0, 19)) {
		t.Errorf("first banded date: got %s", out[0].Day())
	}
	assertClose(t, "first ma", out[0].Bands.MovingAverage, 109.5, 1e-9)
}

func TestComputeBands_Insufficient(t *testing.T) {
	if out := ComputeBands(bars(1, 2, 3), 20, 2); out != nil {
		t.Errorf("expected nil for short input, got %d bars", len(out))
	}
	if out := ComputeBands(nil, 20, 2); out != nil {
		t.Errorf("expected nil for empty input, got %d bars", len(out))
	}
}

func TestComputeBands_MatchesStreaming(t *testing.T) {
	in := bars(10, 11, 9, 12, 8, 13, 7, 14)
	out := ComputeBands(in, 4, 1.5)

	bb := NewBollinger(4, 1.5)
	j := 0
	for _, b := range in {
		bb.Update(b)
		if !bb.Ready() {
			continue
		}
		if out[j].Bands != bb.Bands() {
			t.Errorf("index %d: batch %+v != streaming %+v", j, out[j].Bands, bb.Bands())
		}
		j++
	}
	if j != len(out) {
		t.Errorf("expected %d outputs, got %d", j, len(out))
	}
}

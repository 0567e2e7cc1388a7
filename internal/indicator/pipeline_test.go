package indicator

import (
	"math"
	"testing"

	"blueprint-scanner/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			Open:      c,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
	}
	return out
}

func linearCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEnsureMASMAValues(t *testing.T) {
	s := NewSeries(candlesFromCloses([]float64{1, 2, 3, 4, 5}))
	name := s.EnsureMA(3, MATypeSMA)
	if name != "sma_3" {
		t.Fatalf("column name = %q, want sma_3", name)
	}

	col := s.Column(name)
	if !math.IsNaN(col[0]) || !math.IsNaN(col[1]) {
		t.Errorf("rows before the window should be NaN, got %v %v", col[0], col[1])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if got := col[i+2]; math.Abs(got-w) > 1e-9 {
			t.Errorf("sma_3[%d] = %v, want %v", i+2, got, w)
		}
	}
}

func TestEnsureMAInsufficientHistoryStaysNaN(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(50, 100, 1)))
	name := s.EnsureMA(200, MATypeEMA)
	if _, ok := s.Last(name); ok {
		t.Fatal("200-period EMA over 50 bars should be undefined")
	}
}

func TestEnsureMAIdempotent(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(30, 100, 1)))
	first := s.Column(s.EnsureMA(10, MATypeEMA))
	second := s.Column(s.EnsureMA(10, MATypeEMA))
	if len(first) != len(second) {
		t.Fatalf("column length changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		same := first[i] == second[i] || (math.IsNaN(first[i]) && math.IsNaN(second[i]))
		if !same {
			t.Fatalf("recompute changed value at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestEnsureRSIBounds(t *testing.T) {
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		if i%3 == 0 {
			price *= 1.02
		} else {
			price *= 0.995
		}
		closes[i] = price
	}

	s := NewSeries(candlesFromCloses(closes))
	col := s.Column(s.EnsureRSI(14))
	for i, v := range col {
		if math.IsNaN(v) {
			if i > 14 {
				t.Errorf("rsi[%d] unexpectedly NaN", i)
			}
			continue
		}
		if v < 0 || v > 100 {
			t.Errorf("rsi[%d] = %v, outside [0, 100]", i, v)
		}
	}
}

func TestEnsureRSIAllGainsIsHundred(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(30, 100, 1)))
	rsi, ok := s.Last(s.EnsureRSI(14))
	if !ok {
		t.Fatal("RSI should be defined with 30 bars")
	}
	if rsi != 100 {
		t.Errorf("RSI on a strictly rising series = %v, want 100", rsi)
	}
}

func TestEnsureMACDHistogramSign(t *testing.T) {
	// Rising series: fast EMA above slow EMA, positive histogram
	up := NewSeries(candlesFromCloses(linearCloses(120, 100, 1)))
	hist, ok := up.Last(up.EnsureMACD(12, 26, 9))
	if !ok {
		t.Fatal("MACD histogram should be defined with 120 bars")
	}
	if hist <= 0 {
		t.Errorf("rising series MACD histogram = %v, want positive", hist)
	}

	down := NewSeries(candlesFromCloses(linearCloses(120, 300, -1)))
	hist, ok = down.Last(down.EnsureMACD(12, 26, 9))
	if !ok {
		t.Fatal("MACD histogram should be defined with 120 bars")
	}
	if hist >= 0 {
		t.Errorf("falling series MACD histogram = %v, want negative", hist)
	}
}

func TestEnsureBollingerOrdering(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 3*math.Sin(float64(i)/3)
	}
	s := NewSeries(candlesFromCloses(closes))
	s.EnsureBollinger(20, 2.0)

	last := s.Len() - 1
	upper, ok1 := s.At("bb_20_upper", last)
	mid, ok2 := s.At("bb_20_mid", last)
	lower, ok3 := s.At("bb_20_lower", last)
	if !ok1 || !ok2 || !ok3 {
		t.Fatal("bands should be defined with 40 bars")
	}
	if !(lower < mid && mid < upper) {
		t.Errorf("band ordering violated: lower=%v mid=%v upper=%v", lower, mid, upper)
	}

	bw, ok := s.Last("bb_20_bandwidth")
	if !ok || bw <= 0 {
		t.Errorf("bandwidth = %v (defined=%v), want positive", bw, ok)
	}
}

func TestEnsureATRPositive(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(60, 100, 0.5)))
	atr, ok := s.Last(s.EnsureATR(14))
	if !ok {
		t.Fatal("ATR should be defined with 60 bars")
	}
	if atr <= 0 {
		t.Errorf("ATR = %v, want positive", atr)
	}
}

func TestEnsureMASlopeSign(t *testing.T) {
	up := NewSeries(candlesFromCloses(linearCloses(80, 100, 1)))
	slope, ok := up.Last(up.EnsureMASlope(20, MATypeEMA, 5))
	if !ok || slope <= 0 {
		t.Errorf("rising series slope = %v (defined=%v), want positive", slope, ok)
	}

	down := NewSeries(candlesFromCloses(linearCloses(80, 300, -1)))
	slope, ok = down.Last(down.EnsureMASlope(20, MATypeEMA, 5))
	if !ok || slope >= 0 {
		t.Errorf("falling series slope = %v (defined=%v), want negative", slope, ok)
	}
}

func TestTruncateDropsColumnsAndFuture(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(50, 100, 1)))
	s.EnrichDefaults()
	funding := 0.0001
	s.FundingRate = &funding

	w := s.Truncate(20)
	if w.Len() != 20 {
		t.Fatalf("truncated length = %d, want 20", w.Len())
	}
	if len(w.ColumnNames()) != 0 {
		t.Errorf("truncated series should carry no computed columns, got %v", w.ColumnNames())
	}
	if w.FundingRate == nil || *w.FundingRate != funding {
		t.Error("funding snapshot should survive truncation")
	}
	if w.LastClose() != 119 {
		t.Errorf("last visible close = %v, want 119", w.LastClose())
	}

	// Truncate past the end keeps everything
	if s.Truncate(500).Len() != 50 {
		t.Error("over-length truncate should keep all candles")
	}
}

func TestEnrichDefaultsComputesCoreColumns(t *testing.T) {
	s := NewSeries(candlesFromCloses(linearCloses(250, 100, 0.5))).EnrichDefaults()
	for _, name := range []string{
		"ema_20", "ema_50", "ema_200", "sma_50", "sma_200",
		"ema_50_slope", "ema_200_slope",
		"rsi_14", "macd_12_26_9_hist", "bb_20_bandwidth", "atr_14", "vol_sma_20",
	} {
		if !s.HasColumn(name) {
			t.Errorf("missing default column %q", name)
		}
		if _, ok := s.Last(name); !ok {
			t.Errorf("column %q undefined at the last row despite 250 bars", name)
		}
	}
}

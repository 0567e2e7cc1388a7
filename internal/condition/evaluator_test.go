package condition

import (
	"errors"
	"testing"

	"blueprint-scanner/internal/indicator"
	"blueprint-scanner/internal/market"
)

func seriesFromCloses(closes []float64) *indicator.Series {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			Open:      c,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
	}
	return indicator.NewSeries(candles)
}

func trendingSeries(n int, start, step float64) *indicator.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return seriesFromCloses(closes)
}

func TestEvaluatePriceVsMA(t *testing.T) {
	rising := trendingSeries(60, 100, 1)
	falling := trendingSeries(60, 200, -1)
	short := trendingSeries(50, 100, 1)

	tests := []struct {
		name   string
		typ    Type
		params Params
		series *indicator.Series
		want   Result
	}{
		{"above on uptrend", PriceAboveMA, MAParams{Period: 20, MAType: "ema"}, rising, True},
		{"above on downtrend", PriceAboveMA, MAParams{Period: 20, MAType: "ema"}, falling, False},
		{"below on downtrend", PriceBelowMA, MAParams{Period: 20, MAType: "ema"}, falling, True},
		{"long period short history", PriceAboveMA, MAParams{Period: 200, MAType: "ema"}, short, Undefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.typ, tt.params, tt.series)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateTinySeriesIsUndefined(t *testing.T) {
	got, err := Evaluate(PriceAboveMA, MAParams{Period: 20, MAType: "ema"}, seriesFromCloses([]float64{100}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Undefined {
		t.Errorf("result = %v, want Undefined", got)
	}
}

func TestEvaluateWrongParamStruct(t *testing.T) {
	_, err := Evaluate(PriceAboveMA, RSIThresholdParams{Period: 14, Threshold: 30}, trendingSeries(60, 100, 1))
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

func TestEvaluateUnknownType(t *testing.T) {
	_, err := Evaluate(Type("does_not_exist"), MAParams{Period: 20, MAType: "ema"}, trendingSeries(60, 100, 1))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestEvaluateSlope(t *testing.T) {
	rising := trendingSeries(80, 100, 1)
	falling := trendingSeries(80, 300, -1)
	p := SlopeParams{Period: 20, MAType: "ema", Lookback: 5}

	if got, _ := Evaluate(MASlopeRising, p, rising); got != True {
		t.Errorf("rising slope on uptrend = %v, want True", got)
	}
	if got, _ := Evaluate(MASlopeRising, p, falling); got != False {
		t.Errorf("rising slope on downtrend = %v, want False", got)
	}
	if got, _ := Evaluate(MASlopeFalling, p, falling); got != True {
		t.Errorf("falling slope on downtrend = %v, want True", got)
	}
}

func TestEvaluateEMACrossover(t *testing.T) {
	// Flat, dip, sharp rally: the fast EMA crosses above the slow EMA on
	// the final bar
	s := seriesFromCloses([]float64{10, 10, 10, 10, 8, 8, 8, 20})
	p := CrossoverParams{FastPeriod: 2, SlowPeriod: 3}

	if got, _ := Evaluate(EMACrossoverBullish, p, s); got != True {
		t.Errorf("bullish crossover = %v, want True", got)
	}
	if got, _ := Evaluate(EMACrossoverBearish, p, s); got != False {
		t.Errorf("bearish crossover on a bullish cross = %v, want False", got)
	}

	// Monotonic uptrend: fast stays above slow, no fresh cross
	mono := trendingSeries(60, 100, 1)
	if got, _ := Evaluate(EMACrossoverBullish, CrossoverParams{FastPeriod: 10, SlowPeriod: 30}, mono); got != False {
		t.Errorf("crossover on monotonic trend = %v, want False", got)
	}
}

func TestEvaluateStructureTrend(t *testing.T) {
	// Ascending zigzag: swing highs 105, 107, 109 and rising troughs
	up := seriesFromCloses([]float64{
		100, 101, 102, 105, 102, 101, 102, 103, 107,
		104, 103, 104, 105, 109, 106, 105, 104,
	})
	p := StructureTrendParams{Lookback: 20, MinSwings: 2}

	if got, _ := Evaluate(HigherHighsLows, p, up); got != True {
		t.Errorf("higher highs/lows on ascending zigzag = %v, want True", got)
	}
	if got, _ := Evaluate(LowerHighsLows, p, up); got != False {
		t.Errorf("lower highs/lows on ascending zigzag = %v, want False", got)
	}

	// A straight line has no confirmed swings at all
	if got, _ := Evaluate(HigherHighsLows, p, trendingSeries(30, 100, 1)); got != False {
		t.Errorf("higher highs/lows on a straight line = %v, want False", got)
	}

	if got, _ := Evaluate(HigherHighsLows, p, trendingSeries(5, 100, 1)); got != Undefined {
		t.Errorf("structure on 5 bars = %v, want Undefined", got)
	}
}

func TestEvaluateBreakOfStructure(t *testing.T) {
	s := seriesFromCloses([]float64{
		98, 99, 100, 101, 102, 105, 102, 101, 100, 101, 102, 101, 100, 107,
	})
	p := BreakParams{Lookback: 12, SwingWindow: 3}

	if got, _ := Evaluate(BreakOfStructureBullish, p, s); got != True {
		t.Errorf("close above prior swing high = %v, want True", got)
	}
	if got, _ := Evaluate(BreakOfStructureBearish, p, s); got != False {
		t.Errorf("bearish break on an upside breakout = %v, want False", got)
	}
}

func TestEvaluateProximity(t *testing.T) {
	nearSupport := seriesFromCloses([]float64{
		105, 104, 103, 102, 101, 100, 99.5, 100, 101, 102,
		103, 104, 105, 104, 103, 102, 101, 100,
	})
	p := ProximityParams{Lookback: 50, ProximityPct: 2.0, SwingWindow: 3}

	if got, _ := Evaluate(PriceNearSupport, p, nearSupport); got != True {
		t.Errorf("price near swing-low support = %v, want True", got)
	}

	nearResistance := seriesFromCloses([]float64{
		95, 96, 97, 98, 99, 100, 100.5, 100, 99, 98,
		97, 96, 95, 96, 97, 98, 99, 100,
	})
	if got, _ := Evaluate(PriceNearResistance, p, nearResistance); got != True {
		t.Errorf("price near swing-high resistance = %v, want True", got)
	}

	// Far support: the only swing low sits well beyond the proximity band
	farAway := seriesFromCloses([]float64{
		105, 104, 103, 102, 101, 80, 81, 100, 101, 102,
		103, 104, 105, 104, 103, 102, 101, 100,
	})
	if got, _ := Evaluate(PriceNearSupport, p, farAway); got != False {
		t.Errorf("price far from support = %v, want False", got)
	}
}

func TestEvaluateRSIThresholds(t *testing.T) {
	rising := trendingSeries(60, 100, 1)
	falling := trendingSeries(60, 200, -1)

	if got, _ := Evaluate(RSIOverbought, RSIThresholdParams{Period: 14, Threshold: 70}, rising); got != True {
		t.Errorf("overbought on relentless uptrend = %v, want True", got)
	}
	if got, _ := Evaluate(RSIOversold, RSIThresholdParams{Period: 14, Threshold: 30}, falling); got != True {
		t.Errorf("oversold on relentless downtrend = %v, want True", got)
	}
	if got, _ := Evaluate(RSIInRange, RSIRangeParams{Period: 14, MinVal: 30, MaxVal: 50}, rising); got != False {
		t.Errorf("RSI in 30-50 on uptrend = %v, want False", got)
	}
}

func TestEvaluateMACDHistogram(t *testing.T) {
	rising := trendingSeries(120, 100, 1)
	p := MACDParams{Fast: 12, Slow: 26, Signal: 9}

	if got, _ := Evaluate(MACDHistogramPositive, p, rising); got != True {
		t.Errorf("positive histogram on uptrend = %v, want True", got)
	}
	if got, _ := Evaluate(MACDHistogramNegative, p, rising); got != False {
		t.Errorf("negative histogram on uptrend = %v, want False", got)
	}
}

func TestEvaluateBBSqueeze(t *testing.T) {
	flat := trendingSeries(40, 100, 0)
	p := BBSqueezeParams{Period: 20, StdDev: 2.0, Threshold: 0.05}

	if got, _ := Evaluate(BBSqueeze, p, flat); got != True {
		t.Errorf("squeeze on a flat series = %v, want True", got)
	}

	wide := trendingSeries(40, 100, 3)
	if got, _ := Evaluate(BBSqueeze, p, wide); got != False {
		t.Errorf("squeeze on a fast trend = %v, want False", got)
	}
}

func TestEvaluateVolumeSpike(t *testing.T) {
	s := trendingSeries(40, 100, 0.5)
	s.Candles[len(s.Candles)-1].Volume = 5000 // Baseline volume is 1000
	p := VolumeSpikeParams{AvgPeriod: 20, Multiplier: 2.0}

	if got, _ := Evaluate(VolumeSpike, p, s); got != True {
		t.Errorf("5x volume = %v, want True", got)
	}

	quiet := trendingSeries(40, 100, 0.5)
	if got, _ := Evaluate(VolumeSpike, p, quiet); got != False {
		t.Errorf("flat volume = %v, want False", got)
	}
}

func TestEvaluateVolumeDeclining(t *testing.T) {
	s := trendingSeries(20, 100, 0.5)
	n := len(s.Candles)
	s.Candles[n-4].Volume = 4000
	s.Candles[n-3].Volume = 3000
	s.Candles[n-2].Volume = 2000
	s.Candles[n-1].Volume = 1500
	p := CandleCountParams{Candles: 3}

	if got, _ := Evaluate(VolumeDeclining, p, s); got != True {
		t.Errorf("declining volume = %v, want True", got)
	}

	flat := trendingSeries(20, 100, 0.5)
	if got, _ := Evaluate(VolumeDeclining, p, flat); got != False {
		t.Errorf("flat volume = %v, want False", got)
	}
}

func TestEvaluateATRCompare(t *testing.T) {
	// Quiet ranges then a burst of wide candles lifts current ATR above
	// its recent average
	candles := make([]market.Candle, 45)
	for i := range candles {
		c := 100.0
		spread := 0.5
		if i >= 40 {
			spread = 5.0
		}
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     c, Close: c,
			High: c + spread, Low: c - spread,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
	}
	s := indicator.NewSeries(candles)
	p := ATRCompareParams{ATRPeriod: 14, AvgPeriod: 20}

	if got, _ := Evaluate(ATRAboveAverage, p, s); got != True {
		t.Errorf("ATR after volatility burst = %v, want True", got)
	}
	if got, _ := Evaluate(ATRBelowAverage, p, s); got != False {
		t.Errorf("ATR below average after burst = %v, want False", got)
	}
}

func TestEvaluateCandleRangeContraction(t *testing.T) {
	candles := make([]market.Candle, 30)
	for i := range candles {
		c := 100.0
		spread := 5.0
		if i >= 25 {
			spread = 0.5
		}
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     c, Close: c,
			High: c + spread, Low: c - spread,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
	}
	s := indicator.NewSeries(candles)
	p := ContractionParams{Lookback: 5, AvgPeriod: 20, Ratio: 0.7}

	if got, _ := Evaluate(CandleRangeContraction, p, s); got != True {
		t.Errorf("tight recent ranges = %v, want True", got)
	}
}

func TestEvaluateFundingConditions(t *testing.T) {
	s := trendingSeries(30, 100, 0.5)

	// No perpetual market: funding gates pass by default
	if got, _ := Evaluate(FundingRateBelow, FundingThresholdParams{Threshold: 0.01}, s); got != True {
		t.Errorf("funding below with nil rate = %v, want True", got)
	}

	rate := 0.02
	s.FundingRate = &rate
	if got, _ := Evaluate(FundingRateBelow, FundingThresholdParams{Threshold: 0.01}, s); got != False {
		t.Errorf("funding 0.02 below 0.01 = %v, want False", got)
	}
	if got, _ := Evaluate(FundingRateAbove, FundingThresholdParams{Threshold: 0.01}, s); got != True {
		t.Errorf("funding 0.02 above 0.01 = %v, want True", got)
	}
}

func TestEvaluateOpenInterest(t *testing.T) {
	s := trendingSeries(30, 100, 0.5)
	p := CandleCountParams{Candles: 3}

	if got, _ := Evaluate(OpenInterestRising, p, s); got != True {
		t.Errorf("open interest with no futures market = %v, want True", got)
	}

	oi := 1_000_000.0
	s.OpenInterest = &oi
	if got, _ := Evaluate(OpenInterestRising, p, s); got != Undefined {
		t.Errorf("open interest from a single snapshot = %v, want Undefined", got)
	}
}

// Package regime classifies the overall market state from the reference
// asset's daily price structure. Classification is total: any input yields
// a regime label, with the insufficient-data fallback carrying zero
// confidence.
package regime

import (
	"math"

	"blueprint-scanner/internal/indicator"
)

// Regime labels the coarse market behavior
type Regime string

const (
	TrendingUp     Regime = "trending_up"
	TrendingDown   Regime = "trending_down"
	Ranging        Regime = "ranging"
	HighVolatility Regime = "high_volatility"
)

// All returns every regime label, for strategy validation
func All() []Regime {
	return []Regime{TrendingUp, TrendingDown, Ranging, HighVolatility}
}

// IsValid reports whether r is a recognized regime label
func IsValid(r Regime) bool {
	switch r {
	case TrendingUp, TrendingDown, Ranging, HighVolatility:
		return true
	}
	return false
}

// Classification is the result of regime detection
type Classification struct {
	Regime      Regime             `json:"regime"`
	Trend       string             `json:"btc_trend"`
	Confidence  float64            `json:"confidence"`
	Description string             `json:"description"`
	Snapshot    map[string]float64 `json:"indicators,omitempty"`
}

// minBars is the minimum daily history needed for a confident read
const minBars = 50

// Classify detects the market regime from the reference asset's daily
// series. High volatility is checked first (an ATR spike overrides trend
// reads), then a four-point bullish/bearish score over price-vs-EMA and
// EMA slope signals, with ranging as the mixed-signal fallback.
func Classify(s *indicator.Series) Classification {
	if s == nil || s.Len() < minBars {
		return Classification{
			Regime:      Ranging,
			Trend:       "unknown",
			Confidence:  0,
			Description: "Insufficient data, defaulting to ranging",
		}
	}

	s.EnsureMA(50, indicator.MATypeEMA)
	s.EnsureMA(200, indicator.MATypeEMA)
	s.EnsureMASlope(50, indicator.MATypeEMA, 5)
	s.EnsureMASlope(200, indicator.MATypeEMA, 5)
	atrCol := s.EnsureATR(14)

	close := s.LastClose()
	ema50, hasEMA50 := s.Last("ema_50")
	ema200, hasEMA200 := s.Last("ema_200")
	slope50, hasSlope50 := s.Last("ema_50_slope")
	slope200, hasSlope200 := s.Last("ema_200_slope")
	atr, hasATR := s.Last(atrCol)

	atrPct := 0.0
	if hasATR && close > 0 {
		atrPct = atr / close * 100
	}
	avgATRPct := averageATRPercent(s, atrCol, 20)

	snapshot := map[string]float64{
		"close":       round2(close),
		"atr_pct":     round3(atrPct),
		"avg_atr_pct": round3(avgATRPct),
	}
	if hasEMA50 {
		snapshot["ema_50"] = round2(ema50)
	}
	if hasEMA200 {
		snapshot["ema_200"] = round2(ema200)
	}
	if hasSlope50 {
		snapshot["ema_50_slope"] = round4(slope50)
	}
	if hasSlope200 {
		snapshot["ema_200_slope"] = round4(slope200)
	}

	// Volatility spike overrides any trend read
	if avgATRPct > 0 && atrPct > avgATRPct*1.5 && atrPct > 4.0 {
		return Classification{
			Regime:      HighVolatility,
			Trend:       "volatile",
			Confidence:  math.Min(1, atrPct/(avgATRPct*2)),
			Description: "High volatility environment, ATR is significantly elevated",
			Snapshot:    snapshot,
		}
	}

	above50 := hasEMA50 && close > ema50
	above200 := hasEMA200 && close > ema200
	slope50Up := hasSlope50 && slope50 > 0
	slope200Up := hasSlope200 && slope200 > 0

	bullish := score(above50, above200, slope50Up, slope200Up)
	bearish := score(!above50, !above200,
		hasSlope50 && slope50 < 0,
		hasSlope200 && slope200 < 0)

	if bullish >= 3 {
		return Classification{
			Regime:      TrendingUp,
			Trend:       "bullish",
			Confidence:  float64(bullish) / 4,
			Description: "Reference asset in uptrend, price above key MAs with positive slope",
			Snapshot:    snapshot,
		}
	}
	if bearish >= 3 {
		return Classification{
			Regime:      TrendingDown,
			Trend:       "bearish",
			Confidence:  float64(bearish) / 4,
			Description: "Reference asset in downtrend, price below key MAs with negative slope",
			Snapshot:    snapshot,
		}
	}

	return Classification{
		Regime:      Ranging,
		Trend:       "neutral",
		Confidence:  0.5,
		Description: "Range-bound or indecisive state, mixed signals",
		Snapshot:    snapshot,
	}
}

func averageATRPercent(s *indicator.Series, atrCol string, lookback int) float64 {
	col := s.Column(atrCol)
	closes := s.Closes()

	sum, count := 0.0, 0
	start := len(col) - lookback
	if start < 0 {
		start = 0
	}
	for i := start; i < len(col); i++ {
		if math.IsNaN(col[i]) || closes[i] <= 0 {
			continue
		}
		sum += col[i] / closes[i] * 100
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func score(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

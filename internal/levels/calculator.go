// Package levels computes entry, stop-loss and take-profit prices for a
// detected setup from volatility and recent swing structure.
package levels

import (
	"errors"
	"math"
	"sort"

	"blueprint-scanner/internal/indicator"
)

// Trade directions
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// ErrNoValidLevels reports that no internally consistent level set exists
// for the given data: the candidate setup is dropped, not an error the
// user sees.
var ErrNoValidLevels = errors.New("no valid level set for setup")

// Levels is a computed entry/stop/target set. Invariants: the stop is
// strictly on the losing side of the entry, and TP1 through TP3 strictly
// progress away from the entry in the winning direction.
type Levels struct {
	Entry       float64 `json:"entry_price"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2"`
	TakeProfit3 float64 `json:"take_profit_3"`
	RiskReward  float64 `json:"risk_reward_ratio"`
}

const (
	swingLookback = 50
	atrPeriod     = 14

	// R-multiple targets for the three take-profit tiers
	tp1R = 1.5
	tp2R = 2.5
	tp3R = 4.0

	// Stop placement: buffer beyond the swing level, and the fallback
	// distance when no usable swing exists
	swingBufferATR = 0.2
	fallbackATR    = 1.5
)

// Calculate derives the level set for a direction at the current price,
// using ATR for distance and the last 50 bars' swing structure for stop
// and target refinement. Fails with ErrNoValidLevels for degenerate data.
func Calculate(s *indicator.Series, direction string, price float64) (*Levels, error) {
	if s == nil || s.Len() == 0 || price <= 0 {
		return nil, ErrNoValidLevels
	}

	atr, ok := s.Last(s.EnsureATR(atrPeriod))
	if !ok || atr <= 0 {
		// Thin history: assume 2% of price as the volatility unit
		atr = price * 0.02
	}

	swingHighs := indicator.SwingHighs(indicator.Tail(s.Highs(), swingLookback), indicator.DefaultSwingWindow)
	swingLows := indicator.SwingLows(indicator.Tail(s.Lows(), swingLookback), indicator.DefaultSwingWindow)

	var lv *Levels
	switch direction {
	case DirectionLong:
		lv = longLevels(price, atr, swingHighs, swingLows)
	case DirectionShort:
		lv = shortLevels(price, atr, swingHighs, swingLows)
	default:
		return nil, ErrNoValidLevels
	}

	if !lv.consistent(direction) {
		return nil, ErrNoValidLevels
	}
	return lv, nil
}

func longLevels(price, atr float64, swingHighs, swingLows []float64) *Levels {
	entry := price

	stop := price - atr*fallbackATR
	for i := len(swingLows) - 1; i >= 0; i-- {
		if swingLows[i] < price {
			stop = swingLows[i] - atr*swingBufferATR
			break
		}
	}

	risk := entry - stop
	if risk <= 0 {
		risk = atr
		stop = entry - risk
	}

	tp1 := entry + risk*tp1R
	tp2 := entry + risk*tp2R
	tp3 := entry + risk*tp3R

	// Snap the first two targets outward to overhead resistance
	above := ascendingAbove(swingHighs, price)
	if len(above) >= 1 {
		tp1 = math.Max(tp1, above[0])
	}
	if len(above) >= 2 {
		tp2 = math.Max(tp2, above[1])
	}
	if tp2 <= tp1 {
		tp2 = tp1 + risk
	}
	if tp3 <= tp2 {
		tp3 = tp2 + risk
	}

	return &Levels{
		Entry:       round8(entry),
		StopLoss:    round8(stop),
		TakeProfit1: round8(tp1),
		TakeProfit2: round8(tp2),
		TakeProfit3: round8(tp3),
		RiskReward:  round2((tp1 - entry) / risk),
	}
}

func shortLevels(price, atr float64, swingHighs, swingLows []float64) *Levels {
	entry := price

	stop := price + atr*fallbackATR
	for _, h := range swingHighs {
		if h > price {
			stop = h + atr*swingBufferATR
			break
		}
	}

	risk := stop - entry
	if risk <= 0 {
		risk = atr
		stop = entry + risk
	}

	tp1 := entry - risk*tp1R
	tp2 := entry - risk*tp2R
	tp3 := entry - risk*tp3R

	// Snap the first two targets downward to underlying support
	below := descendingBelow(swingLows, price)
	if len(below) >= 1 {
		tp1 = math.Min(tp1, below[0])
	}
	if len(below) >= 2 {
		tp2 = math.Min(tp2, below[1])
	}
	if tp2 >= tp1 {
		tp2 = tp1 - risk
	}
	if tp3 >= tp2 {
		tp3 = tp2 - risk
	}

	// A short's targets cannot go negative; clamping here may collapse
	// the ordering, which consistent() then rejects
	tp1 = math.Max(0, tp1)
	tp2 = math.Max(0, tp2)
	tp3 = math.Max(0, tp3)

	return &Levels{
		Entry:       round8(entry),
		StopLoss:    round8(stop),
		TakeProfit1: round8(tp1),
		TakeProfit2: round8(tp2),
		TakeProfit3: round8(tp3),
		RiskReward:  round2((entry - tp1) / risk),
	}
}

// consistent verifies the ordering invariants for the direction
func (lv *Levels) consistent(direction string) bool {
	if lv.RiskReward <= 0 {
		return false
	}
	switch direction {
	case DirectionLong:
		return lv.StopLoss < lv.Entry &&
			lv.Entry < lv.TakeProfit1 &&
			lv.TakeProfit1 < lv.TakeProfit2 &&
			lv.TakeProfit2 < lv.TakeProfit3
	case DirectionShort:
		return lv.StopLoss > lv.Entry &&
			lv.Entry > lv.TakeProfit1 &&
			lv.TakeProfit1 > lv.TakeProfit2 &&
			lv.TakeProfit2 > lv.TakeProfit3
	}
	return false
}

// ascendingAbove returns swing values above price, nearest first
func ascendingAbove(values []float64, price float64) []float64 {
	var out []float64
	for _, v := range values {
		if v > price {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// descendingBelow returns swing values below price, nearest first
func descendingBelow(values []float64, price float64) []float64 {
	var out []float64
	for _, v := range values {
		if v < price {
			out = append(out, v)
		}
	}
	// Nearest (highest) support first
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

func round8(v float64) float64 { return math.Round(v*1e8) / 1e8 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

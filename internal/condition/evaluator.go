// Package condition evaluates strategy conditions against indicator-enriched
// OHLCV series. Every evaluator is a pure predicate returning a tri-state
// Result; structural evaluators use fixed swing windows so results are
// deterministic for a given series.
package condition

import (
	"fmt"

	"blueprint-scanner/internal/indicator"
)

// Evaluate runs one condition against an enriched series. The returned
// error is a configuration problem (unknown type, wrong parameter struct)
// and is reported per condition without failing the scan; data problems
// surface as Undefined, never as an error.
func Evaluate(t Type, p Params, s *indicator.Series) (Result, error) {
	if s == nil || s.Len() < 2 {
		return Undefined, nil
	}

	switch t {
	case PriceAboveMA:
		return evalPriceVsMA(p, s, true)
	case PriceBelowMA:
		return evalPriceVsMA(p, s, false)
	case MASlopeRising:
		return evalSlope(p, s, true)
	case MASlopeFalling:
		return evalSlope(p, s, false)
	case EMACrossoverBullish:
		return evalCrossover(p, s, true)
	case EMACrossoverBearish:
		return evalCrossover(p, s, false)
	case HigherHighsLows:
		return evalStructureTrend(p, s, true)
	case LowerHighsLows:
		return evalStructureTrend(p, s, false)
	case BreakOfStructureBullish:
		return evalBreakOfStructure(p, s, true)
	case BreakOfStructureBearish:
		return evalBreakOfStructure(p, s, false)
	case PriceNearSupport:
		return evalProximity(p, s, true)
	case PriceNearResistance:
		return evalProximity(p, s, false)
	case BBSqueeze:
		return evalBBSqueeze(p, s)
	case ATRAboveAverage:
		return evalATRCompare(p, s, true)
	case ATRBelowAverage:
		return evalATRCompare(p, s, false)
	case CandleRangeContraction:
		return evalContraction(p, s)
	case RSIInRange:
		return evalRSIRange(p, s)
	case RSIOversold:
		return evalRSIThreshold(p, s, false)
	case RSIOverbought:
		return evalRSIThreshold(p, s, true)
	case MACDHistogramPositive:
		return evalMACDHistogram(p, s, true)
	case MACDHistogramNegative:
		return evalMACDHistogram(p, s, false)
	case RSIBullishDivergence:
		return evalRSIDivergence(p, s)
	case VolumeSpike:
		return evalVolumeSpike(p, s)
	case VolumeDeclining:
		return evalVolumeDeclining(p, s)
	case FundingRateBelow:
		return evalFunding(p, s, true)
	case FundingRateAbove:
		return evalFunding(p, s, false)
	case OpenInterestRising:
		return evalOpenInterest(p, s)
	default:
		return Undefined, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func paramsError(t interface{}) error {
	return fmt.Errorf("%w: unexpected parameter struct %T", ErrInvalidParams, t)
}

func evalPriceVsMA(p Params, s *indicator.Series, above bool) (Result, error) {
	mp, ok := p.(MAParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	ma, defined := s.Last(s.EnsureMA(mp.Period, mp.MAType))
	if !defined {
		return Undefined, nil
	}
	if above == (s.LastClose() > ma) {
		return True, nil
	}
	return False, nil
}

func evalSlope(p Params, s *indicator.Series, rising bool) (Result, error) {
	sp, ok := p.(SlopeParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	slope, defined := s.Last(s.EnsureMASlope(sp.Period, sp.MAType, sp.Lookback))
	if !defined {
		return Undefined, nil
	}
	if (rising && slope > 0) || (!rising && slope < 0) {
		return True, nil
	}
	return False, nil
}

func evalCrossover(p Params, s *indicator.Series, bullish bool) (Result, error) {
	cp, ok := p.(CrossoverParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	fastCol := s.EnsureMA(cp.FastPeriod, indicator.MATypeEMA)
	slowCol := s.EnsureMA(cp.SlowPeriod, indicator.MATypeEMA)

	last := s.Len() - 1
	currFast, ok1 := s.At(fastCol, last)
	currSlow, ok2 := s.At(slowCol, last)
	prevFast, ok3 := s.At(fastCol, last-1)
	prevSlow, ok4 := s.At(slowCol, last-1)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Undefined, nil
	}

	if bullish {
		if prevFast <= prevSlow && currFast > currSlow {
			return True, nil
		}
	} else {
		if prevFast >= prevSlow && currFast < currSlow {
			return True, nil
		}
	}
	return False, nil
}

// minStructureBars is the minimum window for swing-structure trend checks;
// fewer bars cannot hold two confirmed swings on each side.
const minStructureBars = 10

func evalStructureTrend(p Params, s *indicator.Series, higher bool) (Result, error) {
	sp, ok := p.(StructureTrendParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	highs := indicator.Tail(s.Highs(), sp.Lookback)
	lows := indicator.Tail(s.Lows(), sp.Lookback)
	if len(highs) < minStructureBars {
		return Undefined, nil
	}

	swingHighs := indicator.SwingHighs(highs, indicator.DefaultSwingWindow)
	swingLows := indicator.SwingLows(lows, indicator.DefaultSwingWindow)
	if len(swingHighs) < sp.MinSwings || len(swingLows) < sp.MinSwings {
		return False, nil
	}

	if higher {
		if ascending(swingHighs) && ascending(swingLows) {
			return True, nil
		}
	} else {
		if descending(swingHighs) && descending(swingLows) {
			return True, nil
		}
	}
	return False, nil
}

func ascending(values []float64) bool {
	for i := 0; i < len(values)-1; i++ {
		if values[i] >= values[i+1] {
			return false
		}
	}
	return true
}

func descending(values []float64) bool {
	for i := 0; i < len(values)-1; i++ {
		if values[i] <= values[i+1] {
			return false
		}
	}
	return true
}

func evalBreakOfStructure(p Params, s *indicator.Series, bullish bool) (Result, error) {
	bp, ok := p.(BreakParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	if s.Len() < bp.Lookback {
		return Undefined, nil
	}

	// Swings detected on the bars before the current one, so the break is
	// judged against prior structure
	if bullish {
		older := indicator.Tail(s.Highs(), bp.Lookback+1)
		older = older[:len(older)-1]
		swings := indicator.SwingHighs(older, bp.SwingWindow)
		if len(swings) == 0 {
			return False, nil
		}
		if s.LastClose() > swings[len(swings)-1] {
			return True, nil
		}
		return False, nil
	}

	older := indicator.Tail(s.Lows(), bp.Lookback+1)
	older = older[:len(older)-1]
	swings := indicator.SwingLows(older, bp.SwingWindow)
	if len(swings) == 0 {
		return False, nil
	}
	if s.LastClose() < swings[len(swings)-1] {
		return True, nil
	}
	return False, nil
}

func evalProximity(p Params, s *indicator.Series, support bool) (Result, error) {
	pp, ok := p.(ProximityParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	proximity := pp.ProximityPct / 100
	price := s.LastClose()
	if price <= 0 {
		return Undefined, nil
	}

	if support {
		lows := indicator.SwingLows(indicator.Tail(s.Lows(), pp.Lookback), pp.SwingWindow)
		if len(lows) == 0 {
			return False, nil
		}
		for i := len(lows) - 1; i >= 0; i-- {
			if lows[i] < price && (price-lows[i])/price <= proximity {
				return True, nil
			}
		}
		return False, nil
	}

	highs := indicator.SwingHighs(indicator.Tail(s.Highs(), pp.Lookback), pp.SwingWindow)
	if len(highs) == 0 {
		return False, nil
	}
	for i := len(highs) - 1; i >= 0; i-- {
		if highs[i] > price && (highs[i]-price)/price <= proximity {
			return True, nil
		}
	}
	return False, nil
}

func evalBBSqueeze(p Params, s *indicator.Series) (Result, error) {
	bp, ok := p.(BBSqueezeParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	bandwidth, defined := s.Last(s.EnsureBollinger(bp.Period, bp.StdDev))
	if !defined {
		return Undefined, nil
	}
	if bandwidth < bp.Threshold {
		return True, nil
	}
	return False, nil
}

func evalATRCompare(p Params, s *indicator.Series, above bool) (Result, error) {
	ap, ok := p.(ATRCompareParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	name := s.EnsureATR(ap.ATRPeriod)
	current, defined := s.Last(name)
	if !defined {
		return Undefined, nil
	}

	avg, ok2 := tailMean(s.Column(name), ap.AvgPeriod)
	if !ok2 {
		return Undefined, nil
	}

	if (above && current > avg) || (!above && current < avg) {
		return True, nil
	}
	return False, nil
}

// tailMean averages the last n values, requiring all of them defined
func tailMean(values []float64, n int) (float64, bool) {
	if len(values) < n || n < 1 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		if v != v { // NaN
			return 0, false
		}
		sum += v
	}
	return sum / float64(n), true
}

func evalContraction(p Params, s *indicator.Series) (Result, error) {
	cp, ok := p.(ContractionParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	if s.Len() < cp.AvgPeriod || s.Len() < cp.Lookback {
		return Undefined, nil
	}

	ranges := make([]float64, s.Len())
	for i, c := range s.Candles {
		ranges[i] = c.High - c.Low
	}

	avgRange, ok2 := tailMean(ranges, cp.AvgPeriod)
	if !ok2 || avgRange == 0 {
		return Undefined, nil
	}
	recentAvg, _ := tailMean(ranges, cp.Lookback)

	if recentAvg/avgRange < cp.Ratio {
		return True, nil
	}
	return False, nil
}

func evalRSIRange(p Params, s *indicator.Series) (Result, error) {
	rp, ok := p.(RSIRangeParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	rsi, defined := s.Last(s.EnsureRSI(rp.Period))
	if !defined {
		return Undefined, nil
	}
	if rsi >= rp.MinVal && rsi <= rp.MaxVal {
		return True, nil
	}
	return False, nil
}

func evalRSIThreshold(p Params, s *indicator.Series, overbought bool) (Result, error) {
	rp, ok := p.(RSIThresholdParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	rsi, defined := s.Last(s.EnsureRSI(rp.Period))
	if !defined {
		return Undefined, nil
	}
	if (overbought && rsi > rp.Threshold) || (!overbought && rsi < rp.Threshold) {
		return True, nil
	}
	return False, nil
}

func evalMACDHistogram(p Params, s *indicator.Series, positive bool) (Result, error) {
	mp, ok := p.(MACDParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	hist, defined := s.Last(s.EnsureMACD(mp.Fast, mp.Slow, mp.Signal))
	if !defined {
		return Undefined, nil
	}
	if (positive && hist > 0) || (!positive && hist < 0) {
		return True, nil
	}
	return False, nil
}

func evalRSIDivergence(p Params, s *indicator.Series) (Result, error) {
	dp, ok := p.(DivergenceParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	if s.Len() < dp.Lookback {
		return Undefined, nil
	}

	rsiCol := s.Column(s.EnsureRSI(dp.Period))
	recentCloses := indicator.Tail(s.Closes(), dp.Lookback)
	recentRSI := indicator.Tail(rsiCol, dp.Lookback)

	priceLows := indicator.SwingLows(recentCloses, indicator.DefaultSwingWindow)
	rsiLowIdx := indicator.SwingLowIndexes(recentRSI, indicator.DefaultSwingWindow)
	if len(priceLows) < 2 || len(rsiLowIdx) < 2 {
		return False, nil
	}

	lastRSI := recentRSI[rsiLowIdx[len(rsiLowIdx)-1]]
	prevRSI := recentRSI[rsiLowIdx[len(rsiLowIdx)-2]]
	if lastRSI != lastRSI || prevRSI != prevRSI { // NaN
		return Undefined, nil
	}

	priceLowerLow := priceLows[len(priceLows)-1] < priceLows[len(priceLows)-2]
	rsiHigherLow := lastRSI > prevRSI
	if priceLowerLow && rsiHigherLow {
		return True, nil
	}
	return False, nil
}

func evalVolumeSpike(p Params, s *indicator.Series) (Result, error) {
	vp, ok := p.(VolumeSpikeParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	avg, defined := s.Last(s.EnsureVolumeSMA(vp.AvgPeriod))
	if !defined || avg == 0 {
		return Undefined, nil
	}

	current := s.Candles[s.Len()-1].Volume
	if current > avg*vp.Multiplier {
		return True, nil
	}
	return False, nil
}

func evalVolumeDeclining(p Params, s *indicator.Series) (Result, error) {
	cp, ok := p.(CandleCountParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	if s.Len() < cp.Candles+1 {
		return Undefined, nil
	}

	vols := indicator.Tail(s.Volumes(), cp.Candles+1)
	for i := 1; i < len(vols); i++ {
		if vols[i] >= vols[i-1] {
			return False, nil
		}
	}
	return True, nil
}

// Funding conditions pass by default when the asset has no perpetual
// futures market, so spot-only assets are not gated out.
func evalFunding(p Params, s *indicator.Series, below bool) (Result, error) {
	fp, ok := p.(FundingThresholdParams)
	if !ok {
		return Undefined, paramsError(p)
	}

	if s.FundingRate == nil {
		return True, nil
	}
	rate := *s.FundingRate
	if (below && rate < fp.Threshold) || (!below && rate > fp.Threshold) {
		return True, nil
	}
	return False, nil
}

func evalOpenInterest(p Params, s *indicator.Series) (Result, error) {
	if _, ok := p.(CandleCountParams); !ok {
		return Undefined, paramsError(p)
	}

	// Assets without a futures market pass by default, mirroring the
	// funding conditions. When a snapshot exists a rising trend cannot be
	// established from a single point, so the result is Undefined rather
	// than a false positive or negative.
	if s.OpenInterest == nil {
		return True, nil
	}
	return Undefined, nil
}

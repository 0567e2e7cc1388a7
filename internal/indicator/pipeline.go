package indicator

import "math"

// Moving average kinds
const (
	MATypeEMA = "ema"
	MATypeSMA = "sma"
)

// EnsureMA computes a moving average column and returns its name. Calling
// it again for the same period and type is a no-op.
func (s *Series) EnsureMA(period int, maType string) string {
	if maType != MATypeSMA {
		maType = MATypeEMA
	}
	name := maColumn(maType, period)
	if s.HasColumn(name) {
		return name
	}

	closes := s.Closes()
	if maType == MATypeSMA {
		s.setColumn(name, rollingMean(closes, period))
	} else {
		s.setColumn(name, ema(closes, period))
	}
	return name
}

// EnsureMASlope computes the MA's change over lookback rows and returns
// the slope column name
func (s *Series) EnsureMASlope(period int, maType string, lookback int) string {
	if maType != MATypeSMA {
		maType = MATypeEMA
	}
	name := slopeColumn(maType, period)
	if s.HasColumn(name) {
		return name
	}

	ma := s.Column(s.EnsureMA(period, maType))
	s.setColumn(name, diff(ma, lookback))
	return name
}

// EnsureRSI computes the relative strength index using Wilder smoothing
func (s *Series) EnsureRSI(period int) string {
	name := rsiColumn(period)
	if s.HasColumn(name) {
		return name
	}

	closes := s.Closes()
	out := nanSlice(len(closes))
	if len(closes) > period {
		avgGain, avgLoss := 0.0, 0.0
		for i := 1; i <= period; i++ {
			change := closes[i] - closes[i-1]
			if change > 0 {
				avgGain += change
			} else {
				avgLoss -= change
			}
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)
		out[period] = rsiValue(avgGain, avgLoss)

		for i := period + 1; i < len(closes); i++ {
			change := closes[i] - closes[i-1]
			gain, loss := 0.0, 0.0
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
			out[i] = rsiValue(avgGain, avgLoss)
		}
	}

	s.setColumn(name, out)
	return name
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EnsureMACD computes the MACD line, signal line and histogram; returns the
// histogram column name
func (s *Series) EnsureMACD(fast, slow, signal int) string {
	histName := macdColumn(fast, slow, signal, "hist")
	if s.HasColumn(histName) {
		return histName
	}

	closes := s.Closes()
	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	line := make([]float64, len(closes))
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(line, signal)
	hist := make([]float64, len(closes))
	for i := range hist {
		hist[i] = line[i] - signalLine[i]
	}

	s.setColumn(macdColumn(fast, slow, signal, "line"), line)
	s.setColumn(macdColumn(fast, slow, signal, "signal"), signalLine)
	s.setColumn(histName, hist)
	return histName
}

// EnsureBollinger computes Bollinger Bands plus bandwidth and %B; returns
// the bandwidth column name
func (s *Series) EnsureBollinger(period int, stdDev float64) string {
	bwName := bbColumn(period, "bandwidth")
	if s.HasColumn(bbColumn(period, "upper")) {
		return bwName
	}

	closes := s.Closes()
	mid := rollingMean(closes, period)
	std := rollingStd(closes, period)

	n := len(closes)
	upper := nanSlice(n)
	lower := nanSlice(n)
	bandwidth := nanSlice(n)
	pctB := nanSlice(n)

	for i := 0; i < n; i++ {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = mid[i] + stdDev*std[i]
		lower[i] = mid[i] - stdDev*std[i]
		if mid[i] != 0 {
			bandwidth[i] = (upper[i] - lower[i]) / mid[i]
		}
		if width := upper[i] - lower[i]; width != 0 {
			pctB[i] = (closes[i] - lower[i]) / width
		}
	}

	s.setColumn(bbColumn(period, "upper"), upper)
	s.setColumn(bbColumn(period, "mid"), mid)
	s.setColumn(bbColumn(period, "lower"), lower)
	s.setColumn(bwName, bandwidth)
	s.setColumn(bbColumn(period, "pctb"), pctB)
	return bwName
}

// EnsureATR computes the average true range as an EMA of the true range
func (s *Series) EnsureATR(period int) string {
	name := atrColumn(period)
	if s.HasColumn(name) {
		return name
	}

	n := s.Len()
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		c := s.Candles[i]
		tr[i] = c.High - c.Low
		if i > 0 {
			prevClose := s.Candles[i-1].Close
			tr[i] = math.Max(tr[i], math.Max(
				math.Abs(c.High-prevClose),
				math.Abs(c.Low-prevClose),
			))
		}
	}

	s.setColumn(name, ema(tr, period))
	return name
}

// EnsureVolumeSMA computes the rolling mean of volume
func (s *Series) EnsureVolumeSMA(period int) string {
	name := volSMAColumn(period)
	if s.HasColumn(name) {
		return name
	}
	s.setColumn(name, rollingMean(s.Volumes(), period))
	return name
}

// EnrichDefaults computes the default indicator set used by regime
// classification and most strategies
func (s *Series) EnrichDefaults() *Series {
	s.EnsureMA(20, MATypeEMA)
	s.EnsureMA(50, MATypeEMA)
	s.EnsureMA(200, MATypeEMA)
	s.EnsureMA(50, MATypeSMA)
	s.EnsureMA(200, MATypeSMA)
	s.EnsureMASlope(50, MATypeEMA, 5)
	s.EnsureMASlope(200, MATypeEMA, 5)
	s.EnsureRSI(14)
	s.EnsureMACD(12, 26, 9)
	s.EnsureBollinger(20, 2.0)
	s.EnsureATR(14)
	s.EnsureVolumeSMA(20)
	return s
}

// ---- primitive column math ----

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ema computes an exponential moving average with alpha = 2/(period+1),
// seeded with the simple mean of the first full window. Rows before the
// seed window completes are NaN, so a 200-period EMA over 50 bars stays
// undefined instead of reporting a half-baked value. Leading NaN input
// rows (e.g. a MACD line built from NaN-led EMAs) shift the seed window
// forward.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 {
		return out
	}

	first := 0
	for first < len(values) && math.IsNaN(values[first]) {
		first++
	}
	if len(values)-first < period {
		return out
	}

	seed := 0.0
	for i := first; i < first+period; i++ {
		seed += values[i]
	}
	out[first+period-1] = seed / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := first + period; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rollingMean computes a simple moving average; the first period-1 rows
// are NaN
func rollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingStd computes the rolling sample standard deviation; the first
// period-1 rows are NaN
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period-1))
	}
	return out
}

// diff computes values[i] - values[i-lookback]; the first lookback rows
// are NaN
func diff(values []float64, lookback int) []float64 {
	out := nanSlice(len(values))
	for i := lookback; i < len(values); i++ {
		out[i] = values[i] - values[i-lookback]
	}
	return out
}

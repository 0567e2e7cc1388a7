package condition

import (
	"errors"
	"fmt"

	"blueprint-scanner/internal/indicator"
)

// Configuration errors, surfaced per condition at strategy save time
var (
	ErrUnknownType   = errors.New("unknown condition type")
	ErrInvalidParams = errors.New("invalid condition parameters")
)

// Params is the typed configuration of one condition instance. Each
// condition type has its own struct with named, validated fields; raw
// key→value maps from the API are converted exactly once via ParseParams.
type Params interface {
	validate() error
}

// MAParams parameterizes the price-vs-MA conditions
type MAParams struct {
	Period int
	MAType string
}

func (p MAParams) validate() error {
	if p.Period < 1 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidParams)
	}
	if p.MAType != indicator.MATypeEMA && p.MAType != indicator.MATypeSMA {
		return fmt.Errorf("%w: ma_type must be ema or sma", ErrInvalidParams)
	}
	return nil
}

// SlopeParams parameterizes the MA slope conditions
type SlopeParams struct {
	Period   int
	MAType   string
	Lookback int
}

func (p SlopeParams) validate() error {
	if p.Period < 1 || p.Lookback < 1 {
		return fmt.Errorf("%w: period and lookback must be positive", ErrInvalidParams)
	}
	if p.MAType != indicator.MATypeEMA && p.MAType != indicator.MATypeSMA {
		return fmt.Errorf("%w: ma_type must be ema or sma", ErrInvalidParams)
	}
	return nil
}

// CrossoverParams parameterizes EMA crossover conditions
type CrossoverParams struct {
	FastPeriod int
	SlowPeriod int
}

func (p CrossoverParams) validate() error {
	if p.FastPeriod < 1 || p.SlowPeriod < 1 {
		return fmt.Errorf("%w: periods must be positive", ErrInvalidParams)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("%w: fast_period must be below slow_period", ErrInvalidParams)
	}
	return nil
}

// StructureTrendParams parameterizes higher-highs/lower-lows conditions
type StructureTrendParams struct {
	Lookback  int
	MinSwings int
}

func (p StructureTrendParams) validate() error {
	if p.Lookback < 10 {
		return fmt.Errorf("%w: lookback must be at least 10", ErrInvalidParams)
	}
	if p.MinSwings < 2 {
		return fmt.Errorf("%w: min_swings must be at least 2", ErrInvalidParams)
	}
	return nil
}

// BreakParams parameterizes break-of-structure conditions
type BreakParams struct {
	Lookback    int
	SwingWindow int
}

func (p BreakParams) validate() error {
	if p.Lookback < 1 || p.SwingWindow < 1 {
		return fmt.Errorf("%w: lookback and swing_window must be positive", ErrInvalidParams)
	}
	return nil
}

// ProximityParams parameterizes support/resistance proximity conditions
type ProximityParams struct {
	Lookback     int
	ProximityPct float64
	SwingWindow  int
}

func (p ProximityParams) validate() error {
	if p.Lookback < 1 || p.SwingWindow < 1 {
		return fmt.Errorf("%w: lookback and swing_window must be positive", ErrInvalidParams)
	}
	if p.ProximityPct <= 0 {
		return fmt.Errorf("%w: proximity_pct must be positive", ErrInvalidParams)
	}
	return nil
}

// BBSqueezeParams parameterizes the Bollinger squeeze condition
type BBSqueezeParams struct {
	Period    int
	StdDev    float64
	Threshold float64
}

func (p BBSqueezeParams) validate() error {
	if p.Period < 2 {
		return fmt.Errorf("%w: period must be at least 2", ErrInvalidParams)
	}
	if p.StdDev <= 0 || p.Threshold <= 0 {
		return fmt.Errorf("%w: std_dev and threshold must be positive", ErrInvalidParams)
	}
	return nil
}

// ATRCompareParams parameterizes ATR-vs-average conditions
type ATRCompareParams struct {
	ATRPeriod int
	AvgPeriod int
}

func (p ATRCompareParams) validate() error {
	if p.ATRPeriod < 1 || p.AvgPeriod < 1 {
		return fmt.Errorf("%w: periods must be positive", ErrInvalidParams)
	}
	return nil
}

// ContractionParams parameterizes the candle range contraction condition
type ContractionParams struct {
	Lookback  int
	AvgPeriod int
	Ratio     float64
}

func (p ContractionParams) validate() error {
	if p.Lookback < 1 || p.AvgPeriod < 1 {
		return fmt.Errorf("%w: lookback and avg_period must be positive", ErrInvalidParams)
	}
	if p.Ratio <= 0 || p.Ratio >= 1 {
		return fmt.Errorf("%w: ratio must be in (0, 1)", ErrInvalidParams)
	}
	return nil
}

// RSIRangeParams parameterizes the RSI range condition
type RSIRangeParams struct {
	Period int
	MinVal float64
	MaxVal float64
}

func (p RSIRangeParams) validate() error {
	if p.Period < 1 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidParams)
	}
	if p.MinVal > p.MaxVal {
		return fmt.Errorf("%w: min_val must not exceed max_val", ErrInvalidParams)
	}
	return nil
}

// RSIThresholdParams parameterizes oversold/overbought conditions
type RSIThresholdParams struct {
	Period    int
	Threshold float64
}

func (p RSIThresholdParams) validate() error {
	if p.Period < 1 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidParams)
	}
	if p.Threshold < 0 || p.Threshold > 100 {
		return fmt.Errorf("%w: threshold must be within [0, 100]", ErrInvalidParams)
	}
	return nil
}

// MACDParams parameterizes MACD histogram conditions
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

func (p MACDParams) validate() error {
	if p.Fast < 1 || p.Slow < 1 || p.Signal < 1 {
		return fmt.Errorf("%w: periods must be positive", ErrInvalidParams)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("%w: fast must be below slow", ErrInvalidParams)
	}
	return nil
}

// DivergenceParams parameterizes the RSI divergence condition
type DivergenceParams struct {
	Period   int
	Lookback int
}

func (p DivergenceParams) validate() error {
	if p.Period < 1 || p.Lookback < 10 {
		return fmt.Errorf("%w: period must be positive and lookback at least 10", ErrInvalidParams)
	}
	return nil
}

// VolumeSpikeParams parameterizes the volume spike condition
type VolumeSpikeParams struct {
	AvgPeriod  int
	Multiplier float64
}

func (p VolumeSpikeParams) validate() error {
	if p.AvgPeriod < 1 {
		return fmt.Errorf("%w: avg_period must be positive", ErrInvalidParams)
	}
	if p.Multiplier <= 0 {
		return fmt.Errorf("%w: multiplier must be positive", ErrInvalidParams)
	}
	return nil
}

// CandleCountParams parameterizes conditions over the last N candles
type CandleCountParams struct {
	Candles int
}

func (p CandleCountParams) validate() error {
	if p.Candles < 1 {
		return fmt.Errorf("%w: candles must be positive", ErrInvalidParams)
	}
	return nil
}

// FundingThresholdParams parameterizes funding rate threshold conditions
type FundingThresholdParams struct {
	Threshold float64
}

func (p FundingThresholdParams) validate() error {
	return nil
}

// ParseParams converts a raw key→value map into the typed parameter struct
// for a condition type, applying defaults and validating ranges. Called at
// strategy save time so bad configuration fails fast, not mid-scan.
func ParseParams(t Type, raw map[string]any) (Params, error) {
	var p Params

	switch t {
	case PriceAboveMA, PriceBelowMA:
		p = MAParams{
			Period: intParam(raw, "period", 50),
			MAType: strParam(raw, "ma_type", indicator.MATypeEMA),
		}
	case MASlopeRising, MASlopeFalling:
		p = SlopeParams{
			Period:   intParam(raw, "period", 50),
			MAType:   strParam(raw, "ma_type", indicator.MATypeEMA),
			Lookback: intParam(raw, "lookback", 5),
		}
	case EMACrossoverBullish, EMACrossoverBearish:
		p = CrossoverParams{
			FastPeriod: intParam(raw, "fast_period", 20),
			SlowPeriod: intParam(raw, "slow_period", 50),
		}
	case HigherHighsLows, LowerHighsLows:
		p = StructureTrendParams{
			Lookback:  intParam(raw, "lookback", 20),
			MinSwings: intParam(raw, "min_swings", 2),
		}
	case BreakOfStructureBullish, BreakOfStructureBearish:
		p = BreakParams{
			Lookback:    intParam(raw, "lookback", 20),
			SwingWindow: intParam(raw, "swing_window", 5),
		}
	case PriceNearSupport, PriceNearResistance:
		p = ProximityParams{
			Lookback:     intParam(raw, "lookback", 50),
			ProximityPct: floatParam(raw, "proximity_pct", 2.0),
			SwingWindow:  intParam(raw, "swing_window", 5),
		}
	case BBSqueeze:
		p = BBSqueezeParams{
			Period:    intParam(raw, "period", 20),
			StdDev:    floatParam(raw, "std_dev", 2.0),
			Threshold: floatParam(raw, "threshold", 0.05),
		}
	case ATRAboveAverage, ATRBelowAverage:
		p = ATRCompareParams{
			ATRPeriod: intParam(raw, "atr_period", 14),
			AvgPeriod: intParam(raw, "avg_period", 20),
		}
	case CandleRangeContraction:
		p = ContractionParams{
			Lookback:  intParam(raw, "lookback", 5),
			AvgPeriod: intParam(raw, "avg_period", 20),
			Ratio:     floatParam(raw, "ratio", 0.7),
		}
	case RSIInRange:
		p = RSIRangeParams{
			Period: intParam(raw, "period", 14),
			MinVal: floatParam(raw, "min_val", 30),
			MaxVal: floatParam(raw, "max_val", 50),
		}
	case RSIOversold:
		p = RSIThresholdParams{
			Period:    intParam(raw, "period", 14),
			Threshold: floatParam(raw, "threshold", 30),
		}
	case RSIOverbought:
		p = RSIThresholdParams{
			Period:    intParam(raw, "period", 14),
			Threshold: floatParam(raw, "threshold", 70),
		}
	case MACDHistogramPositive, MACDHistogramNegative:
		p = MACDParams{
			Fast:   intParam(raw, "fast", 12),
			Slow:   intParam(raw, "slow", 26),
			Signal: intParam(raw, "signal", 9),
		}
	case RSIBullishDivergence:
		p = DivergenceParams{
			Period:   intParam(raw, "period", 14),
			Lookback: intParam(raw, "lookback", 20),
		}
	case VolumeSpike:
		p = VolumeSpikeParams{
			AvgPeriod:  intParam(raw, "avg_period", 20),
			Multiplier: floatParam(raw, "multiplier", 2.0),
		}
	case VolumeDeclining, OpenInterestRising:
		p = CandleCountParams{
			Candles: intParam(raw, "candles", 3),
		}
	case FundingRateBelow:
		p = FundingThresholdParams{
			Threshold: floatParam(raw, "threshold", 0.01),
		}
	case FundingRateAbove:
		p = FundingThresholdParams{
			Threshold: floatParam(raw, "threshold", -0.01),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("condition %s: %w", t, err)
	}
	return p, nil
}

// JSON numbers arrive as float64; accept both int and float inputs
func intParam(raw map[string]any, key string, fallback int) int {
	if raw == nil {
		return fallback
	}
	switch v := raw[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func floatParam(raw map[string]any, key string, fallback float64) float64 {
	if raw == nil {
		return fallback
	}
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func strParam(raw map[string]any, key, fallback string) string {
	if raw == nil {
		return fallback
	}
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

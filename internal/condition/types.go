package condition

// Type identifies a condition evaluator. The set is closed: Evaluate and
// ParseParams dispatch over every type exhaustively, and adding a type
// without handling it there is a compile-visible gap in the switch.
type Type string

const (
	// Trend
	PriceAboveMA        Type = "price_above_ma"
	PriceBelowMA        Type = "price_below_ma"
	MASlopeRising       Type = "ma_slope_rising"
	MASlopeFalling      Type = "ma_slope_falling"
	EMACrossoverBullish Type = "ema_crossover_bullish"
	EMACrossoverBearish Type = "ema_crossover_bearish"
	HigherHighsLows     Type = "higher_highs_higher_lows"
	LowerHighsLows      Type = "lower_highs_lower_lows"

	// Market structure
	BreakOfStructureBullish Type = "break_of_structure_bullish"
	BreakOfStructureBearish Type = "break_of_structure_bearish"
	PriceNearSupport        Type = "price_near_support"
	PriceNearResistance     Type = "price_near_resistance"

	// Volatility
	BBSqueeze              Type = "bb_squeeze"
	ATRAboveAverage        Type = "atr_above_average"
	ATRBelowAverage        Type = "atr_below_average"
	CandleRangeContraction Type = "candle_range_contraction"

	// Momentum
	RSIInRange            Type = "rsi_in_range"
	RSIOversold           Type = "rsi_oversold"
	RSIOverbought         Type = "rsi_overbought"
	MACDHistogramPositive Type = "macd_histogram_positive"
	MACDHistogramNegative Type = "macd_histogram_negative"
	RSIBullishDivergence  Type = "rsi_bullish_divergence"

	// Volume
	VolumeSpike     Type = "volume_spike"
	VolumeDeclining Type = "volume_declining"

	// Funding / sentiment
	FundingRateBelow   Type = "funding_rate_below"
	FundingRateAbove   Type = "funding_rate_above"
	OpenInterestRising Type = "open_interest_rising"
)

// Category groups condition types for the management UI
type Category string

const (
	CategoryTrend      Category = "trend"
	CategoryStructure  Category = "structure"
	CategoryVolatility Category = "volatility"
	CategoryMomentum   Category = "momentum"
	CategoryVolume     Category = "volume"
	CategoryFunding    Category = "funding"
)

// Meta describes a condition type for the strategy management interface
type Meta struct {
	Type             Type           `json:"type"`
	Category         Category       `json:"category"`
	Description      string         `json:"description"`
	DefaultParams    map[string]any `json:"parameters"`
	DefaultTimeframe string         `json:"default_timeframe"`
}

var metadata = []Meta{
	{PriceAboveMA, CategoryTrend, "Price is above a moving average",
		map[string]any{"period": 50, "ma_type": "ema"}, "1d"},
	{PriceBelowMA, CategoryTrend, "Price is below a moving average",
		map[string]any{"period": 50, "ma_type": "ema"}, "1d"},
	{MASlopeRising, CategoryTrend, "Moving average slope is positive (rising)",
		map[string]any{"period": 50, "ma_type": "ema", "lookback": 5}, "1d"},
	{MASlopeFalling, CategoryTrend, "Moving average slope is negative (falling)",
		map[string]any{"period": 50, "ma_type": "ema", "lookback": 5}, "1d"},
	{EMACrossoverBullish, CategoryTrend, "Fast EMA crossed above slow EMA",
		map[string]any{"fast_period": 20, "slow_period": 50}, "1d"},
	{EMACrossoverBearish, CategoryTrend, "Fast EMA crossed below slow EMA",
		map[string]any{"fast_period": 20, "slow_period": 50}, "1d"},
	{HigherHighsLows, CategoryTrend, "Recent price structure shows higher highs and higher lows (uptrend)",
		map[string]any{"lookback": 20, "min_swings": 2}, "1d"},
	{LowerHighsLows, CategoryTrend, "Recent price structure shows lower highs and lower lows (downtrend)",
		map[string]any{"lookback": 20, "min_swings": 2}, "1d"},
	{BreakOfStructureBullish, CategoryStructure, "Price broke above a recent swing high",
		map[string]any{"lookback": 20, "swing_window": 5}, "4h"},
	{BreakOfStructureBearish, CategoryStructure, "Price broke below a recent swing low",
		map[string]any{"lookback": 20, "swing_window": 5}, "4h"},
	{PriceNearSupport, CategoryStructure, "Price is within X% of a detected support zone",
		map[string]any{"lookback": 50, "proximity_pct": 2.0, "swing_window": 5}, "4h"},
	{PriceNearResistance, CategoryStructure, "Price is within X% of a detected resistance zone",
		map[string]any{"lookback": 50, "proximity_pct": 2.0, "swing_window": 5}, "4h"},
	{BBSqueeze, CategoryVolatility, "Bollinger Band bandwidth is below threshold (squeeze/contraction)",
		map[string]any{"period": 20, "std_dev": 2.0, "threshold": 0.05}, "4h"},
	{ATRAboveAverage, CategoryVolatility, "ATR is above its own moving average (enough volatility)",
		map[string]any{"atr_period": 14, "avg_period": 20}, "4h"},
	{ATRBelowAverage, CategoryVolatility, "ATR is below its own moving average (low volatility)",
		map[string]any{"atr_period": 14, "avg_period": 20}, "4h"},
	{CandleRangeContraction, CategoryVolatility, "Recent candle ranges are smaller than average",
		map[string]any{"lookback": 5, "avg_period": 20, "ratio": 0.7}, "4h"},
	{RSIInRange, CategoryMomentum, "RSI is within a specified range",
		map[string]any{"period": 14, "min_val": 30.0, "max_val": 50.0}, "4h"},
	{RSIOversold, CategoryMomentum, "RSI is below oversold threshold",
		map[string]any{"period": 14, "threshold": 30.0}, "4h"},
	{RSIOverbought, CategoryMomentum, "RSI is above overbought threshold",
		map[string]any{"period": 14, "threshold": 70.0}, "4h"},
	{MACDHistogramPositive, CategoryMomentum, "MACD histogram is positive (bullish momentum)",
		map[string]any{"fast": 12, "slow": 26, "signal": 9}, "4h"},
	{MACDHistogramNegative, CategoryMomentum, "MACD histogram is negative (bearish momentum)",
		map[string]any{"fast": 12, "slow": 26, "signal": 9}, "4h"},
	{RSIBullishDivergence, CategoryMomentum, "Price made a lower low but RSI made a higher low (bullish divergence)",
		map[string]any{"period": 14, "lookback": 20}, "4h"},
	{VolumeSpike, CategoryVolume, "Current volume is X times the average volume",
		map[string]any{"avg_period": 20, "multiplier": 2.0}, "4h"},
	{VolumeDeclining, CategoryVolume, "Volume has been declining over the last N candles",
		map[string]any{"candles": 3}, "4h"},
	{FundingRateBelow, CategoryFunding, "Funding rate is below a threshold (not overcrowded long)",
		map[string]any{"threshold": 0.01}, "1d"},
	{FundingRateAbove, CategoryFunding, "Funding rate is above a threshold (not overcrowded short)",
		map[string]any{"threshold": -0.01}, "1d"},
	{OpenInterestRising, CategoryFunding, "Open interest has been rising over the last N candles",
		map[string]any{"candles": 3}, "1d"},
}

// Metadata returns descriptions of every recognized condition type
func Metadata() []Meta {
	out := make([]Meta, len(metadata))
	copy(out, metadata)
	return out
}

// IsKnown reports whether t is a recognized condition type
func IsKnown(t Type) bool {
	for _, m := range metadata {
		if m.Type == t {
			return true
		}
	}
	return false
}

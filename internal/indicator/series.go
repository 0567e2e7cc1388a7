// Package indicator enriches OHLCV series with technical indicator columns.
// All computations are pure and deterministic; enrichment is idempotent, a
// recognized column is computed once and addressed by a stable name such as
// "ema_50" or "macd_12_26_9_hist". Rows where an indicator's lookback is not
// yet satisfied hold NaN rather than an error.
package indicator

import (
	"fmt"
	"math"

	"blueprint-scanner/internal/market"
)

// Series is an ascending-time OHLCV series plus named indicator columns.
// Not safe for concurrent mutation; the scan engine enriches each series
// in a single worker before evaluating conditions against it.
type Series struct {
	Candles []market.Candle

	// Snapshots attached by the fetch step, consumed by funding conditions
	FundingRate  *float64
	OpenInterest *float64

	columns map[string][]float64
}

// NewSeries wraps candles in an empty series
func NewSeries(candles []market.Candle) *Series {
	return &Series{
		Candles: candles,
		columns: make(map[string][]float64),
	}
}

// Len returns the number of rows
func (s *Series) Len() int {
	return len(s.Candles)
}

// HasColumn reports whether a named column has been computed
func (s *Series) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Column returns a computed column, or nil if absent
func (s *Series) Column(name string) []float64 {
	return s.columns[name]
}

// ColumnNames returns the names of all computed columns
func (s *Series) ColumnNames() []string {
	names := make([]string, 0, len(s.columns))
	for name := range s.columns {
		names = append(names, name)
	}
	return names
}

func (s *Series) setColumn(name string, values []float64) {
	s.columns[name] = values
}

// Last returns the final value of a column; ok is false when the column is
// missing or the value is NaN (insufficient history).
func (s *Series) Last(name string) (float64, bool) {
	return s.At(name, s.Len()-1)
}

// At returns the column value at row i; ok is false for missing columns,
// out-of-range rows and NaN values.
func (s *Series) At(name string, i int) (float64, bool) {
	col, exists := s.columns[name]
	if !exists || i < 0 || i >= len(col) {
		return 0, false
	}
	v := col[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// LastClose returns the most recent close price
func (s *Series) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}

// Closes returns the close prices as a slice
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high prices as a slice
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low prices as a slice
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volumes as a slice
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Volume
	}
	return out
}

// Truncate returns a new series holding the first n candles with no
// computed columns. The backtester uses this to evaluate conditions at a
// historical bar without seeing later data.
func (s *Series) Truncate(n int) *Series {
	if n > len(s.Candles) {
		n = len(s.Candles)
	}
	out := NewSeries(s.Candles[:n])
	out.FundingRate = s.FundingRate
	out.OpenInterest = s.OpenInterest
	return out
}

// Column name builders, shared by the pipeline and the condition evaluator

func maColumn(maType string, period int) string {
	return fmt.Sprintf("%s_%d", maType, period)
}

func slopeColumn(maType string, period int) string {
	return fmt.Sprintf("%s_%d_slope", maType, period)
}

func rsiColumn(period int) string {
	return fmt.Sprintf("rsi_%d", period)
}

func macdColumn(fast, slow, signal int, part string) string {
	return fmt.Sprintf("macd_%d_%d_%d_%s", fast, slow, signal, part)
}

func bbColumn(period int, part string) string {
	return fmt.Sprintf("bb_%d_%s", period, part)
}

func atrColumn(period int) string {
	return fmt.Sprintf("atr_%d", period)
}

func volSMAColumn(period int) string {
	return fmt.Sprintf("vol_sma_%d", period)
}

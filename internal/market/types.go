package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle represents a single OHLCV candlestick
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// Time returns the candle open time as a time.Time
func (c Candle) Time() time.Time {
	return time.Unix(0, c.OpenTime*int64(time.Millisecond)).UTC()
}

// CloseAt returns the candle close time as a time.Time
func (c Candle) CloseAt() time.Time {
	return time.Unix(0, c.CloseTime*int64(time.Millisecond)).UTC()
}

// Ticker holds the last traded price for a symbol
type Ticker struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"last_price"`
	QuoteVolume float64 `json:"quote_volume"`
}

// Supported candle timeframes, smallest first. The order matters: the scan
// engine picks the current price from the smallest available timeframe.
var Timeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// IsValidTimeframe reports whether tf is a supported candle timeframe
func IsValidTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// ExchangeSymbol converts a pair like "BTC/USDT" to the exchange's
// concatenated form "BTCUSDT"
func ExchangeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// SplitSymbol returns the base and quote currency of a pair like "BTC/USDT"
func SplitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}

// FetchError wraps an external data-source failure for one symbol/timeframe.
// The scan engine converts these into per-asset error entries instead of
// letting transport errors propagate into the state machine.
type FetchError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e *FetchError) Error() string {
	if e.Timeframe != "" {
		return fmt.Sprintf("fetch %s (%s): %v", e.Symbol, e.Timeframe, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

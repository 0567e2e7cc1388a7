package scanner

import "time"

// Config holds scan engine configuration
type Config struct {
	WorkerCount     int           `json:"worker_count"`
	CandleLimit     int           `json:"candle_limit"`
	TopAssets       int           `json:"top_assets"`
	QuoteCurrency   string        `json:"quote_currency"`
	ReferenceSymbol string        `json:"reference_symbol"`
	RegimeTimeframe string        `json:"regime_timeframe"`
	SetupTTL        time.Duration `json:"setup_ttl"`
	FetchTimeout    time.Duration `json:"fetch_timeout"`
	ScanTimeout     time.Duration `json:"scan_timeout"`
}

// DefaultConfig returns the standard scan configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount:     4,
		CandleLimit:     300,
		TopAssets:       100,
		QuoteCurrency:   "USDT",
		ReferenceSymbol: "BTC/USDT",
		RegimeTimeframe: "4h",
		SetupTTL:        48 * time.Hour,
		FetchTimeout:    15 * time.Second,
		ScanTimeout:     20 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = d.CandleLimit
	}
	if c.TopAssets <= 0 {
		c.TopAssets = d.TopAssets
	}
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = d.QuoteCurrency
	}
	if c.ReferenceSymbol == "" {
		c.ReferenceSymbol = d.ReferenceSymbol
	}
	if c.RegimeTimeframe == "" {
		c.RegimeTimeframe = d.RegimeTimeframe
	}
	if c.SetupTTL <= 0 {
		c.SetupTTL = d.SetupTTL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = d.ScanTimeout
	}
	return c
}

// Status is a point-in-time view of the engine for external pollers
type Status struct {
	IsRunning bool   `json:"is_running"`
	ScanID    *int64 `json:"scan_id,omitempty"`
}

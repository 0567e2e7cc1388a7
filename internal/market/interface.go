package market

import "context"

// Fetcher defines the market-data operations the scanner and backtester
// consume. Implementations may fail with *FetchError on network or
// rate-limit problems; funding rate and open interest return nil when the
// symbol has no perpetual futures market.
type Fetcher interface {
	GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	GetTicker(ctx context.Context, symbol string) (float64, error)
	GetFundingRate(ctx context.Context, symbol string) (*float64, error)
	GetOpenInterest(ctx context.Context, symbol string) (*float64, error)
	ListTopAssets(ctx context.Context, quote string, n int) ([]string, error)
}

// Ensure implementations satisfy the interface
var _ Fetcher = (*Client)(nil)
var _ Fetcher = (*CachedFetcher)(nil)
var _ Fetcher = (*MockFetcher)(nil)

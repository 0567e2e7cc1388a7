package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// MockFetcher serves deterministic synthetic market data, used when the
// exchange API is unreachable and in tests. Candles for a symbol/timeframe
// are a seeded random walk, so repeated calls return identical series.
type MockFetcher struct {
	TopAssets []string
}

// NewMockFetcher creates a mock fetcher with a default universe
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		TopAssets: []string{
			"BTC/USDT", "ETH/USDT", "SOL/USDT", "XRP/USDT", "DOGE/USDT",
			"ADA/USDT", "AVAX/USDT", "LINK/USDT", "DOT/USDT", "MATIC/USDT",
		},
	}
}

var timeframeMillis = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"15m": 900_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
	"1d":  86_400_000,
}

func (m *MockFetcher) GetOHLCV(_ context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	step, ok := timeframeMillis[timeframe]
	if !ok {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: context.Canceled}
	}

	h := fnv.New64a()
	h.Write([]byte(symbol + ":" + timeframe))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 100.0 * (1 + rng.Float64()*10)
	now := time.Now().UnixMilli()
	start := now - int64(limit)*step

	candles := make([]Candle, 0, limit)
	for i := 0; i < limit; i++ {
		drift := (rng.Float64() - 0.48) * 0.02
		open := price
		close := open * (1 + drift)
		high := math.Max(open, close) * (1 + rng.Float64()*0.01)
		low := math.Min(open, close) * (1 - rng.Float64()*0.01)
		volume := 1000 + rng.Float64()*9000

		openTime := start + int64(i)*step
		candles = append(candles, Candle{
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: openTime + step - 1,
		})
		price = close
	}

	return candles, nil
}

func (m *MockFetcher) GetTicker(ctx context.Context, symbol string) (float64, error) {
	candles, err := m.GetOHLCV(ctx, symbol, "1h", 2)
	if err != nil {
		return 0, err
	}
	return candles[len(candles)-1].Close, nil
}

func (m *MockFetcher) GetFundingRate(_ context.Context, _ string) (*float64, error) {
	rate := 0.0001
	return &rate, nil
}

func (m *MockFetcher) GetOpenInterest(_ context.Context, _ string) (*float64, error) {
	oi := 1_000_000.0
	return &oi, nil
}

func (m *MockFetcher) ListTopAssets(_ context.Context, quote string, n int) ([]string, error) {
	symbols := make([]string, 0, n)
	for _, s := range m.TopAssets {
		if _, q := SplitSymbol(s); q == quote {
			symbols = append(symbols, s)
		}
		if len(symbols) >= n {
			break
		}
	}
	return symbols, nil
}

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Per-timeframe cache TTLs: roughly a quarter of the candle interval, so a
// repeated scan within the same candle reuses cached data.
var candleTTLs = map[string]time.Duration{
	"1m":  15 * time.Second,
	"5m":  1 * time.Minute,
	"15m": 3 * time.Minute,
	"1h":  10 * time.Minute,
	"4h":  30 * time.Minute,
	"1d":  1 * time.Hour,
}

// CandleCache caches OHLCV responses in redis. Degrades gracefully: a
// redis failure is logged and treated as a cache miss, never surfaced to
// the scan.
type CandleCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewCandleCache creates a redis-backed candle cache
func NewCandleCache(addr, password string, db int, logger zerolog.Logger) (*CandleCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &CandleCache{
		client: client,
		logger: logger.With().Str("component", "candle_cache").Logger(),
	}, nil
}

func candleKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, timeframe, limit)
}

// Get returns cached candles, or nil on a miss
func (cc *CandleCache) Get(ctx context.Context, symbol, timeframe string, limit int) []Candle {
	data, err := cc.client.Get(ctx, candleKey(symbol, timeframe, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			cc.logger.Debug().Err(err).Msg("cache read failed")
		}
		return nil
	}

	var candles []Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil
	}
	return candles
}

// Set stores candles with the timeframe's TTL
func (cc *CandleCache) Set(ctx context.Context, symbol, timeframe string, limit int, candles []Candle) {
	ttl, ok := candleTTLs[timeframe]
	if !ok {
		ttl = time.Minute
	}

	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	if err := cc.client.Set(ctx, candleKey(symbol, timeframe, limit), data, ttl).Err(); err != nil {
		cc.logger.Debug().Err(err).Msg("cache write failed")
	}
}

// Close closes the redis connection
func (cc *CandleCache) Close() error {
	return cc.client.Close()
}

// CachedFetcher wraps a Fetcher with the candle cache. Only OHLCV calls
// are cached; tickers, funding and universe listings are always live.
type CachedFetcher struct {
	inner Fetcher
	cache *CandleCache
}

// NewCachedFetcher wraps fetcher with cache
func NewCachedFetcher(inner Fetcher, cache *CandleCache) *CachedFetcher {
	return &CachedFetcher{inner: inner, cache: cache}
}

func (cf *CachedFetcher) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	if cached := cf.cache.Get(ctx, symbol, timeframe, limit); cached != nil {
		return cached, nil
	}

	candles, err := cf.inner.GetOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	cf.cache.Set(ctx, symbol, timeframe, limit, candles)
	return candles, nil
}

func (cf *CachedFetcher) GetTicker(ctx context.Context, symbol string) (float64, error) {
	return cf.inner.GetTicker(ctx, symbol)
}

func (cf *CachedFetcher) GetFundingRate(ctx context.Context, symbol string) (*float64, error) {
	return cf.inner.GetFundingRate(ctx, symbol)
}

func (cf *CachedFetcher) GetOpenInterest(ctx context.Context, symbol string) (*float64, error) {
	return cf.inner.GetOpenInterest(ctx, symbol)
}

func (cf *CachedFetcher) ListTopAssets(ctx context.Context, quote string, n int) ([]string, error) {
	return cf.inner.ListTopAssets(ctx, quote, n)
}

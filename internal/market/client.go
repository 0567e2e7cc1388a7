package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL        = "https://api.binance.com"
	defaultFuturesBaseURL = "https://fapi.binance.com"
	requestTimeout        = 10 * time.Second
)

// Bases excluded from the dynamic universe: stablecoins, wrapped tokens
// and leveraged tokens are not tradable setups.
var excludedBases = map[string]bool{
	"USDC": true, "BUSD": true, "DAI": true, "TUSD": true,
	"USDP": true, "FDUSD": true, "USDD": true,
	"WBTC": true, "WETH": true, "STETH": true,
}

var excludedSuffixes = []string{"UP", "DOWN", "BULL", "BEAR", "3L", "3S", "2L", "2S"}

// Client fetches market data from the exchange REST API
type Client struct {
	baseURL        string
	futuresBaseURL string
	httpClient     *http.Client
	limiter        *RateLimiter
	logger         zerolog.Logger
}

// NewClient creates a new exchange client
func NewClient(baseURL, futuresBaseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if futuresBaseURL == "" {
		futuresBaseURL = defaultFuturesBaseURL
	}
	return &Client{
		baseURL:        baseURL,
		futuresBaseURL: futuresBaseURL,
		httpClient:     &http.Client{Timeout: requestTimeout},
		limiter:        NewRateLimiter(1200, time.Minute),
		logger:         logger.With().Str("component", "market").Logger(),
	}
}

// GetOHLCV fetches up to limit candles for a symbol and timeframe
func (c *Client) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	if !IsValidTimeframe(timeframe) {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe,
			Err: fmt.Errorf("unsupported timeframe %q", timeframe)}
	}

	params := url.Values{}
	params.Set("symbol", ExchangeSymbol(symbol))
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, c.baseURL+"/api/v3/klines?"+params.Encode(), 2)
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe,
			Err: fmt.Errorf("decode klines: %w", err)}
	}

	candles := make([]Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		candle, err := parseCandle(k)
		if err != nil {
			return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetTicker fetches the last traded price for a symbol
func (c *Client) GetTicker(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", ExchangeSymbol(symbol))

	body, err := c.get(ctx, c.baseURL+"/api/v3/ticker/price?"+params.Encode(), 2)
	if err != nil {
		return 0, &FetchError{Symbol: symbol, Err: err}
	}

	var resp struct {
		Price float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &FetchError{Symbol: symbol, Err: fmt.Errorf("decode ticker: %w", err)}
	}
	return resp.Price, nil
}

// GetFundingRate fetches the current funding rate for a perpetual futures
// symbol. Returns nil when the symbol has no futures market.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (*float64, error) {
	params := url.Values{}
	params.Set("symbol", ExchangeSymbol(symbol))

	body, err := c.get(ctx, c.futuresBaseURL+"/fapi/v1/premiumIndex?"+params.Encode(), 1)
	if err != nil {
		// Missing futures market is not an error for the scan
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("no funding rate available")
		return nil, nil
	}

	var resp struct {
		LastFundingRate float64 `json:"lastFundingRate,string"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil
	}
	rate := resp.LastFundingRate
	return &rate, nil
}

// GetOpenInterest fetches open interest for a perpetual futures symbol.
// Returns nil when the symbol has no futures market.
func (c *Client) GetOpenInterest(ctx context.Context, symbol string) (*float64, error) {
	params := url.Values{}
	params.Set("symbol", ExchangeSymbol(symbol))

	body, err := c.get(ctx, c.futuresBaseURL+"/fapi/v1/openInterest?"+params.Encode(), 1)
	if err != nil {
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("no open interest available")
		return nil, nil
	}

	var resp struct {
		OpenInterest float64 `json:"openInterest,string"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil
	}
	oi := resp.OpenInterest
	return &oi, nil
}

// ListTopAssets returns the top n symbols by 24h quote volume for a quote
// currency, as "BASE/QUOTE" pairs. Stablecoins, wrapped tokens and
// leveraged tokens are filtered out.
func (c *Client) ListTopAssets(ctx context.Context, quote string, n int) ([]string, error) {
	body, err := c.get(ctx, c.baseURL+"/api/v3/ticker/24hr", 40)
	if err != nil {
		return nil, &FetchError{Symbol: "universe", Err: err}
	}

	var tickers []struct {
		Symbol      string  `json:"symbol"`
		QuoteVolume float64 `json:"quoteVolume,string"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, &FetchError{Symbol: "universe", Err: fmt.Errorf("decode tickers: %w", err)}
	}

	type pair struct {
		base   string
		volume float64
	}
	pairs := make([]pair, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, quote) || t.QuoteVolume <= 0 {
			continue
		}
		base := strings.TrimSuffix(t.Symbol, quote)
		if base == "" {
			continue
		}
		pairs = append(pairs, pair{base: base, volume: t.QuoteVolume})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].volume > pairs[j].volume })

	symbols := make([]string, 0, n)
	for _, p := range pairs {
		if excludedBases[p.base] || hasExcludedSuffix(p.base) {
			continue
		}
		symbols = append(symbols, p.base+"/"+quote)
		if len(symbols) >= n {
			break
		}
	}

	return symbols, nil
}

func hasExcludedSuffix(base string) bool {
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// get performs a rate-limited GET request and returns the response body
func (c *Client) get(ctx context.Context, endpoint string, weight int) ([]byte, error) {
	if err := c.limiter.Wait(ctx, weight); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Backoff(resp.Header.Get("Retry-After"))
		return nil, fmt.Errorf("rate limited by exchange (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func parseCandle(k []interface{}) (Candle, error) {
	openTime, ok := k[0].(float64)
	if !ok {
		return Candle{}, fmt.Errorf("malformed kline entry")
	}
	closeTime, _ := k[6].(float64)

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := k[i].(string)
		if !ok {
			return Candle{}, fmt.Errorf("malformed kline field %d", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return Candle{
		OpenTime:  int64(openTime),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		CloseTime: int64(closeTime),
	}, nil
}

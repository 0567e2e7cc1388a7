package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/market"
)

// fakeFetcher serves canned candles per symbol, with hooks for blocking
// and observing fetches
type fakeFetcher struct {
	mu      sync.Mutex
	top     []string
	topErr  error
	gate    chan struct{} // When set, ListTopAssets blocks until closed
	candles map[string][]market.Candle
	onFetch func(symbol, timeframe string)
}

func (f *fakeFetcher) GetOHLCV(_ context.Context, symbol, timeframe string, _ int) ([]market.Candle, error) {
	f.mu.Lock()
	candles, ok := f.candles[symbol]
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(symbol, timeframe)
	}
	if !ok {
		return nil, &market.FetchError{Symbol: symbol, Timeframe: timeframe, Err: fmt.Errorf("no data")}
	}
	return candles, nil
}

func (f *fakeFetcher) GetTicker(ctx context.Context, symbol string) (float64, error) {
	candles, err := f.GetOHLCV(ctx, symbol, "ticker", 1)
	if err != nil {
		return 0, err
	}
	return candles[len(candles)-1].Close, nil
}

func (f *fakeFetcher) GetFundingRate(context.Context, string) (*float64, error) {
	rate := 0.0001
	return &rate, nil
}

func (f *fakeFetcher) GetOpenInterest(context.Context, string) (*float64, error) {
	return nil, nil
}

func (f *fakeFetcher) ListTopAssets(context.Context, string, int) ([]string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.top, f.topErr
}

// fakeStore is an in-memory Store
type fakeStore struct {
	mu         sync.Mutex
	nextScanID int64
	scanLogs   map[int64]*database.ScanLog
	assets     map[string]*database.Asset
	strategies []*database.Strategy
	setups     map[uuid.UUID]*database.Setup
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scanLogs: make(map[int64]*database.ScanLog),
		assets:   make(map[string]*database.Asset),
		setups:   make(map[uuid.UUID]*database.Setup),
	}
}

func (s *fakeStore) CreateScanLog(_ context.Context, sl *database.ScanLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScanID++
	sl.ID = s.nextScanID
	cp := *sl
	s.scanLogs[sl.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateScanLog(_ context.Context, sl *database.ScanLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sl
	s.scanLogs[sl.ID] = &cp
	return nil
}

func (s *fakeStore) GetRunningScanLog(context.Context) (*database.ScanLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.scanLogs {
		if sl.Status == database.ScanStatusRunning {
			cp := *sl
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpsertAsset(_ context.Context, a *database.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.assets[a.Symbol]
	if !ok {
		cp := *a
		cp.IsActive = true
		s.assets[a.Symbol] = &cp
		return nil
	}
	existing.IsActive = true
	existing.MarketCapRank = a.MarketCapRank
	// Mirrors the repository upsert: only a watchlist add rewrites source
	if a.Source == database.AssetSourceWatchlist {
		existing.Source = a.Source
	}
	return nil
}

func (s *fakeStore) GetActiveAssets(context.Context) ([]*database.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*database.Asset
	for _, a := range s.assets {
		if a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) DeactivateAssetsNotIn(_ context.Context, symbols []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		keep[sym] = true
	}
	var n int64
	for _, a := range s.assets {
		if a.Source == database.AssetSourceDynamic && a.IsActive && !keep[a.Symbol] {
			a.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) MarkAssetScanned(_ context.Context, symbol string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[symbol]; ok {
		a.LastScannedAt = &at
	}
	return nil
}

func (s *fakeStore) GetActiveStrategies(context.Context) ([]*database.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategies, nil
}

func (s *fakeStore) CreateSetup(_ context.Context, setup *database.Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if setup.ID == uuid.Nil {
		setup.ID = uuid.New()
	}
	cp := *setup
	s.setups[setup.ID] = &cp
	return nil
}

func (s *fakeStore) GetActiveSetup(_ context.Context, symbol, strategyName, direction string) (*database.Setup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.setups {
		if st.Status == database.SetupStatusActive &&
			st.Symbol == symbol && st.StrategyName == strategyName && st.Direction == direction {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetActiveSetups(context.Context) ([]*database.Setup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*database.Setup
	for _, st := range s.setups {
		if st.Status == database.SetupStatusActive {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateSetupTracking(_ context.Context, setup *database.Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *setup
	s.setups[setup.ID] = &cp
	return nil
}

func (s *fakeStore) ExpireSetups(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, st := range s.setups {
		if st.Status == database.SetupStatusActive && now.After(st.ExpiresAt) {
			st.Status = database.SetupStatusExpired
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) scanLog(id int64) *database.ScanLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.scanLogs[id]
	return &cp
}

func (s *fakeStore) asset(symbol string) *database.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.assets[symbol]
	return &cp
}

func (s *fakeStore) setupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.setups)
}

func (s *fakeStore) anySetup() *database.Setup {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.setups {
		cp := *st
		return &cp
	}
	return nil
}

var _ Store = (*fakeStore)(nil)

func uptrendCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	price := 100.0
	for i := range out {
		close := price + 0.5
		out[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			Open:      price,
			High:      close * 1.004,
			Low:       price * 0.996,
			Close:     close,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
		price = close
	}
	return out
}

func downtrendCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	price := 300.0
	for i := range out {
		close := price - 0.5
		out[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			Open:      price,
			High:      price * 1.004,
			Low:       close * 0.996,
			Close:     close,
			Volume:    1000,
			CloseTime: int64(i)*3_600_000 + 3_599_999,
		}
		price = close
	}
	return out
}

func trendStrategy(name string) *database.Strategy {
	return &database.Strategy{
		ID:        1,
		Name:      name,
		Direction: database.DirectionLong,
		IsActive:  true,
		Conditions: []database.StrategyCondition{
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": 20, "ma_type": "ema"}, Required: true},
		},
	}
}

func testConfig() Config {
	return Config{
		WorkerCount:     2,
		CandleLimit:     300,
		TopAssets:       10,
		QuoteCurrency:   "USDT",
		ReferenceSymbol: "BTC/USDT",
		RegimeTimeframe: "4h",
		SetupTTL:        48 * time.Hour,
		FetchTimeout:    2 * time.Second,
		ScanTimeout:     30 * time.Second,
	}
}

func waitForScan(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !e.Status().IsRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scan did not finish in time")
}

func TestTriggerRunsScanToCompletion(t *testing.T) {
	symbols := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	fetcher := &fakeFetcher{top: symbols, candles: map[string][]market.Candle{}}
	for _, sym := range symbols {
		fetcher.candles[sym] = uptrendCandles(300)
	}

	store := newFakeStore()
	store.strategies = []*database.Strategy{trendStrategy("trend-follow")}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	require.NotZero(t, id)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCompleted, sl.Status)
	assert.Equal(t, 3, sl.AssetsTotal)
	assert.Equal(t, 3, sl.AssetsScanned)
	assert.Equal(t, 3, sl.SetupsFound)
	assert.Empty(t, sl.Errors)
	require.NotNil(t, sl.FinishedAt)
	require.NotNil(t, sl.MarketRegime)
	assert.Equal(t, "trending_up", *sl.MarketRegime)

	setups, err := store.GetActiveSetups(context.Background())
	require.NoError(t, err)
	require.Len(t, setups, 3)
	for _, s := range setups {
		assert.Equal(t, "trend-follow", s.StrategyName)
		assert.Equal(t, database.DirectionLong, s.Direction)
		assert.Equal(t, "1h", s.Timeframe)
		assert.Equal(t, "trending_up", s.Regime)
		assert.Less(t, s.StopLoss, s.EntryPrice)
		assert.Greater(t, s.TakeProfit1, s.EntryPrice)
		assert.True(t, s.ExpiresAt.After(s.DetectedAt))
	}
}

func TestTriggerRejectsConcurrentScan(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		top:     []string{"BTC/USDT"},
		gate:    gate,
		candles: map[string][]market.Candle{"BTC/USDT": uptrendCandles(300)},
	}
	store := newFakeStore()

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)

	_, err = e.Trigger(context.Background(), database.ScanTriggerManual)
	assert.ErrorIs(t, err, ErrScanAlreadyRunning)

	store.mu.Lock()
	logCount := len(store.scanLogs)
	store.mu.Unlock()
	assert.Equal(t, 1, logCount, "rejected trigger must not create a scan log")

	close(gate)
	waitForScan(t, e)
	assert.Equal(t, database.ScanStatusCompleted, store.scanLog(id).Status)
}

func TestRequestCancelWithoutRunningScan(t *testing.T) {
	e := NewEngine(&fakeFetcher{}, newFakeStore(), nil, nil, testConfig())
	assert.ErrorIs(t, e.RequestCancel(42), ErrNoRunningScan)
}

func TestUniverseRefreshReconcilesAssets(t *testing.T) {
	store := newFakeStore()
	rank := 8
	store.assets["ADA/USDT"] = &database.Asset{
		Symbol: "ADA/USDT", Source: database.AssetSourceDynamic,
		MarketCapRank: &rank, IsActive: true,
	}
	store.assets["PEPE/USDT"] = &database.Asset{
		Symbol: "PEPE/USDT", Source: database.AssetSourceWatchlist, IsActive: true,
	}

	symbols := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	fetcher := &fakeFetcher{top: symbols, candles: map[string][]market.Candle{
		"PEPE/USDT": uptrendCandles(300),
	}}
	for _, sym := range symbols {
		fetcher.candles[sym] = uptrendCandles(300)
	}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	assert.Equal(t, database.ScanStatusCompleted, store.scanLog(id).Status)
	assert.False(t, store.asset("ADA/USDT").IsActive, "dropped dynamic asset should deactivate")
	assert.True(t, store.asset("PEPE/USDT").IsActive, "watchlist asset must survive the refresh")
	require.NotNil(t, store.asset("BTC/USDT").MarketCapRank)
	assert.Equal(t, 1, *store.asset("BTC/USDT").MarketCapRank)
	assert.NotNil(t, store.asset("PEPE/USDT").LastScannedAt, "watchlist asset should still be scanned")
}

func TestRecoverStaleScanReopensGate(t *testing.T) {
	// A crashed process leaves its scan log in running state; until that
	// row is finalized every Trigger sees a phantom scan in flight
	store := newFakeStore()
	store.nextScanID = 1
	store.scanLogs[1] = &database.ScanLog{
		ID: 1, Status: database.ScanStatusRunning,
		Trigger:   database.ScanTriggerScheduled,
		StartedAt: time.Now().UTC().Add(-time.Hour),
	}

	fetcher := &fakeFetcher{
		top:     []string{"BTC/USDT"},
		candles: map[string][]market.Candle{"BTC/USDT": uptrendCandles(300)},
	}
	e := NewEngine(fetcher, store, nil, nil, testConfig())

	_, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.ErrorIs(t, err, ErrScanAlreadyRunning)

	require.NoError(t, e.RecoverStaleScan(context.Background()))

	stale := store.scanLog(1)
	assert.Equal(t, database.ScanStatusFailed, stale.Status)
	require.NotNil(t, stale.FinishedAt)
	require.Len(t, stale.Errors, 1)
	assert.Contains(t, stale.Errors[0].Message, "restart")

	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)
	assert.Equal(t, database.ScanStatusCompleted, store.scanLog(id).Status)
}

func TestRecoverStaleScanNoopWhenClean(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(&fakeFetcher{}, store, nil, nil, testConfig())
	require.NoError(t, e.RecoverStaleScan(context.Background()))
	require.NoError(t, e.RecoverStaleScan(context.Background()))
}

func TestWatchlistAssetSurvivesRankingRoundTrip(t *testing.T) {
	// A watchlist asset that ranks into the top list must keep its source,
	// so that falling back out of the ranking cannot deactivate it
	store := newFakeStore()
	store.assets["DOGE/USDT"] = &database.Asset{
		Symbol: "DOGE/USDT", BaseAsset: "DOGE", QuoteAsset: "USDT",
		Source: database.AssetSourceWatchlist, IsActive: true,
	}

	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT", "DOGE/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT":  uptrendCandles(300),
			"DOGE/USDT": uptrendCandles(300),
		},
	}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	_, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	assert.Equal(t, database.AssetSourceWatchlist, store.asset("DOGE/USDT").Source,
		"refresh must not claim a watchlist row as dynamic")

	fetcher.top = []string{"BTC/USDT"}
	_, err = e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	assert.True(t, store.asset("DOGE/USDT").IsActive,
		"watchlist asset must stay active after dropping out of the ranking")
	assert.NotNil(t, store.asset("DOGE/USDT").LastScannedAt)
}

func TestUndefinedConditionBlocksSetup(t *testing.T) {
	// 50 bars cannot carry a 200-period MA, so the required condition is
	// undefined and the gate stays closed
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(50),
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{{
		ID: 1, Name: "deep-trend", Direction: database.DirectionLong, IsActive: true,
		Conditions: []database.StrategyCondition{
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": 200, "ma_type": "ema"}, Required: true},
		},
	}}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCompleted, sl.Status)
	assert.Equal(t, 1, sl.AssetsScanned, "undefined conditions must not fail the asset")
	assert.Zero(t, sl.SetupsFound)
	assert.Zero(t, store.setupCount())
}

func TestOptionalConditionNeverGates(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300),
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{{
		ID: 1, Name: "loose-trend", Direction: database.DirectionLong, IsActive: true,
		Conditions: []database.StrategyCondition{
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": 20, "ma_type": "ema"}, Required: true},
			// Fails on an uptrend, but optional conditions only inform
			{ConditionType: "rsi_oversold", Timeframe: "1h",
				Params: map[string]any{"period": 14, "threshold": 30}, Required: false},
		},
	}}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	assert.Equal(t, 1, store.scanLog(id).SetupsFound)

	setup := store.anySetup()
	require.NotNil(t, setup)
	assert.Equal(t, 1, setup.RequiredMet)
	assert.Equal(t, 0, setup.BonusMet, "oversold never fires in a steady uptrend")
	assert.Equal(t, 2, setup.TotalConditions)
}

func TestRequiredConditionFalseBlocksSetup(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": downtrendCandles(300),
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{{
		ID: 1, Name: "strict-trend", Direction: database.DirectionLong, IsActive: true,
		Conditions: []database.StrategyCondition{
			// False on a strict downtrend, and required, so it must gate
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": 20, "ma_type": "ema"}, Required: true},
		},
	}}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCompleted, sl.Status)
	assert.Equal(t, 0, sl.SetupsFound)
	assert.Equal(t, 0, store.setupCount())
}

func TestMisconfiguredConditionSkippedNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300),
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{{
		ID: 1, Name: "broken-cfg", Direction: database.DirectionLong, IsActive: true,
		Conditions: []database.StrategyCondition{
			// Invalid period: excluded from gating, not a scan error
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": -5}, Required: true},
			{ConditionType: "price_above_ma", Timeframe: "1h",
				Params: map[string]any{"period": 20, "ma_type": "ema"}, Required: true},
		},
	}}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCompleted, sl.Status)
	assert.Empty(t, sl.Errors)
	assert.Equal(t, 1, sl.SetupsFound, "remaining valid condition should still gate and pass")
}

func TestBothDirectionResolvesToLong(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300),
		},
	}
	store := newFakeStore()
	strat := trendStrategy("either-way")
	strat.Direction = database.DirectionBoth
	store.strategies = []*database.Strategy{strat}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	_, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	setups, err := store.GetActiveSetups(context.Background())
	require.NoError(t, err)
	require.Len(t, setups, 1)
	assert.Equal(t, database.DirectionLong, setups[0].Direction)
}

func TestRegimeGateFiltersStrategies(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300), // Classifies trending_up
		},
	}
	store := newFakeStore()
	gated := trendStrategy("bear-only")
	gated.ValidRegimes = []string{"trending_down"}
	open := trendStrategy("always-on")
	open.ID = 2
	store.strategies = []*database.Strategy{gated, open}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	assert.Equal(t, 1, store.scanLog(id).SetupsFound, "only the regime-compatible strategy may fire")
}

func TestActiveTripleNotDuplicatedAcrossScans(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT", "ETH/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300),
			"ETH/USDT": uptrendCandles(300),
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{trendStrategy("trend-follow")}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	for i := 0; i < 2; i++ {
		_, err := e.Trigger(context.Background(), database.ScanTriggerManual)
		require.NoError(t, err)
		waitForScan(t, e)
	}

	assert.Equal(t, 2, store.setupCount(), "an active triple must not spawn a duplicate")
}

func TestCancellationStopsScanAndKeepsWork(t *testing.T) {
	symbols := make([]string, 10)
	fetcher := &fakeFetcher{candles: map[string][]market.Candle{}}
	for i := range symbols {
		symbols[i] = fmt.Sprintf("A%d/USDT", i)
		fetcher.candles[symbols[i]] = uptrendCandles(300)
	}
	fetcher.top = symbols
	fetcher.candles["BTC/USDT"] = uptrendCandles(300) // Reference series
	gate := make(chan struct{})
	fetcher.gate = gate // Holds the run until the scan ID is known

	store := newFakeStore()
	store.strategies = []*database.Strategy{trendStrategy("trend-follow")}

	cfg := testConfig()
	cfg.WorkerCount = 1

	e := NewEngine(fetcher, store, nil, nil, cfg)

	var mu sync.Mutex
	var scanID int64
	assetFetches := 0
	fetcher.onFetch = func(symbol, timeframe string) {
		if timeframe != "1h" {
			return
		}
		mu.Lock()
		assetFetches++
		n := assetFetches
		id := scanID
		mu.Unlock()
		if n == 3 {
			_ = e.RequestCancel(id)
		}
	}

	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	mu.Lock()
	scanID = id
	mu.Unlock()
	close(gate)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCancelled, sl.Status)
	assert.Equal(t, 10, sl.AssetsTotal)
	assert.LessOrEqual(t, sl.AssetsScanned, 4, "cancellation should stop near the checkpoint")
	assert.GreaterOrEqual(t, sl.AssetsScanned, 3)
	assert.Equal(t, sl.SetupsFound, store.setupCount(), "setups created before cancellation persist")
	assert.NotNil(t, sl.FinishedAt)
}

func TestUniverseFailureFailsScan(t *testing.T) {
	fetcher := &fakeFetcher{topErr: fmt.Errorf("exchange down")}
	store := newFakeStore()

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err, "trigger succeeds; the failure surfaces in the scan log")
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusFailed, sl.Status)
	require.NotEmpty(t, sl.Errors)
	assert.Contains(t, sl.Errors[0].Message, "universe refresh")

	// The engine is free again after a failed run
	_, err = e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)
}

func TestPerAssetFailureIsCollectedNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		top: []string{"BTC/USDT", "GHOST/USDT"},
		candles: map[string][]market.Candle{
			"BTC/USDT": uptrendCandles(300), // GHOST/USDT has no data
		},
	}
	store := newFakeStore()
	store.strategies = []*database.Strategy{trendStrategy("trend-follow")}

	e := NewEngine(fetcher, store, nil, nil, testConfig())
	id, err := e.Trigger(context.Background(), database.ScanTriggerManual)
	require.NoError(t, err)
	waitForScan(t, e)

	sl := store.scanLog(id)
	assert.Equal(t, database.ScanStatusCompleted, sl.Status)
	assert.Equal(t, 1, sl.AssetsScanned)
	require.Len(t, sl.Errors, 1)
	assert.Equal(t, "GHOST/USDT", sl.Errors[0].Symbol)
}

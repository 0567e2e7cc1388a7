// Package scanner orchestrates scan runs: universe refresh, regime
// classification, per-asset strategy evaluation and setup lifecycle.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/notification"
)

// Engine runs scans. At most one scan is in flight at a time, gated both
// by an in-process flag and by the running scan log row so a crashed
// process cannot leave a phantom lock past a restart inspection.
type Engine struct {
	fetcher  market.Fetcher
	store    Store
	bus      *events.EventBus
	notifier *notification.Manager
	cfg      Config
	logger   zerolog.Logger

	running         atomic.Bool
	cancelRequested atomic.Bool
	currentScanID   atomic.Int64

	triples keyedMutex
}

// NewEngine creates a scan engine. bus and notifier may be nil.
func NewEngine(fetcher market.Fetcher, store Store, bus *events.EventBus, notifier *notification.Manager, cfg Config) *Engine {
	return &Engine{
		fetcher:  fetcher,
		store:    store,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   log.With().Str("component", "scanner").Logger(),
	}
}

// Trigger starts a scan in the background and returns its scan log ID.
// The scan log row exists before this returns, so pollers see the run
// immediately. Fails with ErrScanAlreadyRunning if a scan is in flight.
func (e *Engine) Trigger(ctx context.Context, trigger string) (int64, error) {
	if !e.running.CompareAndSwap(false, true) {
		return 0, ErrScanAlreadyRunning
	}

	if existing, err := e.store.GetRunningScanLog(ctx); err != nil {
		e.running.Store(false)
		return 0, fmt.Errorf("check running scan: %w", err)
	} else if existing != nil {
		e.running.Store(false)
		return 0, ErrScanAlreadyRunning
	}

	sl := &database.ScanLog{
		Status:    database.ScanStatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.CreateScanLog(ctx, sl); err != nil {
		e.running.Store(false)
		return 0, fmt.Errorf("create scan log: %w", err)
	}

	e.cancelRequested.Store(false)
	e.currentScanID.Store(sl.ID)

	go e.run(sl)

	return sl.ID, nil
}

// Status reports whether a scan is running and which one
func (e *Engine) Status() Status {
	if !e.running.Load() {
		return Status{}
	}
	id := e.currentScanID.Load()
	return Status{IsRunning: true, ScanID: &id}
}

// RequestCancel asks the running scan to stop at its next per-asset
// checkpoint. Setups already created stay.
func (e *Engine) RequestCancel(scanID int64) error {
	if !e.running.Load() || e.currentScanID.Load() != scanID {
		return ErrNoRunningScan
	}
	e.cancelRequested.Store(true)
	e.logger.Info().Int64("scan_id", scanID).Msg("Scan cancellation requested")
	return nil
}

// RecoverStaleScan finalizes a scan log left in running state by a crashed
// process, so the mutual-exclusion gate reopens. Call once at startup,
// before the scheduler or API can trigger scans.
func (e *Engine) RecoverStaleScan(ctx context.Context) error {
	sl, err := e.store.GetRunningScanLog(ctx)
	if err != nil {
		return fmt.Errorf("check running scan: %w", err)
	}
	if sl == nil {
		return nil
	}
	now := time.Now().UTC()
	sl.Status = database.ScanStatusFailed
	sl.FinishedAt = &now
	sl.Errors = append(sl.Errors, database.ScanError{Message: "scan interrupted by process restart"})
	if err := e.store.UpdateScanLog(ctx, sl); err != nil {
		return fmt.Errorf("finalize stale scan %d: %w", sl.ID, err)
	}
	e.logger.Warn().Int64("scan_id", sl.ID).Msg("Stale running scan marked failed")
	return nil
}

func (e *Engine) run(sl *database.ScanLog) {
	defer e.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ScanTimeout)
	defer cancel()

	e.logger.Info().Int64("scan_id", sl.ID).Str("trigger", sl.Trigger).Msg("Scan started")
	e.publish(events.EventScanStarted, map[string]interface{}{"scan_id": sl.ID})

	if err := e.refreshUniverse(ctx); err != nil {
		e.fail(ctx, sl, fatal("universe refresh", err))
		return
	}

	classification, err := e.classifyRegime(ctx)
	if err != nil {
		e.fail(ctx, sl, fatal("regime classification", err))
		return
	}
	regimeLabel := string(classification.Regime)
	sl.MarketRegime = &regimeLabel
	e.publish(events.EventRegimeClassified, map[string]interface{}{
		"regime":     regimeLabel,
		"confidence": classification.Confidence,
	})

	strategies, err := e.store.GetActiveStrategies(ctx)
	if err != nil {
		e.fail(ctx, sl, fatal("strategy load", err))
		return
	}
	strategies = withConditions(strategies)
	timeframes := requiredTimeframes(strategies)

	if expired, err := e.store.ExpireSetups(ctx, time.Now().UTC()); err != nil {
		e.logger.Error().Err(err).Msg("Failed to expire setups")
	} else if expired > 0 {
		e.logger.Info().Int64("count", expired).Msg("Expired stale setups")
	}

	assets, err := e.store.GetActiveAssets(ctx)
	if err != nil {
		e.fail(ctx, sl, fatal("asset load", err))
		return
	}
	sl.AssetsTotal = len(assets)

	var (
		mu            sync.Mutex
		assetsScanned int
		setupsFound   int
		scanErrors    []database.ScanError
	)

	assetChan := make(chan *database.Asset)
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range assetChan {
				if e.cancelled(ctx) {
					continue // Drain the channel without doing work
				}
				created, err := e.scanAsset(ctx, asset, strategies, timeframes, classification)
				mu.Lock()
				if err != nil {
					scanErrors = append(scanErrors, database.ScanError{
						Symbol:  asset.Symbol,
						Message: err.Error(),
					})
					e.logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Asset scan failed")
				} else {
					assetsScanned++
					setupsFound += created
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, asset := range assets {
		if e.cancelled(ctx) {
			break feed
		}
		select {
		case assetChan <- asset:
		case <-ctx.Done():
			break feed
		}
	}
	close(assetChan)
	wg.Wait()

	lifecycleErrors := e.checkActiveSetups(ctx)

	mu.Lock()
	sl.AssetsScanned = assetsScanned
	sl.SetupsFound = setupsFound
	sl.Errors = append(scanErrors, lifecycleErrors...)
	mu.Unlock()

	status := database.ScanStatusCompleted
	eventType := events.EventScanCompleted
	if e.cancelled(ctx) {
		status = database.ScanStatusCancelled
		eventType = events.EventScanCancelled
	}
	e.finalize(ctx, sl, status)

	e.publish(eventType, map[string]interface{}{
		"scan_id":        sl.ID,
		"assets_scanned": sl.AssetsScanned,
		"setups_found":   sl.SetupsFound,
		"errors":         len(sl.Errors),
	})
	if e.notifier != nil {
		if err := e.notifier.SendScanSummary(status, sl.AssetsScanned, sl.SetupsFound, len(sl.Errors)); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send scan summary")
		}
	}

	e.logger.Info().
		Int64("scan_id", sl.ID).
		Str("status", status).
		Int("assets_scanned", sl.AssetsScanned).
		Int("setups_found", sl.SetupsFound).
		Int("errors", len(sl.Errors)).
		Msg("Scan finished")
}

// cancelled reports whether the run should stop at this checkpoint
func (e *Engine) cancelled(ctx context.Context) bool {
	return e.cancelRequested.Load() || ctx.Err() != nil
}

func (e *Engine) fail(ctx context.Context, sl *database.ScanLog, ferr *FatalScanError) {
	e.logger.Error().Err(ferr).Int64("scan_id", sl.ID).Msg("Scan failed")
	sl.Errors = append(sl.Errors, database.ScanError{Symbol: "", Message: ferr.Error()})
	e.finalize(ctx, sl, database.ScanStatusFailed)
	e.publish(events.EventScanFailed, map[string]interface{}{
		"scan_id": sl.ID,
		"error":   ferr.Error(),
	})
	if e.notifier != nil {
		if err := e.notifier.SendError("Scan failed", ferr.Error()); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send failure notification")
		}
	}
}

func (e *Engine) finalize(ctx context.Context, sl *database.ScanLog, status string) {
	now := time.Now().UTC()
	sl.Status = status
	sl.FinishedAt = &now
	// The run context may already be cancelled or expired; finalization
	// must still be persisted
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.store.UpdateScanLog(writeCtx, sl); err != nil {
		e.logger.Error().Err(err).Int64("scan_id", sl.ID).Msg("Failed to finalize scan log")
	}
}

func (e *Engine) publish(eventType events.EventType, data map[string]interface{}) {
	if e.bus != nil {
		e.bus.PublishData(eventType, data)
	}
}

// withConditions drops strategies that can never produce a setup
func withConditions(strategies []*database.Strategy) []*database.Strategy {
	out := strategies[:0]
	for _, s := range strategies {
		if len(s.Conditions) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// requiredTimeframes collects the distinct timeframes any strategy
// condition references, in canonical order
func requiredTimeframes(strategies []*database.Strategy) []string {
	seen := make(map[string]bool)
	for _, s := range strategies {
		for _, c := range s.Conditions {
			seen[c.Timeframe] = true
		}
	}
	var out []string
	for tf := range seen {
		out = append(out, tf)
	}
	sort.Slice(out, func(i, j int) bool {
		return timeframeRank(out[i]) < timeframeRank(out[j])
	})
	return out
}

func timeframeRank(tf string) int {
	for i, known := range market.Timeframes {
		if known == tf {
			return i
		}
	}
	return len(market.Timeframes)
}

// keyedMutex serializes work per string key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (km *keyedMutex) lock(key string) *sync.Mutex {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}
	l, ok := km.locks[key]
	if !ok {
		l = &sync.Mutex{}
		km.locks[key] = l
	}
	km.mu.Unlock()
	l.Lock()
	return l
}

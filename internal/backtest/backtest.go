// Package backtest replays strategy evaluation over historical candles
// and simulates forward price action to grade each candidate setup.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/market"
)

// Cost assumptions per side, in basis points of the entry price
const (
	DefaultFeeBps      = 6.0
	DefaultSlippageBps = 4.0
)

const (
	defaultHorizon     = 10
	defaultCandleLimit = 500
	defaultWorkers     = 4
	minHistoryBars     = 100
	maxDetailTrades    = 200
)

// Outcome labels for simulated trades
const (
	OutcomeTP1     = "tp1"
	OutcomeTP2     = "tp2"
	OutcomeTP3     = "tp3"
	OutcomeStopped = "stopped"
	OutcomeTimeout = "timeout"
)

// Request describes one backtest run
type Request struct {
	StrategyID  int64    `json:"strategy_id"`
	Timeframe   string   `json:"timeframe"`
	Symbols     []string `json:"symbols,omitempty"` // Empty = whole active universe
	Horizon     int      `json:"horizon,omitempty"` // Max holding period in bars
	CandleLimit int      `json:"candle_limit,omitempty"`
	FeeBps      float64  `json:"fee_bps,omitempty"`
	SlippageBps float64  `json:"slippage_bps,omitempty"`
}

// Trade is one simulated setup and its outcome
type Trade struct {
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit_1"`
	Outcome    string    `json:"outcome"`
	RMultiple  float64   `json:"r_multiple"`
	BarsHeld   int       `json:"bars_held"`
}

// Result aggregates a whole run
type Result struct {
	StrategyID     int64     `json:"strategy_id"`
	StrategyName   string    `json:"strategy_name"`
	Timeframe      string    `json:"timeframe"`
	TotalSetups    int       `json:"total_setups"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	WinRate        float64   `json:"win_rate"`
	AvgR           float64   `json:"avg_rr"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	SetupsPerMonth float64   `json:"setups_per_month"`
	SymbolsTested  int       `json:"symbols_tested"`
	EquityCurve    []float64 `json:"equity_curve"`
	Trades         []Trade   `json:"setup_details"`
}

// Store is the persistence surface the backtester needs
type Store interface {
	GetStrategyByID(ctx context.Context, id int64) (*database.Strategy, error)
	GetActiveAssets(ctx context.Context) ([]*database.Asset, error)
}

// Defaults supplies fallback values for request fields left unset.
// Zero fields fall back to the package constants.
type Defaults struct {
	Horizon     int
	CandleLimit int
	FeeBps      float64
	SlippageBps float64
}

func (d Defaults) normalized() Defaults {
	if d.Horizon <= 0 {
		d.Horizon = defaultHorizon
	}
	if d.CandleLimit <= 0 {
		d.CandleLimit = defaultCandleLimit
	}
	if d.FeeBps <= 0 {
		d.FeeBps = DefaultFeeBps
	}
	if d.SlippageBps <= 0 {
		d.SlippageBps = DefaultSlippageBps
	}
	return d
}

// Runner executes backtests
type Runner struct {
	fetcher  market.Fetcher
	store    Store
	workers  int
	defaults Defaults
	logger   zerolog.Logger
}

// NewRunner creates a backtest runner
func NewRunner(fetcher market.Fetcher, store Store, defaults Defaults) *Runner {
	return &Runner{
		fetcher:  fetcher,
		store:    store,
		workers:  defaultWorkers,
		defaults: defaults.normalized(),
		logger:   log.With().Str("component", "backtest").Logger(),
	}
}

// Run replays the strategy over each symbol's history. Symbols are
// independent and processed in parallel; only the result accumulator is
// shared, behind a mutex.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if !market.IsValidTimeframe(req.Timeframe) {
		return nil, fmt.Errorf("invalid timeframe %q", req.Timeframe)
	}
	req = req.withDefaults(r.defaults)

	strat, err := r.store.GetStrategyByID(ctx, req.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}
	if len(strat.Conditions) == 0 {
		return nil, fmt.Errorf("strategy %q has no conditions", strat.Name)
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		assets, err := r.store.GetActiveAssets(ctx)
		if err != nil {
			return nil, fmt.Errorf("load universe: %w", err)
		}
		for _, a := range assets {
			symbols = append(symbols, a.Symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to backtest")
	}

	var (
		mu        sync.Mutex
		allTrades []Trade
		tested    int
		spanStart time.Time
		spanEnd   time.Time
	)

	symbolChan := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				trades, span, err := r.runSymbol(ctx, symbol, strat, req)
				if err != nil {
					r.logger.Warn().Err(err).Str("symbol", symbol).Msg("Symbol backtest skipped")
					continue
				}
				mu.Lock()
				tested++
				allTrades = append(allTrades, trades...)
				if spanStart.IsZero() || span.start.Before(spanStart) {
					spanStart = span.start
				}
				if span.end.After(spanEnd) {
					spanEnd = span.end
				}
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range symbols {
		select {
		case symbolChan <- symbol:
		case <-ctx.Done():
			close(symbolChan)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(symbolChan)
	wg.Wait()

	result := aggregate(allTrades, spanStart, spanEnd)
	result.StrategyID = strat.ID
	result.StrategyName = strat.Name
	result.Timeframe = req.Timeframe
	result.SymbolsTested = tested

	r.logger.Info().
		Str("strategy", strat.Name).
		Str("timeframe", req.Timeframe).
		Int("symbols", tested).
		Int("setups", result.TotalSetups).
		Float64("win_rate", result.WinRate).
		Msg("Backtest finished")
	return result, nil
}

func (req Request) withDefaults(d Defaults) Request {
	if req.Horizon <= 0 {
		req.Horizon = d.Horizon
	}
	if req.CandleLimit <= 0 {
		req.CandleLimit = d.CandleLimit
	}
	if req.FeeBps <= 0 {
		req.FeeBps = d.FeeBps
	}
	if req.SlippageBps <= 0 {
		req.SlippageBps = d.SlippageBps
	}
	return req
}

// aggregate folds simulated trades into run statistics. Drawdown is the
// deepest fall from a running peak on the chronological cumulative-R
// equity curve.
func aggregate(trades []Trade, spanStart, spanEnd time.Time) *Result {
	result := &Result{Trades: trades}
	if len(trades) == 0 {
		return result
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].EntryTime.Before(trades[j].EntryTime)
	})

	var (
		sumR     float64
		cum      float64
		peak     float64
		drawdown float64
	)
	curve := make([]float64, 0, len(trades))
	for _, t := range trades {
		sumR += t.RMultiple
		if t.RMultiple > 0 {
			result.Wins++
		} else {
			result.Losses++
		}
		cum += t.RMultiple
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > drawdown {
			drawdown = dd
		}
		curve = append(curve, round2(cum))
	}

	result.TotalSetups = len(trades)
	result.WinRate = round2(float64(result.Wins) / float64(len(trades)) * 100)
	result.AvgR = round2(sumR / float64(len(trades)))
	result.MaxDrawdown = round2(drawdown)
	result.EquityCurve = curve

	if !spanStart.IsZero() && spanEnd.After(spanStart) {
		days := spanEnd.Sub(spanStart).Hours() / 24
		months := math.Max(1, days/30)
		result.SetupsPerMonth = round2(float64(len(trades)) / months)
	} else {
		result.SetupsPerMonth = float64(len(trades))
	}

	if len(result.Trades) > maxDetailTrades {
		result.Trades = result.Trades[:maxDetailTrades]
	}
	return result
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

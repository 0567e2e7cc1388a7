package backtest

import (
	"context"
	"fmt"
	"time"

	"blueprint-scanner/internal/condition"
	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/indicator"
	"blueprint-scanner/internal/levels"
	"blueprint-scanner/internal/market"
)

type timespan struct {
	start time.Time
	end   time.Time
}

// runSymbol walks the symbol's history bar by bar. At each bar only the
// candles up to and including that bar are visible to the evaluator, so
// no signal can be informed by the future it is graded against.
func (r *Runner) runSymbol(ctx context.Context, symbol string, strat *database.Strategy, req Request) ([]Trade, timespan, error) {
	candles, err := r.fetcher.GetOHLCV(ctx, symbol, req.Timeframe, req.CandleLimit)
	if err != nil {
		return nil, timespan{}, err
	}
	if len(candles) < minHistoryBars+req.Horizon {
		return nil, timespan{}, fmt.Errorf("insufficient history for %s: %d bars", symbol, len(candles))
	}

	full := indicator.NewSeries(candles)
	direction := strat.Direction
	if direction == database.DirectionBoth {
		direction = database.DirectionLong
	}
	costRate := 2 * (req.FeeBps + req.SlippageBps) / 10000

	var trades []Trade
	for t := minHistoryBars; t < len(candles)-1; t++ {
		window := full.Truncate(t + 1).EnrichDefaults()

		if !r.strategyMatches(strat, window) {
			continue
		}

		price := window.LastClose()
		lv, err := levels.Calculate(window, direction, price)
		if err != nil {
			continue
		}

		trade, exitIdx := simulateForward(candles, t, direction, lv, req.Horizon, costRate)
		trade.Symbol = symbol
		trades = append(trades, trade)

		// No overlapping trades per symbol: resume after the exit bar
		t = exitIdx
	}

	span := timespan{
		start: candles[0].Time(),
		end:   candles[len(candles)-1].CloseAt(),
	}
	return trades, span, nil
}

// strategyMatches requires every required condition to evaluate true on
// the visible window. Misconfigured conditions are skipped, matching the
// live engine's gating.
func (r *Runner) strategyMatches(strat *database.Strategy, window *indicator.Series) bool {
	for _, cond := range strat.Conditions {
		params, err := condition.ParseParams(condition.Type(cond.ConditionType), cond.Params)
		if err != nil {
			continue
		}
		result, err := condition.Evaluate(condition.Type(cond.ConditionType), params, window)
		if err != nil {
			continue
		}
		if cond.Required && result != condition.True {
			return false
		}
	}
	return true
}

// simulateForward grades a candidate opened at bar t by walking bars
// after t. A stop touch before any target loses 1R. Once a target is
// reached the trade banks that target's R even if the stop is touched
// later. The third target or the holding horizon ends the walk; a
// horizon exit with no target is marked to the final close. Round-trip
// fees and slippage are charged against the R-multiple.
func simulateForward(candles []market.Candle, t int, direction string, lv *levels.Levels, horizon int, costRate float64) (Trade, int) {
	long := direction == levels.DirectionLong
	entry := lv.Entry
	risk := entry - lv.StopLoss
	if !long {
		risk = lv.StopLoss - entry
	}
	costR := costRate * entry / risk

	trade := Trade{
		Direction:  direction,
		EntryTime:  candles[t].CloseAt(),
		EntryPrice: entry,
		StopLoss:   lv.StopLoss,
		TakeProfit: lv.TakeProfit1,
	}

	end := t + horizon
	if end > len(candles)-1 {
		end = len(candles) - 1
	}

	reached := 0 // Highest target index reached so far
	targetR := func(n int) float64 {
		var tp float64
		switch n {
		case 1:
			tp = lv.TakeProfit1
		case 2:
			tp = lv.TakeProfit2
		default:
			tp = lv.TakeProfit3
		}
		if long {
			return (tp - entry) / risk
		}
		return (entry - tp) / risk
	}
	outcomes := []string{OutcomeTP1, OutcomeTP2, OutcomeTP3}

	for i := t + 1; i <= end; i++ {
		bar := candles[i]

		stopTouched := (long && bar.Low <= lv.StopLoss) || (!long && bar.High >= lv.StopLoss)
		if stopTouched && reached == 0 {
			trade.Outcome = OutcomeStopped
			trade.RMultiple = -1 - costR
			trade.BarsHeld = i - t
			return trade, i
		}
		if stopTouched {
			// Banked at the best target seen before the reversal
			trade.Outcome = outcomes[reached-1]
			trade.RMultiple = targetR(reached) - costR
			trade.BarsHeld = i - t
			return trade, i
		}

		for n := reached + 1; n <= 3; n++ {
			var tp float64
			switch n {
			case 1:
				tp = lv.TakeProfit1
			case 2:
				tp = lv.TakeProfit2
			default:
				tp = lv.TakeProfit3
			}
			hit := (long && bar.High >= tp) || (!long && bar.Low <= tp)
			if !hit {
				break
			}
			reached = n
		}
		if reached == 3 {
			trade.Outcome = OutcomeTP3
			trade.RMultiple = targetR(3) - costR
			trade.BarsHeld = i - t
			return trade, i
		}
	}

	trade.BarsHeld = end - t
	if reached > 0 {
		trade.Outcome = outcomes[reached-1]
		trade.RMultiple = targetR(reached) - costR
		return trade, end
	}

	finalClose := candles[end].Close
	trade.Outcome = OutcomeTimeout
	if long {
		trade.RMultiple = (finalClose-entry)/risk - costR
	} else {
		trade.RMultiple = (entry-finalClose)/risk - costR
	}
	return trade, end
}

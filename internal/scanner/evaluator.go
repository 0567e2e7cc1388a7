package scanner

import (
	"context"
	"fmt"
	"time"

	"blueprint-scanner/internal/condition"
	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
	"blueprint-scanner/internal/indicator"
	"blueprint-scanner/internal/levels"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/regime"
)

// scanAsset fetches every needed timeframe for one asset, evaluates all
// strategies against it and creates setups for full matches. Returns how
// many setups were created. Any fetch failure skips the whole asset.
func (e *Engine) scanAsset(
	ctx context.Context,
	asset *database.Asset,
	strategies []*database.Strategy,
	timeframes []string,
	classification regime.Classification,
) (int, error) {
	series := make(map[string]*indicator.Series, len(timeframes))
	for _, tf := range timeframes {
		s, err := e.fetchSeries(ctx, asset.Symbol, tf)
		if err != nil {
			return 0, err
		}
		series[tf] = s
	}

	// Funding and open interest are best effort: a nil value degrades
	// the conditions that need them, it does not skip the asset
	fundingRate, err := e.fetcher.GetFundingRate(ctx, asset.Symbol)
	if err != nil {
		e.logger.Debug().Err(err).Str("symbol", asset.Symbol).Msg("Funding rate unavailable")
	}
	openInterest, err := e.fetcher.GetOpenInterest(ctx, asset.Symbol)
	if err != nil {
		e.logger.Debug().Err(err).Str("symbol", asset.Symbol).Msg("Open interest unavailable")
	}
	for _, s := range series {
		s.FundingRate = fundingRate
		s.OpenInterest = openInterest
	}

	price, err := e.fetcher.GetTicker(ctx, asset.Symbol)
	if err != nil || price <= 0 {
		// Fall back to the last close of the smallest fetched timeframe
		if len(timeframes) > 0 {
			price = series[timeframes[0]].LastClose()
		}
		if price <= 0 {
			return 0, &market.FetchError{Symbol: asset.Symbol, Err: fmt.Errorf("no usable price")}
		}
	}

	created := 0
	for _, strat := range strategies {
		ok, err := e.evaluateStrategy(ctx, asset, strat, series, price, fundingRate, classification)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("symbol", asset.Symbol).
				Str("strategy", strat.Name).
				Msg("Strategy evaluation failed")
			continue
		}
		if ok {
			created++
		}
	}

	if err := e.store.MarkAssetScanned(ctx, asset.Symbol, time.Now().UTC()); err != nil {
		e.logger.Debug().Err(err).Str("symbol", asset.Symbol).Msg("Failed to stamp scan time")
	}
	return created, nil
}

func (e *Engine) fetchSeries(ctx context.Context, symbol, timeframe string) (*indicator.Series, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	candles, err := e.fetcher.GetOHLCV(fetchCtx, symbol, timeframe, e.cfg.CandleLimit)
	if err != nil {
		return nil, err
	}
	return indicator.NewSeries(candles).EnrichDefaults(), nil
}

// evaluateStrategy gates one strategy against one asset and creates a
// setup when every required condition holds. Undefined results block the
// gate like an explicit false but are logged apart, since they mean "not
// enough data" rather than "market says no".
func (e *Engine) evaluateStrategy(
	ctx context.Context,
	asset *database.Asset,
	strat *database.Strategy,
	series map[string]*indicator.Series,
	price float64,
	fundingRate *float64,
	classification regime.Classification,
) (bool, error) {
	direction := strat.Direction
	if direction == database.DirectionBoth {
		direction = database.DirectionLong
	}

	if len(strat.ValidRegimes) > 0 && !containsString(strat.ValidRegimes, string(classification.Regime)) {
		return false, nil
	}

	var requiredMet, bonusMet int
	for _, cond := range strat.Conditions {
		s, ok := series[cond.Timeframe]
		if !ok {
			return false, fmt.Errorf("no series for timeframe %s", cond.Timeframe)
		}

		params, err := condition.ParseParams(condition.Type(cond.ConditionType), cond.Params)
		if err != nil {
			// Bad configuration excludes this condition from gating
			// but never aborts the scan
			e.logger.Warn().Err(err).
				Str("symbol", asset.Symbol).
				Str("strategy", strat.Name).
				Str("condition", cond.ConditionType).
				Msg("Condition misconfigured, skipped")
			continue
		}

		result, err := condition.Evaluate(condition.Type(cond.ConditionType), params, s)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("symbol", asset.Symbol).
				Str("strategy", strat.Name).
				Str("condition", cond.ConditionType).
				Msg("Condition evaluation error, skipped")
			continue
		}

		if !cond.Required {
			if result == condition.True {
				bonusMet++
			}
			continue
		}
		switch result {
		case condition.True:
			requiredMet++
		case condition.Undefined:
			e.logger.Debug().
				Str("symbol", asset.Symbol).
				Str("strategy", strat.Name).
				Str("condition", cond.ConditionType).
				Str("timeframe", cond.Timeframe).
				Msg("Condition undefined: insufficient data")
			return false, nil
		default:
			return false, nil
		}
	}

	// The unique-active-triple invariant needs check-then-create to be
	// atomic across workers
	key := asset.Symbol + "|" + strat.Name + "|" + direction
	l := e.triples.lock(key)
	defer l.Unlock()

	existing, err := e.store.GetActiveSetup(ctx, asset.Symbol, strat.Name, direction)
	if err != nil {
		return false, fmt.Errorf("check active setup: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	setupTF := strat.Conditions[0].Timeframe
	lv, err := levels.Calculate(series[setupTF], direction, price)
	if err != nil {
		e.logger.Debug().
			Str("symbol", asset.Symbol).
			Str("strategy", strat.Name).
			Msg("No valid levels, candidate dropped")
		return false, nil
	}

	now := time.Now().UTC()
	setup := &database.Setup{
		Symbol:           asset.Symbol,
		StrategyName:     strat.Name,
		Direction:        direction,
		Timeframe:        setupTF,
		Status:           database.SetupStatusActive,
		Regime:           string(classification.Regime),
		RegimeConfidence: classification.Confidence,
		FundingRate:      fundingRate,
		EntryPrice:       lv.Entry,
		StopLoss:         lv.StopLoss,
		TakeProfit1:      lv.TakeProfit1,
		TakeProfit2:      lv.TakeProfit2,
		TakeProfit3:      lv.TakeProfit3,
		RiskReward:       lv.RiskReward,
		RequiredMet:      requiredMet,
		BonusMet:         bonusMet,
		TotalConditions:  len(strat.Conditions),
		DetectedAt:       now,
		ExpiresAt:        now.Add(e.cfg.SetupTTL),
	}
	if err := e.store.CreateSetup(ctx, setup); err != nil {
		return false, fmt.Errorf("create setup: %w", err)
	}

	e.logger.Info().
		Str("symbol", asset.Symbol).
		Str("strategy", strat.Name).
		Str("direction", direction).
		Float64("entry", lv.Entry).
		Float64("stop", lv.StopLoss).
		Float64("rr", lv.RiskReward).
		Msg("Setup created")
	e.publish(events.EventSetupCreated, map[string]interface{}{
		"setup_id":  setup.ID.String(),
		"symbol":    setup.Symbol,
		"strategy":  setup.StrategyName,
		"direction": setup.Direction,
	})
	if e.notifier != nil {
		if err := e.notifier.SendSetup(setup.Symbol, setup.StrategyName, setup.Direction,
			setup.Timeframe, lv.Entry, lv.StopLoss, lv.TakeProfit1, lv.RiskReward); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send setup notification")
		}
	}
	return true, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package scanner

import (
	"context"
	"fmt"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
	"blueprint-scanner/internal/indicator"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/regime"
)

// refreshUniverse pulls the top-N ranked symbols and reconciles the asset
// table: listed symbols are upserted active with their rank, previously
// dynamic symbols that fell out of the ranking are deactivated. Watchlist
// assets are left alone.
func (e *Engine) refreshUniverse(ctx context.Context) error {
	symbols, err := e.fetcher.ListTopAssets(ctx, e.cfg.QuoteCurrency, e.cfg.TopAssets)
	if err != nil {
		return fmt.Errorf("list top assets: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("empty top asset list for quote %s", e.cfg.QuoteCurrency)
	}

	for i, symbol := range symbols {
		base, quote := market.SplitSymbol(symbol)
		rank := i + 1
		asset := &database.Asset{
			Symbol:        symbol,
			BaseAsset:     base,
			QuoteAsset:    quote,
			Source:        database.AssetSourceDynamic,
			MarketCapRank: &rank,
		}
		if err := e.store.UpsertAsset(ctx, asset); err != nil {
			return fmt.Errorf("upsert asset %s: %w", symbol, err)
		}
	}

	deactivated, err := e.store.DeactivateAssetsNotIn(ctx, symbols)
	if err != nil {
		return fmt.Errorf("deactivate dropped assets: %w", err)
	}

	e.logger.Info().
		Int("symbols", len(symbols)).
		Int64("deactivated", deactivated).
		Msg("Universe refreshed")
	e.publish(events.EventUniverseRefreshed, map[string]interface{}{
		"symbols":     len(symbols),
		"deactivated": deactivated,
	})
	return nil
}

// classifyRegime derives the market regime from the reference symbol
func (e *Engine) classifyRegime(ctx context.Context) (regime.Classification, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	candles, err := e.fetcher.GetOHLCV(fetchCtx, e.cfg.ReferenceSymbol, e.cfg.RegimeTimeframe, e.cfg.CandleLimit)
	if err != nil {
		return regime.Classification{}, fmt.Errorf("fetch reference %s %s: %w", e.cfg.ReferenceSymbol, e.cfg.RegimeTimeframe, err)
	}

	s := indicator.NewSeries(candles).EnrichDefaults()
	classification := regime.Classify(s)

	e.logger.Info().
		Str("regime", string(classification.Regime)).
		Float64("confidence", classification.Confidence).
		Str("description", classification.Description).
		Msg("Market regime classified")
	return classification, nil
}

package scanner

import (
	"context"
	"time"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
)

// checkActiveSetups re-prices every active setup, flips level-hit flags
// and applies lifecycle transitions. Per-setup ticker failures are
// collected as scan errors, never fatal.
func (e *Engine) checkActiveSetups(ctx context.Context) []database.ScanError {
	setups, err := e.store.GetActiveSetups(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load active setups")
		return []database.ScanError{{Message: "load active setups: " + err.Error()}}
	}

	var errs []database.ScanError
	now := time.Now().UTC()

	for _, s := range setups {
		price, err := e.fetcher.GetTicker(ctx, s.Symbol)
		if err != nil || price <= 0 {
			msg := "ticker unavailable for setup check"
			if err != nil {
				msg = err.Error()
			}
			errs = append(errs, database.ScanError{Symbol: s.Symbol, Message: msg})
			continue
		}

		transitions := applyPriceCheck(s, price, now)
		if err := e.store.UpdateSetupTracking(ctx, s); err != nil {
			errs = append(errs, database.ScanError{Symbol: s.Symbol, Message: "persist setup check: " + err.Error()})
			continue
		}

		for _, tr := range transitions {
			e.logger.Info().
				Str("symbol", s.Symbol).
				Str("strategy", s.StrategyName).
				Str("transition", tr).
				Float64("price", price).
				Msg("Setup lifecycle update")

			eventType := events.EventSetupTargetHit
			if tr == transitionInvalidated {
				eventType = events.EventSetupInvalidated
			}
			e.publish(eventType, map[string]interface{}{
				"setup_id":   s.ID.String(),
				"symbol":     s.Symbol,
				"strategy":   s.StrategyName,
				"transition": tr,
				"price":      price,
			})
			if e.notifier != nil {
				if err := e.notifier.SendSetupUpdate(s.Symbol, s.StrategyName, tr, price); err != nil {
					e.logger.Warn().Err(err).Msg("Failed to send setup update")
				}
			}
		}
	}
	return errs
}

const (
	transitionInvalidated = "stop_loss_hit"
	transitionTP1         = "take_profit_1_hit"
	transitionTP2         = "take_profit_2_hit"
	transitionTP3         = "take_profit_3_hit"
)

// applyPriceCheck mutates the setup's tracking state for an observed
// price and returns the transitions that fired. A stop touch wins over
// target touches seen in the same check, and an invalidated setup never
// returns to active.
func applyPriceCheck(s *database.Setup, price float64, now time.Time) []string {
	var transitions []string

	if s.HighestPrice == nil || price > *s.HighestPrice {
		p := price
		s.HighestPrice = &p
	}
	if s.LowestPrice == nil || price < *s.LowestPrice {
		p := price
		s.LowestPrice = &p
	}
	s.LastCheckedAt = &now

	long := s.Direction == database.DirectionLong

	stopped := (long && price <= s.StopLoss) || (!long && price >= s.StopLoss)
	if stopped && !s.SLHit {
		s.SLHit = true
		s.Status = database.SetupStatusInvalidated
		s.InvalidatedAt = &now
		transitions = append(transitions, transitionInvalidated)
		return transitions
	}

	reached := func(target float64) bool {
		if long {
			return price >= target
		}
		return price <= target
	}
	if !s.TP1Hit && reached(s.TakeProfit1) {
		s.TP1Hit = true
		s.TP1HitAt = &now
		transitions = append(transitions, transitionTP1)
	}
	if !s.TP2Hit && reached(s.TakeProfit2) {
		s.TP2Hit = true
		s.TP2HitAt = &now
		transitions = append(transitions, transitionTP2)
	}
	if !s.TP3Hit && reached(s.TakeProfit3) {
		s.TP3Hit = true
		s.TP3HitAt = &now
		transitions = append(transitions, transitionTP3)
	}

	if now.After(s.ExpiresAt) && s.Status == database.SetupStatusActive {
		s.Status = database.SetupStatusExpired
	}
	return transitions
}

package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrSetupNotFound reports lookups for missing setup IDs
var ErrSetupNotFound = errors.New("setup not found")

const setupColumns = `
	id, symbol, strategy_name, direction, timeframe, status,
	regime, regime_confidence, funding_rate, entry_price, stop_loss,
	take_profit_1, take_profit_2, take_profit_3, risk_reward_ratio,
	required_met, bonus_met, total_conditions,
	sl_hit, tp1_hit, tp2_hit, tp3_hit, tp1_hit_at, tp2_hit_at, tp3_hit_at,
	highest_price, lowest_price, detected_at, expires_at,
	invalidated_at, last_checked_at, created_at, updated_at`

// CreateSetup inserts a new setup; a nil ID gets a fresh UUID
func (r *Repository) CreateSetup(ctx context.Context, s *Setup) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `
		INSERT INTO setups (
			id, symbol, strategy_name, direction, timeframe, status,
			regime, regime_confidence, funding_rate, entry_price, stop_loss,
			take_profit_1, take_profit_2, take_profit_3, risk_reward_ratio,
			required_met, bonus_met, total_conditions,
			detected_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		s.ID, s.Symbol, s.StrategyName, s.Direction, s.Timeframe, s.Status,
		s.Regime, s.RegimeConfidence, s.FundingRate, s.EntryPrice, s.StopLoss,
		s.TakeProfit1, s.TakeProfit2, s.TakeProfit3, s.RiskReward,
		s.RequiredMet, s.BonusMet, s.TotalConditions,
		s.DetectedAt, s.ExpiresAt,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetSetupByID retrieves one setup
func (r *Repository) GetSetupByID(ctx context.Context, id uuid.UUID) (*Setup, error) {
	query := `SELECT ` + setupColumns + ` FROM setups WHERE id = $1`
	s, err := scanSetup(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSetupNotFound
	}
	return s, err
}

// GetActiveSetups retrieves all setups still in play
func (r *Repository) GetActiveSetups(ctx context.Context) ([]*Setup, error) {
	query := `SELECT ` + setupColumns + ` FROM setups WHERE status = 'active' ORDER BY detected_at DESC`
	return r.querySetups(ctx, query)
}

// GetActiveSetup finds the live setup for a (symbol, strategy, direction)
// triple, or nil when none exists
func (r *Repository) GetActiveSetup(ctx context.Context, symbol, strategyName, direction string) (*Setup, error) {
	query := `SELECT ` + setupColumns + `
		FROM setups
		WHERE symbol = $1 AND strategy_name = $2 AND direction = $3 AND status = 'active'`
	s, err := scanSetup(r.db.Pool.QueryRow(ctx, query, symbol, strategyName, direction))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSetups retrieves recent setups, optionally filtered by status and symbol
func (r *Repository) ListSetups(ctx context.Context, status, symbol string, limit int) ([]*Setup, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + setupColumns + `
		FROM setups
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR symbol = $2)
		ORDER BY detected_at DESC
		LIMIT $3`
	return r.querySetups(ctx, query, status, symbol, limit)
}

// UpdateSetupTracking persists lifecycle state computed by a price check:
// status transitions, target flags and price extremes
func (r *Repository) UpdateSetupTracking(ctx context.Context, s *Setup) error {
	query := `
		UPDATE setups
		SET status = $2, sl_hit = $3,
		    tp1_hit = $4, tp2_hit = $5, tp3_hit = $6,
		    tp1_hit_at = $7, tp2_hit_at = $8, tp3_hit_at = $9,
		    highest_price = $10, lowest_price = $11,
		    invalidated_at = $12, last_checked_at = $13,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		s.ID, s.Status, s.SLHit,
		s.TP1Hit, s.TP2Hit, s.TP3Hit,
		s.TP1HitAt, s.TP2HitAt, s.TP3HitAt,
		s.HighestPrice, s.LowestPrice,
		s.InvalidatedAt, s.LastCheckedAt,
	).Scan(&s.UpdatedAt)
}

// ExpireSetups marks all active setups past their expiry as expired and
// returns how many flipped
func (r *Repository) ExpireSetups(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE setups
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE status = $1 AND expires_at <= $3
	`
	tag, err := r.db.Pool.Exec(ctx, query, SetupStatusActive, SetupStatusExpired, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) querySetups(ctx context.Context, query string, args ...any) ([]*Setup, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []*Setup
	for rows.Next() {
		s, err := scanSetup(rows)
		if err != nil {
			return nil, err
		}
		setups = append(setups, s)
	}
	return setups, rows.Err()
}

func scanSetup(row pgx.Row) (*Setup, error) {
	s := &Setup{}
	err := row.Scan(
		&s.ID, &s.Symbol, &s.StrategyName, &s.Direction, &s.Timeframe, &s.Status,
		&s.Regime, &s.RegimeConfidence, &s.FundingRate, &s.EntryPrice, &s.StopLoss,
		&s.TakeProfit1, &s.TakeProfit2, &s.TakeProfit3, &s.RiskReward,
		&s.RequiredMet, &s.BonusMet, &s.TotalConditions,
		&s.SLHit, &s.TP1Hit, &s.TP2Hit, &s.TP3Hit, &s.TP1HitAt, &s.TP2HitAt, &s.TP3HitAt,
		&s.HighestPrice, &s.LowestPrice, &s.DetectedAt, &s.ExpiresAt,
		&s.InvalidatedAt, &s.LastCheckedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

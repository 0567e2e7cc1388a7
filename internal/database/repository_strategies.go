package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// CreateStrategy inserts a strategy and its conditions in one transaction
func (r *Repository) CreateStrategy(ctx context.Context, s *Strategy) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	regimes, err := json.Marshal(s.ValidRegimes)
	if err != nil {
		return fmt.Errorf("marshal valid_regimes: %w", err)
	}

	query := `
		INSERT INTO strategies (name, description, direction, valid_regimes, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRow(
		ctx, query,
		s.Name, s.Description, s.Direction, regimes, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}

	for i := range s.Conditions {
		c := &s.Conditions[i]
		c.StrategyID = s.ID
		if c.SortOrder == 0 {
			c.SortOrder = i
		}
		params, err := json.Marshal(c.Params)
		if err != nil {
			return fmt.Errorf("marshal condition params: %w", err)
		}
		condQuery := `
			INSERT INTO strategy_conditions (strategy_id, condition_type, timeframe, params, required, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		if err := tx.QueryRow(
			ctx, condQuery,
			c.StrategyID, c.ConditionType, c.Timeframe, params, c.Required, c.SortOrder,
		).Scan(&c.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetActiveStrategies retrieves all active strategies with conditions loaded
func (r *Repository) GetActiveStrategies(ctx context.Context) ([]*Strategy, error) {
	return r.queryStrategies(ctx, `WHERE is_active = TRUE`)
}

// GetAllStrategies retrieves every strategy, active or not
func (r *Repository) GetAllStrategies(ctx context.Context) ([]*Strategy, error) {
	return r.queryStrategies(ctx, ``)
}

// GetStrategyByID retrieves one strategy with its conditions
func (r *Repository) GetStrategyByID(ctx context.Context, id int64) (*Strategy, error) {
	strategies, err := r.queryStrategies(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("strategy %d not found", id)
	}
	return strategies[0], nil
}

// UpdateStrategy replaces a strategy's fields and its full condition set
func (r *Repository) UpdateStrategy(ctx context.Context, s *Strategy) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	regimes, err := json.Marshal(s.ValidRegimes)
	if err != nil {
		return fmt.Errorf("marshal valid_regimes: %w", err)
	}

	query := `
		UPDATE strategies
		SET name = $2, description = $3, direction = $4, valid_regimes = $5,
		    is_active = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at
	`
	if err := tx.QueryRow(
		ctx, query,
		s.ID, s.Name, s.Description, s.Direction, regimes, s.IsActive,
	).Scan(&s.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM strategy_conditions WHERE strategy_id = $1`, s.ID); err != nil {
		return err
	}
	for i := range s.Conditions {
		c := &s.Conditions[i]
		c.StrategyID = s.ID
		params, err := json.Marshal(c.Params)
		if err != nil {
			return fmt.Errorf("marshal condition params: %w", err)
		}
		condQuery := `
			INSERT INTO strategy_conditions (strategy_id, condition_type, timeframe, params, required, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		if err := tx.QueryRow(
			ctx, condQuery,
			c.StrategyID, c.ConditionType, c.Timeframe, params, c.Required, i,
		).Scan(&c.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SetStrategyActive toggles a strategy without touching its conditions
func (r *Repository) SetStrategyActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE strategies SET is_active = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, active)
	return err
}

// DeleteStrategy removes a strategy; setups keep the denormalized name
func (r *Repository) DeleteStrategy(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM strategies WHERE id = $1`, id)
	return err
}

func (r *Repository) queryStrategies(ctx context.Context, where string, args ...any) ([]*Strategy, error) {
	query := fmt.Sprintf(`
		SELECT id, name, description, direction, valid_regimes, is_active, created_at, updated_at
		FROM strategies
		%s
		ORDER BY name
	`, where)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strategies []*Strategy
	byID := make(map[int64]*Strategy)
	for rows.Next() {
		s := &Strategy{}
		var regimes []byte
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.Direction, &regimes,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(regimes, &s.ValidRegimes); err != nil {
			return nil, fmt.Errorf("unmarshal valid_regimes for strategy %d: %w", s.ID, err)
		}
		strategies = append(strategies, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return strategies, nil
	}

	ids := make([]int64, 0, len(strategies))
	for _, s := range strategies {
		ids = append(ids, s.ID)
	}
	condQuery := `
		SELECT id, strategy_id, condition_type, timeframe, params, required, sort_order
		FROM strategy_conditions
		WHERE strategy_id = ANY($1)
		ORDER BY strategy_id, sort_order
	`
	condRows, err := r.db.Pool.Query(ctx, condQuery, ids)
	if err != nil {
		return nil, err
	}
	defer condRows.Close()

	for condRows.Next() {
		var c StrategyCondition
		var params []byte
		if err := condRows.Scan(
			&c.ID, &c.StrategyID, &c.ConditionType, &c.Timeframe, &params, &c.Required, &c.SortOrder,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(params, &c.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params for condition %d: %w", c.ID, err)
		}
		if s, ok := byID[c.StrategyID]; ok {
			s.Conditions = append(s.Conditions, c)
		}
	}
	return strategies, condRows.Err()
}

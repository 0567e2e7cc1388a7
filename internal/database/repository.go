package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// ASSETS
// ============================================================================

// UpsertAsset inserts an asset or reactivates an existing row for the symbol.
// On conflict only an explicit watchlist add rewrites source; the dynamic
// refresh must not claim a watchlist row, or it would later be deactivated
// as a dropped ranked symbol.
func (r *Repository) UpsertAsset(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (symbol, base_asset, quote_asset, source, market_cap_rank, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (symbol) DO UPDATE
		SET is_active = TRUE,
		    source = CASE WHEN EXCLUDED.source = 'watchlist' THEN EXCLUDED.source ELSE assets.source END,
		    market_cap_rank = EXCLUDED.market_cap_rank, updated_at = CURRENT_TIMESTAMP
		RETURNING id, source, is_active, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		asset.Symbol, asset.BaseAsset, asset.QuoteAsset, asset.Source, asset.MarketCapRank,
	).Scan(&asset.ID, &asset.Source, &asset.IsActive, &asset.CreatedAt, &asset.UpdatedAt)
}

// GetActiveAssets retrieves all assets currently in the scan universe
func (r *Repository) GetActiveAssets(ctx context.Context) ([]*Asset, error) {
	query := `
		SELECT id, symbol, base_asset, quote_asset, source, market_cap_rank, is_active, last_scanned_at, created_at, updated_at
		FROM assets
		WHERE is_active = TRUE
		ORDER BY market_cap_rank NULLS LAST, symbol
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

// DeactivateAssetsNotIn marks ranked assets absent from the refreshed
// universe as inactive. Watchlist assets are never deactivated this way.
func (r *Repository) DeactivateAssetsNotIn(ctx context.Context, symbols []string) (int64, error) {
	query := `
		UPDATE assets
		SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = TRUE
		  AND source = $1
		  AND NOT (symbol = ANY($2))
	`
	tag, err := r.db.Pool.Exec(ctx, query, AssetSourceDynamic, symbols)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkAssetScanned stamps the asset's last successful scan time
func (r *Repository) MarkAssetScanned(ctx context.Context, symbol string, at time.Time) error {
	query := `UPDATE assets SET last_scanned_at = $2, updated_at = CURRENT_TIMESTAMP WHERE symbol = $1`
	_, err := r.db.Pool.Exec(ctx, query, symbol, at)
	return err
}

// SetAssetActive flips a single asset in or out of the universe
func (r *Repository) SetAssetActive(ctx context.Context, symbol string, active bool) error {
	query := `UPDATE assets SET is_active = $2, updated_at = CURRENT_TIMESTAMP WHERE symbol = $1`
	tag, err := r.db.Pool.Exec(ctx, query, symbol, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAssets(rows pgx.Rows) ([]*Asset, error) {
	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		if err := rows.Scan(
			&a.ID, &a.Symbol, &a.BaseAsset, &a.QuoteAsset, &a.Source, &a.MarketCapRank,
			&a.IsActive, &a.LastScannedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Package database provides PostgreSQL persistence for the scanner: scan
// universe, strategies, detected setups, scan logs and the trade journal.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection pool and verifies it with a ping
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger := log.With().Str("component", "database").Logger()
	logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations...")

	migrations := []string{
		// Scan universe
		`CREATE TABLE IF NOT EXISTS assets (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(30) NOT NULL UNIQUE,
			base_asset VARCHAR(20) NOT NULL,
			quote_asset VARCHAR(20) NOT NULL,
			source VARCHAR(20) NOT NULL DEFAULT 'dynamic',
			market_cap_rank INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_scanned_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_active ON assets(is_active)`,

		// Strategies and their conditions
		`CREATE TABLE IF NOT EXISTS strategies (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			description TEXT,
			direction VARCHAR(10) NOT NULL DEFAULT 'long',
			valid_regimes JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS strategy_conditions (
			id SERIAL PRIMARY KEY,
			strategy_id INTEGER NOT NULL REFERENCES strategies(id) ON DELETE CASCADE,
			condition_type VARCHAR(50) NOT NULL,
			timeframe VARCHAR(5) NOT NULL,
			params JSONB NOT NULL DEFAULT '{}',
			required BOOLEAN NOT NULL DEFAULT TRUE,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_conditions_strategy ON strategy_conditions(strategy_id)`,

		// Detected setups
		`CREATE TABLE IF NOT EXISTS setups (
			id UUID PRIMARY KEY,
			symbol VARCHAR(30) NOT NULL,
			strategy_name VARCHAR(100) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			timeframe VARCHAR(5) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			regime VARCHAR(20) NOT NULL,
			regime_confidence DECIMAL(4, 3) NOT NULL DEFAULT 0,
			funding_rate DECIMAL(12, 8),
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit_1 DECIMAL(20, 8) NOT NULL,
			take_profit_2 DECIMAL(20, 8) NOT NULL,
			take_profit_3 DECIMAL(20, 8) NOT NULL,
			risk_reward_ratio DECIMAL(10, 2) NOT NULL,
			required_met INTEGER NOT NULL DEFAULT 0,
			bonus_met INTEGER NOT NULL DEFAULT 0,
			total_conditions INTEGER NOT NULL DEFAULT 0,
			sl_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp1_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp2_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp3_hit BOOLEAN NOT NULL DEFAULT FALSE,
			tp1_hit_at TIMESTAMP,
			tp2_hit_at TIMESTAMP,
			tp3_hit_at TIMESTAMP,
			highest_price DECIMAL(20, 8),
			lowest_price DECIMAL(20, 8),
			detected_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			invalidated_at TIMESTAMP,
			last_checked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_status ON setups(status)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_symbol ON setups(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_detected_at ON setups(detected_at)`,
		// At most one live setup per (symbol, strategy, direction)
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_setups_active_unique
			ON setups(symbol, strategy_name, direction) WHERE status = 'active'`,

		// Scan run history
		`CREATE TABLE IF NOT EXISTS scan_logs (
			id SERIAL PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			trigger_source VARCHAR(20) NOT NULL DEFAULT 'manual',
			market_regime VARCHAR(20),
			assets_total INTEGER NOT NULL DEFAULT 0,
			assets_scanned INTEGER NOT NULL DEFAULT 0,
			setups_found INTEGER NOT NULL DEFAULT 0,
			errors JSONB NOT NULL DEFAULT '[]',
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_logs_status ON scan_logs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_logs_started_at ON scan_logs(started_at)`,

		// Trade journal
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id SERIAL PRIMARY KEY,
			setup_id UUID,
			symbol VARCHAR(30) NOT NULL,
			direction VARCHAR(10),
			entry_price DECIMAL(20, 8),
			exit_price DECIMAL(20, 8),
			r_multiple DECIMAL(10, 2),
			notes TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_symbol ON journal_entries(symbol)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}

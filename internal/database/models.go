package database

import (
	"time"

	"github.com/google/uuid"
)

// AssetSource constants
const (
	AssetSourceDynamic   = "dynamic"   // Pulled in by the market-cap universe refresh
	AssetSourceWatchlist = "watchlist" // Pinned by the user, survives refreshes
)

// Direction constants for strategies and setups
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionBoth  = "both" // Strategy-only; concrete setups are always long or short
)

// SetupStatus constants
const (
	SetupStatusActive      = "active"
	SetupStatusExpired     = "expired"
	SetupStatusInvalidated = "invalidated"
)

// ScanStatus constants
const (
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
	ScanStatusCancelled = "cancelled"
)

// ScanTrigger constants
const (
	ScanTriggerManual    = "manual"
	ScanTriggerScheduled = "scheduled"
)

// Asset is a tradeable symbol in the scan universe
type Asset struct {
	ID            int64      `json:"id"`
	Symbol        string     `json:"symbol"` // "BTC/USDT"
	BaseAsset     string     `json:"base_asset"`
	QuoteAsset    string     `json:"quote_asset"`
	Source        string     `json:"source"`
	MarketCapRank *int       `json:"market_cap_rank,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Strategy is a named recipe of conditions that together define a setup
type Strategy struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Description  *string             `json:"description,omitempty"`
	Direction    string              `json:"direction"`
	ValidRegimes []string            `json:"valid_regimes"`
	IsActive     bool                `json:"is_active"`
	Conditions   []StrategyCondition `json:"conditions"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// StrategyCondition is a single evaluable rule inside a strategy. Optional
// conditions inform scoring but never gate setup creation.
type StrategyCondition struct {
	ID            int64          `json:"id"`
	StrategyID    int64          `json:"strategy_id"`
	ConditionType string         `json:"condition_type"`
	Timeframe     string         `json:"timeframe"`
	Params        map[string]any `json:"params"`
	Required      bool           `json:"required"`
	SortOrder     int            `json:"sort_order"`
}

// Setup is a detected trade opportunity with computed levels. Lifecycle:
// active until expiry, stop-loss touch (invalidated) or deactivation of
// the underlying strategy/asset.
type Setup struct {
	ID               uuid.UUID  `json:"id"`
	Symbol           string     `json:"symbol"`
	StrategyName     string     `json:"strategy_name"` // Snapshot by name, survives strategy deletion
	Direction        string     `json:"direction"`
	Timeframe        string     `json:"timeframe"`
	Status           string     `json:"status"`
	Regime           string     `json:"regime"`
	RegimeConfidence float64    `json:"regime_confidence"`
	FundingRate      *float64   `json:"funding_rate,omitempty"`
	EntryPrice       float64    `json:"entry_price"`
	StopLoss         float64    `json:"stop_loss"`
	TakeProfit1      float64    `json:"take_profit_1"`
	TakeProfit2      float64    `json:"take_profit_2"`
	TakeProfit3      float64    `json:"take_profit_3"`
	RiskReward       float64    `json:"risk_reward_ratio"`
	RequiredMet      int        `json:"required_met"`
	BonusMet         int        `json:"bonus_met"`
	TotalConditions  int        `json:"total_conditions"`
	SLHit            bool       `json:"sl_hit"`
	TP1Hit           bool       `json:"tp1_hit"`
	TP2Hit           bool       `json:"tp2_hit"`
	TP3Hit           bool       `json:"tp3_hit"`
	TP1HitAt         *time.Time `json:"tp1_hit_at,omitempty"`
	TP2HitAt         *time.Time `json:"tp2_hit_at,omitempty"`
	TP3HitAt         *time.Time `json:"tp3_hit_at,omitempty"`
	HighestPrice     *float64   `json:"highest_price,omitempty"`
	LowestPrice      *float64   `json:"lowest_price,omitempty"`
	DetectedAt       time.Time  `json:"detected_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	InvalidatedAt    *time.Time `json:"invalidated_at,omitempty"`
	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ScanError is one recoverable per-asset failure inside a scan run
type ScanError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// ScanLog records one scan run end to end
type ScanLog struct {
	ID            int64       `json:"id"`
	Status        string      `json:"status"`
	Trigger       string      `json:"trigger"`
	MarketRegime  *string     `json:"market_regime,omitempty"`
	AssetsTotal   int         `json:"assets_total"`
	AssetsScanned int         `json:"assets_scanned"`
	SetupsFound   int         `json:"setups_found"`
	Errors        []ScanError `json:"errors"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
}

// JournalEntry is a user note about a setup or a manually logged trade
type JournalEntry struct {
	ID         int64      `json:"id"`
	SetupID    *uuid.UUID `json:"setup_id,omitempty"`
	Symbol     string     `json:"symbol"`
	Direction  *string    `json:"direction,omitempty"`
	EntryPrice *float64   `json:"entry_price,omitempty"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	RMultiple  *float64   `json:"r_multiple,omitempty"`
	Notes      string     `json:"notes"`
	Tags       []string   `json:"tags"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

package scanner

import (
	"context"
	"time"

	"blueprint-scanner/internal/database"
)

// Store is the persistence surface the scan engine needs. Satisfied by
// *database.Repository; tests substitute an in-memory implementation.
type Store interface {
	CreateScanLog(ctx context.Context, sl *database.ScanLog) error
	UpdateScanLog(ctx context.Context, sl *database.ScanLog) error
	GetRunningScanLog(ctx context.Context) (*database.ScanLog, error)

	UpsertAsset(ctx context.Context, asset *database.Asset) error
	GetActiveAssets(ctx context.Context) ([]*database.Asset, error)
	DeactivateAssetsNotIn(ctx context.Context, symbols []string) (int64, error)
	MarkAssetScanned(ctx context.Context, symbol string, at time.Time) error

	GetActiveStrategies(ctx context.Context) ([]*database.Strategy, error)

	CreateSetup(ctx context.Context, s *database.Setup) error
	GetActiveSetup(ctx context.Context, symbol, strategyName, direction string) (*database.Setup, error)
	GetActiveSetups(ctx context.Context) ([]*database.Setup, error)
	UpdateSetupTracking(ctx context.Context, s *database.Setup) error
	ExpireSetups(ctx context.Context, now time.Time) (int64, error)
}

var _ Store = (*database.Repository)(nil)

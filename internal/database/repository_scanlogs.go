package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateScanLog inserts a new scan run record in the running state
func (r *Repository) CreateScanLog(ctx context.Context, sl *ScanLog) error {
	if sl.Status == "" {
		sl.Status = ScanStatusRunning
	}
	if sl.Errors == nil {
		sl.Errors = []ScanError{}
	}
	query := `
		INSERT INTO scan_logs (status, trigger_source, assets_total, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		sl.Status, sl.Trigger, sl.AssetsTotal, sl.StartedAt,
	).Scan(&sl.ID)
}

// UpdateScanLog persists progress counters and the terminal state
func (r *Repository) UpdateScanLog(ctx context.Context, sl *ScanLog) error {
	if sl.Errors == nil {
		sl.Errors = []ScanError{}
	}
	errs, err := json.Marshal(sl.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	query := `
		UPDATE scan_logs
		SET status = $2, market_regime = $3, assets_total = $4, assets_scanned = $5,
		    setups_found = $6, errors = $7, finished_at = $8
		WHERE id = $1
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		sl.ID, sl.Status, sl.MarketRegime, sl.AssetsTotal, sl.AssetsScanned, sl.SetupsFound, errs, sl.FinishedAt,
	)
	return err
}

// GetRunningScanLog returns the most recent scan still marked running, or
// nil when no scan is in flight
func (r *Repository) GetRunningScanLog(ctx context.Context) (*ScanLog, error) {
	query := `
		SELECT id, status, trigger_source, market_regime, assets_total, assets_scanned, setups_found, errors, started_at, finished_at
		FROM scan_logs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`
	sl, err := scanScanLog(r.db.Pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sl, err
}

// GetRecentScanLogs returns the latest runs, newest first
func (r *Repository) GetRecentScanLogs(ctx context.Context, limit int) ([]*ScanLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	query := `
		SELECT id, status, trigger_source, market_regime, assets_total, assets_scanned, setups_found, errors, started_at, finished_at
		FROM scan_logs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*ScanLog
	for rows.Next() {
		sl, err := scanScanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, sl)
	}
	return logs, rows.Err()
}

func scanScanLog(row pgx.Row) (*ScanLog, error) {
	sl := &ScanLog{}
	var errs []byte
	err := row.Scan(
		&sl.ID, &sl.Status, &sl.Trigger, &sl.MarketRegime, &sl.AssetsTotal, &sl.AssetsScanned,
		&sl.SetupsFound, &errs, &sl.StartedAt, &sl.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errs, &sl.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal scan errors: %w", err)
	}
	return sl, nil
}

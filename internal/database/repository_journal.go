package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrJournalEntryNotFound reports lookups for missing journal entries
var ErrJournalEntryNotFound = errors.New("journal entry not found")

// CreateJournalEntry inserts a new journal entry
func (r *Repository) CreateJournalEntry(ctx context.Context, e *JournalEntry) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	query := `
		INSERT INTO journal_entries (setup_id, symbol, direction, entry_price, exit_price, r_multiple, notes, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		e.SetupID, e.Symbol, e.Direction, e.EntryPrice, e.ExitPrice, e.RMultiple, e.Notes, tags,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateJournalEntry updates mutable fields of an entry
func (r *Repository) UpdateJournalEntry(ctx context.Context, e *JournalEntry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	query := `
		UPDATE journal_entries
		SET direction = $2, entry_price = $3, exit_price = $4, r_multiple = $5,
		    notes = $6, tags = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.Pool.QueryRow(
		ctx, query,
		e.ID, e.Direction, e.EntryPrice, e.ExitPrice, e.RMultiple, e.Notes, tags,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJournalEntryNotFound
	}
	return err
}

// DeleteJournalEntry removes an entry
func (r *Repository) DeleteJournalEntry(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJournalEntryNotFound
	}
	return nil
}

// ListJournalEntries retrieves entries, optionally filtered by symbol
func (r *Repository) ListJournalEntries(ctx context.Context, symbol string, limit int) ([]*JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, setup_id, symbol, direction, entry_price, exit_price, r_multiple, notes, tags, created_at, updated_at
		FROM journal_entries
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		e := &JournalEntry{}
		var tags []byte
		if err := rows.Scan(
			&e.ID, &e.SetupID, &e.Symbol, &e.Direction, &e.EntryPrice, &e.ExitPrice,
			&e.RMultiple, &e.Notes, &tags, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tags, &e.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

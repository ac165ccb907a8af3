package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/leadmail/internal/model"
)

// GetOrCreateWatermark returns the fetch watermark of an account,
// creating it at now - lookback on first use.
func (s *SQLiteStore) GetOrCreateWatermark(
	ctx context.Context,
	accountID string,
	now time.Time,
	lookback time.Duration,
) (*model.FetchWatermark, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now = now.UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_fetch_tracker (account_id, last_fetch_time, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO NOTHING`,
		accountID, now.Add(-lookback), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating watermark for %s: %w", accountID, MapSQLError(err))
	}

	var w model.FetchWatermark
	err = tx.GetContext(ctx, &w, `
		SELECT account_id, last_fetch_time, created_at, updated_at
		FROM email_fetch_tracker WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("getting watermark for %s: %w", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing watermark for %s: %w", accountID, err)
	}
	return &w, nil
}

// AdvanceWatermark moves the watermark of an account forward to t. An
// earlier t leaves it unchanged.
func (s *SQLiteStore) AdvanceWatermark(ctx context.Context, accountID string, t time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current time.Time
	err = tx.GetContext(ctx, &current,
		"SELECT last_fetch_time FROM email_fetch_tracker WHERE account_id = ?", accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("watermark for %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting watermark for %s: %w", accountID, err)
	}

	if !t.After(current) {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE email_fetch_tracker SET last_fetch_time = ?, updated_at = ? WHERE account_id = ?",
		t.UTC(), time.Now().UTC(), accountID,
	)
	if err != nil {
		return fmt.Errorf("advancing watermark for %s: %w", accountID, err)
	}

	return tx.Commit()
}

package autosearch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/database"
)

// BackoffTracker persists per-item search failure counts so scheduled runs
// stop hammering indexers for items that never turn up results. A successful
// grab resets the count.
type BackoffTracker struct {
	db *database.DB
}

// NewBackoffTracker creates a backoff tracker.
func NewBackoffTracker(db *database.DB) *BackoffTracker {
	return &BackoffTracker{db: db}
}

// FailureCount returns the consecutive failure count for an item.
func (b *BackoffTracker) FailureCount(ctx context.Context, itemType string, itemID int64) (int, error) {
	var count int
	err := b.db.Conn().QueryRowContext(ctx,
		`SELECT COALESCE(failure_count, 0) FROM autosearch_status
		 WHERE item_type = ? AND item_id = ?`, itemType, itemID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query search failures: %w", err)
	}
	return count, nil
}

// RecordFailure increments the failure count for an item.
func (b *BackoffTracker) RecordFailure(ctx context.Context, itemType string, itemID int64) error {
	_, err := b.db.Conn().ExecContext(ctx,
		`INSERT INTO autosearch_status (item_type, item_id, failure_count, last_search_at)
		 VALUES (?, ?, 1, datetime('now'))
		 ON CONFLICT (item_type, item_id)
		 DO UPDATE SET failure_count = failure_count + 1, last_search_at = datetime('now')`,
		itemType, itemID)
	if err != nil {
		return fmt.Errorf("failed to record search failure: %w", err)
	}
	return nil
}

// RecordSuccess resets the failure count for an item.
func (b *BackoffTracker) RecordSuccess(ctx context.Context, itemType string, itemID int64) error {
	_, err := b.db.Conn().ExecContext(ctx,
		`INSERT INTO autosearch_status (item_type, item_id, failure_count, last_search_at)
		 VALUES (?, ?, 0, datetime('now'))
		 ON CONFLICT (item_type, item_id)
		 DO UPDATE SET failure_count = 0, last_search_at = datetime('now')`,
		itemType, itemID)
	if err != nil {
		return fmt.Errorf("failed to reset search failures: %w", err)
	}
	return nil
}

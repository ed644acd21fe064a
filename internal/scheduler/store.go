package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fetcharr/fetcharr/internal/database"
)

// TaskStateStore persists task run times so cooldowns survive restarts.
type TaskStateStore interface {
	GetLastRun(ctx context.Context, taskType string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, taskType string, t time.Time) error
}

// SQLTaskStateStore stores task state in the scheduler_task_state table.
type SQLTaskStateStore struct {
	db *database.DB
}

// NewTaskStateStore creates a task state store.
func NewTaskStateStore(db *database.DB) *SQLTaskStateStore {
	return &SQLTaskStateStore{db: db}
}

// GetLastRun returns the persisted last run time for a task. The second
// return value is false when the task has never run.
func (s *SQLTaskStateStore) GetLastRun(ctx context.Context, taskType string) (time.Time, bool, error) {
	var raw string
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT last_run_time FROM scheduler_task_state WHERE task_type = ?`, taskType).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query task state: %w", err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse task run time: %w", err)
	}
	return t, true, nil
}

// SetLastRun persists the last run time for a task.
func (s *SQLTaskStateStore) SetLastRun(ctx context.Context, taskType string, t time.Time) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO scheduler_task_state (task_type, last_run_time) VALUES (?, ?)
		 ON CONFLICT (task_type) DO UPDATE SET last_run_time = excluded.last_run_time`,
		taskType, t.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to persist task state: %w", err)
	}
	return nil
}

var _ TaskStateStore = (*SQLTaskStateStore)(nil)

// Package blocklist tracks releases that must never be grabbed again, keyed
// by info hash when available and by normalized title otherwise.
package blocklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/database"
	"github.com/fetcharr/fetcharr/internal/release"
)

// ErrEntryNotFound is returned when a blocklist entry does not exist.
var ErrEntryNotFound = errors.New("blocklist entry not found")

// Entry is one blocklisted release.
type Entry struct {
	ID              int64     `json:"id"`
	InfoHash        string    `json:"infoHash,omitempty"`
	Title           string    `json:"title"`
	NormalizedTitle string    `json:"normalizedTitle"`
	IndexerID       int64     `json:"indexerId,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Service persists and queries the blocklist.
type Service struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewService creates a new blocklist service.
func NewService(db *database.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "blocklist").Logger(),
	}
}

// Add blocklists a release.
func (s *Service) Add(ctx context.Context, infoHash, title, reason string, indexerID int64) (*Entry, error) {
	entry := &Entry{
		InfoHash:        strings.ToLower(strings.TrimSpace(infoHash)),
		Title:           title,
		NormalizedTitle: release.Normalize(title),
		IndexerID:       indexerID,
		Reason:          reason,
	}

	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO blocklist (info_hash, title, normalized_title, indexer_id, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		nullString(entry.InfoHash), entry.Title, entry.NormalizedTitle,
		nullInt64(entry.IndexerID), nullString(entry.Reason))
	if err != nil {
		return nil, fmt.Errorf("failed to add blocklist entry: %w", err)
	}

	entry.ID, _ = res.LastInsertId()
	entry.CreatedAt = time.Now()

	s.logger.Info().
		Str("title", title).
		Str("infoHash", entry.InfoHash).
		Str("reason", reason).
		Msg("Release blocklisted")

	return entry, nil
}

// IsBlocklisted reports whether a release matches a blocklist entry by info
// hash or normalized title.
func (s *Service) IsBlocklisted(ctx context.Context, infoHash, title string) (bool, error) {
	hash := strings.ToLower(strings.TrimSpace(infoHash))
	if hash != "" {
		var n int
		err := s.db.Conn().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM blocklist WHERE info_hash = ?`, hash).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to query blocklist: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}

	normalized := release.Normalize(title)
	if normalized == "" {
		return false, nil
	}

	var n int
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocklist WHERE normalized_title = ?`, normalized).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query blocklist: %w", err)
	}
	return n > 0, nil
}

// List returns all blocklist entries, newest first.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, info_hash, title, normalized_title, indexer_id, reason, created_at
		 FROM blocklist ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry     Entry
			infoHash  sql.NullString
			indexerID sql.NullInt64
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &infoHash, &entry.Title, &entry.NormalizedTitle,
			&indexerID, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist entry: %w", err)
		}
		entry.InfoHash = infoHash.String
		entry.IndexerID = indexerID.Int64
		entry.Reason = reason.String
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			entry.CreatedAt = t
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Remove deletes a blocklist entry.
func (s *Service) Remove(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove blocklist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

// Package history records grabbed releases for auditing and blocklist
// bookkeeping.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/database"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// Entry is one recorded grab.
type Entry struct {
	ID              int64     `json:"id"`
	ReleaseTitle    string    `json:"releaseTitle"`
	IndexerID       int64     `json:"indexerId,omitempty"`
	IndexerName     string    `json:"indexer,omitempty"`
	Protocol        string    `json:"protocol,omitempty"`
	InfoHash        string    `json:"infoHash,omitempty"`
	Size            int64     `json:"size"`
	TotalScore      float64   `json:"totalScore"`
	NormalizedScore int       `json:"normalizedScore"`
	MediaKind       string    `json:"mediaKind"`
	EpisodeIDs      []int64   `json:"episodeIds,omitempty"`
	GrabbedAt       time.Time `json:"grabbedAt"`
}

// Service records and lists grabs.
type Service struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *database.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// RecordGrab stores a grabbed release.
func (s *Service) RecordGrab(ctx context.Context, release *types.Release, mediaKind scoring.MediaKind, episodeIDs []int64) error {
	if episodeIDs == nil {
		episodeIDs = []int64{}
	}
	ids, err := json.Marshal(episodeIDs)
	if err != nil {
		return fmt.Errorf("failed to encode episode ids: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO grab_history (release_title, indexer_id, indexer_name, protocol,
			info_hash, size, total_score, normalized_score, media_kind, episode_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		release.Title, nullInt64(release.IndexerID), nullString(release.IndexerName),
		nullString(string(release.Protocol)), nullString(release.InfoHash),
		release.Size, release.TotalScore, release.NormalizedScore,
		string(mediaKind), string(ids))
	if err != nil {
		return fmt.Errorf("failed to record grab: %w", err)
	}
	return nil
}

// List returns the most recent grabs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, release_title, indexer_id, indexer_name, protocol, info_hash,
			size, total_score, normalized_score, media_kind, episode_ids, grabbed_at
		 FROM grab_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list grab history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry       Entry
			indexerID   sql.NullInt64
			indexerName sql.NullString
			protocol    sql.NullString
			infoHash    sql.NullString
			episodeIDs  string
			grabbedAt   string
		)
		err := rows.Scan(&entry.ID, &entry.ReleaseTitle, &indexerID, &indexerName,
			&protocol, &infoHash, &entry.Size, &entry.TotalScore,
			&entry.NormalizedScore, &entry.MediaKind, &episodeIDs, &grabbedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grab history: %w", err)
		}

		entry.IndexerID = indexerID.Int64
		entry.IndexerName = indexerName.String
		entry.Protocol = protocol.String
		entry.InfoHash = infoHash.String
		if err := json.Unmarshal([]byte(episodeIDs), &entry.EpisodeIDs); err != nil {
			return nil, fmt.Errorf("failed to decode episode ids: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", grabbedAt); err == nil {
			entry.GrabbedAt = t
		}

		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

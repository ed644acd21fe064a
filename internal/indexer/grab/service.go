// Package grab is the execution boundary of the acquisition pipeline: it
// pushes an accepted release to a download client and records the outcome.
package grab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

var (
	ErrInvalidRelease   = errors.New("invalid release")
	ErrNoDownloadClient = errors.New("no download client configured")
	ErrDownloadFailed   = errors.New("download failed")
)

// Downloader sends a release to a download client and returns the queue item
// ID assigned by the client.
type Downloader interface {
	Push(ctx context.Context, release *types.Release) (string, error)
}

// History records completed grabs for auditing and blocklist bookkeeping.
type History interface {
	RecordGrab(ctx context.Context, release *types.Release, mediaKind scoring.MediaKind, episodeIDs []int64) error
}

// Service executes grabs.
type Service struct {
	downloader Downloader
	history    History
	logger     zerolog.Logger
}

// NewService creates a new grab service.
func NewService(downloader Downloader, logger zerolog.Logger) *Service {
	return &Service{
		downloader: downloader,
		logger:     logger.With().Str("component", "grab").Logger(),
	}
}

// SetHistory sets the optional grab history recorder.
func (s *Service) SetHistory(history History) {
	s.history = history
}

// Request describes one release to grab and the media it satisfies.
type Request struct {
	Release *types.Release `json:"release"`

	MediaKind scoring.MediaKind `json:"mediaKind"`
	MovieID   int64             `json:"movieId,omitempty"`
	SeriesID  int64             `json:"seriesId,omitempty"`
	// EpisodeIDs lists every episode the release covers; a season pack
	// carries the whole season here.
	EpisodeIDs   []int64 `json:"episodeIds,omitempty"`
	SeasonNumber int     `json:"seasonNumber,omitempty"`

	IsAutomatic bool `json:"isAutomatic,omitempty"`
	IsUpgrade   bool `json:"isUpgrade,omitempty"`
}

// Result is the outcome of a grab.
type Result struct {
	Success         bool    `json:"success"`
	ReleaseName     string  `json:"releaseName,omitempty"`
	QueueItemID     string  `json:"queueItemId,omitempty"`
	EpisodesCovered []int64 `json:"episodesCovered,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Grab pushes a release to the download client. Transient push failures are
// retried; the first definitive outcome is returned.
func (s *Service) Grab(ctx context.Context, req Request) (*Result, error) {
	if req.Release == nil || (req.Release.DownloadURL == "" && req.Release.MagnetURL == "") {
		return &Result{Success: false, Error: "release has no download link"}, ErrInvalidRelease
	}
	if s.downloader == nil {
		return &Result{Success: false, Error: ErrNoDownloadClient.Error()}, ErrNoDownloadClient
	}

	rel := req.Release
	s.logger.Info().
		Str("title", rel.Title).
		Int64("indexerId", rel.IndexerID).
		Str("protocol", string(rel.Protocol)).
		Bool("automatic", req.IsAutomatic).
		Bool("upgrade", req.IsUpgrade).
		Msg("Grabbing release")

	var queueItemID string
	err := retry.Do(
		func() error {
			var pushErr error
			queueItemID, pushErr = s.downloader.Push(ctx, rel)
			return pushErr
		},
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(attempt uint, err error) {
			s.logger.Warn().
				Err(err).
				Uint("attempt", attempt+1).
				Str("title", rel.Title).
				Msg("Download client push failed, retrying")
		}),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("title", rel.Title).
			Msg("Grab failed")
		return &Result{Success: false, ReleaseName: rel.Title, Error: err.Error()},
			fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if s.history != nil {
		if histErr := s.history.RecordGrab(ctx, rel, req.MediaKind, req.EpisodeIDs); histErr != nil {
			// The grab itself succeeded; history is best effort.
			s.logger.Warn().Err(histErr).Str("title", rel.Title).Msg("Failed to record grab history")
		}
	}

	s.logger.Info().
		Str("title", rel.Title).
		Str("queueItemId", queueItemID).
		Int("episodesCovered", len(req.EpisodeIDs)).
		Msg("Release sent to download client")

	return &Result{
		Success:         true,
		ReleaseName:     rel.Title,
		QueueItemID:     queueItemID,
		EpisodesCovered: req.EpisodeIDs,
	}, nil
}

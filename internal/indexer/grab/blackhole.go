package grab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/release"
)

// BlackholeDownloader drops grabbed releases into a watch directory: magnet
// links as .magnet files, fetched torrent/NZB payloads under their native
// extension. A download client watching the directory picks them up.
type BlackholeDownloader struct {
	watchDir string
	client   *http.Client
	logger   zerolog.Logger
}

// NewBlackholeDownloader creates a blackhole downloader writing into watchDir.
func NewBlackholeDownloader(watchDir string, logger zerolog.Logger) *BlackholeDownloader {
	return &BlackholeDownloader{
		watchDir: watchDir,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With().Str("component", "blackhole").Logger(),
	}
}

// Push writes the release into the watch directory and returns a generated
// queue item ID.
func (d *BlackholeDownloader) Push(ctx context.Context, rel *types.Release) (string, error) {
	if err := os.MkdirAll(d.watchDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create watch directory: %w", err)
	}

	name := safeFileName(rel.Title)
	queueItemID := uuid.NewString()

	if rel.MagnetURL != "" {
		path := filepath.Join(d.watchDir, name+".magnet")
		if err := os.WriteFile(path, []byte(rel.MagnetURL), 0o640); err != nil {
			return "", fmt.Errorf("failed to write magnet file: %w", err)
		}
		d.logger.Debug().Str("path", path).Msg("Wrote magnet link")
		return queueItemID, nil
	}

	ext := ".torrent"
	if rel.Protocol == types.ProtocolUsenet {
		ext = ".nzb"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch release file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release file fetch returned status %d", resp.StatusCode)
	}

	path := filepath.Join(d.watchDir, name+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create release file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write release file: %w", err)
	}

	d.logger.Debug().Str("path", path).Msg("Wrote release file")
	return queueItemID, nil
}

// safeFileName reduces a release title to a filesystem-safe name.
func safeFileName(title string) string {
	name := release.Normalize(title)
	name = strings.ReplaceAll(name, " ", ".")
	if name == "" {
		name = "release"
	}
	return name
}

var _ Downloader = (*BlackholeDownloader)(nil)

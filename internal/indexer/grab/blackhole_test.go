package grab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

func TestBlackholeWritesMagnetFile(t *testing.T) {
	dir := t.TempDir()
	downloader := NewBlackholeDownloader(dir, zerolog.Nop())

	rel := &types.Release{
		Title:     "Test.Movie.2024.1080p.BluRay.x264-GRP",
		MagnetURL: "magnet:?xt=urn:btih:abc123",
		Protocol:  types.ProtocolTorrent,
	}

	id, err := downloader.Push(context.Background(), rel)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".magnet", filepath.Ext(entries[0].Name()))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, rel.MagnetURL, string(data))
}

func TestBlackholeFetchesTorrentFile(t *testing.T) {
	payload := []byte("d8:announce0:e")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := NewBlackholeDownloader(dir, zerolog.Nop())

	rel := &types.Release{
		Title:       "Test.Show.S01E01.1080p.WEB-DL.x264-GRP",
		DownloadURL: server.URL + "/release.torrent",
		Protocol:    types.ProtocolTorrent,
	}

	_, err := downloader.Push(context.Background(), rel)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".torrent", filepath.Ext(entries[0].Name()))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestBlackholeRejectsFailedFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	downloader := NewBlackholeDownloader(t.TempDir(), zerolog.Nop())
	rel := &types.Release{
		Title:       "Gone.Release",
		DownloadURL: server.URL + "/missing.torrent",
		Protocol:    types.ProtocolTorrent,
	}

	_, err := downloader.Push(context.Background(), rel)
	assert.Error(t, err)
}

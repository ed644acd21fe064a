package history

import (
	"context"
	"testing"

	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/testutil"
)

func TestRecordAndListGrabs(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.DB, tdb.Logger)
	ctx := context.Background()

	first := &types.Release{
		Title:           "Test.Movie.2024.1080p.BluRay.x264-GRP",
		IndexerID:       2,
		IndexerName:     "Indexer Two",
		Protocol:        types.ProtocolTorrent,
		InfoHash:        "abc123",
		Size:            8_000_000_000,
		TotalScore:      300,
		NormalizedScore: 400,
	}
	if err := service.RecordGrab(ctx, first, scoring.MediaKindMovie, nil); err != nil {
		t.Fatalf("RecordGrab failed: %v", err)
	}

	second := &types.Release{
		Title:    "Test.Show.S01.1080p.WEB-DL.x264-GRP",
		Protocol: types.ProtocolTorrent,
		Size:     20_000_000_000,
	}
	if err := service.RecordGrab(ctx, second, scoring.MediaKindEpisode, []int64{101, 102, 103}); err != nil {
		t.Fatalf("RecordGrab failed: %v", err)
	}

	entries, err := service.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Newest first.
	if entries[0].ReleaseTitle != second.Title {
		t.Errorf("Expected newest entry first, got %s", entries[0].ReleaseTitle)
	}
	if len(entries[0].EpisodeIDs) != 3 {
		t.Errorf("Expected 3 covered episodes, got %d", len(entries[0].EpisodeIDs))
	}
	if entries[1].IndexerName != "Indexer Two" {
		t.Errorf("Expected indexer name to round-trip, got %q", entries[1].IndexerName)
	}
	if entries[1].TotalScore != 300 {
		t.Errorf("Expected total score 300, got %f", entries[1].TotalScore)
	}
	if entries[1].MediaKind != string(scoring.MediaKindMovie) {
		t.Errorf("Expected movie media kind, got %q", entries[1].MediaKind)
	}
}

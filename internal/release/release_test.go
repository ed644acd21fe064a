package release

import (
	"strings"
	"testing"
)

func TestParseMovie(t *testing.T) {
	attrs := Parse("Test.Movie.2024.1080p.BluRay.x264-GRP")

	if !attrs.IsMovie {
		t.Error("Expected a movie release")
	}
	if attrs.IsTV {
		t.Error("Expected not TV")
	}
	if attrs.Year != 2024 {
		t.Errorf("Expected year 2024, got %d", attrs.Year)
	}
	if attrs.Resolution != "1080p" {
		t.Errorf("Expected 1080p, got %q", attrs.Resolution)
	}
	if !strings.EqualFold(attrs.Source, "BluRay") {
		t.Errorf("Expected BluRay source, got %q", attrs.Source)
	}
	if attrs.IsSeasonPack {
		t.Error("Expected no season pack for a movie")
	}
}

func TestParseEpisode(t *testing.T) {
	attrs := Parse("Test.Show.S01E05.720p.HDTV.x264-GRP")

	if !attrs.IsTV {
		t.Error("Expected a TV release")
	}
	if attrs.Season != 1 {
		t.Errorf("Expected season 1, got %d", attrs.Season)
	}
	if attrs.Episode != 5 {
		t.Errorf("Expected episode 5, got %d", attrs.Episode)
	}
	if attrs.IsSeasonPack {
		t.Error("Expected a single episode, not a pack")
	}
}

func TestParseSeasonPack(t *testing.T) {
	attrs := Parse("Test.Show.S02.1080p.WEB-DL.x264-GRP")

	if !attrs.IsSeasonPack {
		t.Error("Expected a season pack")
	}
	if !attrs.CoversSeason(2) {
		t.Error("Expected pack to cover season 2")
	}
	if attrs.CoversSeason(3) {
		t.Error("Expected pack not to cover season 3")
	}
}

func TestParseMultiSeasonRange(t *testing.T) {
	attrs := Parse("Test.Show.S01-S03.1080p.WEB-DL.x264-GRP")

	if !attrs.IsSeasonPack {
		t.Error("Expected a multi-season pack")
	}
	for season := 1; season <= 3; season++ {
		if !attrs.CoversSeason(season) {
			t.Errorf("Expected pack to cover season %d", season)
		}
	}
	if attrs.CoversSeason(4) {
		t.Error("Expected pack not to cover season 4")
	}
}

func TestParseCompleteSeries(t *testing.T) {
	attrs := Parse("Test.Show.Complete.Series.1080p.WEB-DL.x264-GRP")

	if !attrs.IsCompleteSeries {
		t.Error("Expected a complete-series release")
	}
	if !attrs.IsSeasonPack {
		t.Error("Expected complete series to count as a pack")
	}
	// No explicit season markers: covers everything, but the pack still
	// carries a season number.
	if !attrs.CoversSeason(1) || !attrs.CoversSeason(7) {
		t.Error("Expected complete series to cover any season")
	}
	if len(attrs.Seasons) == 0 {
		t.Error("Expected a season pack to carry at least one season number")
	}
	if attrs.Season == 0 {
		t.Error("Expected a season pack to carry a season")
	}
}

func TestParseFlags(t *testing.T) {
	attrs := Parse("Test.Movie.2024.1080p.BluRay.REMUX.AVC.REPACK-GRP")

	if !attrs.IsRemux {
		t.Error("Expected remux flag")
	}
	if !attrs.IsRepack {
		t.Error("Expected repack flag")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Test.Movie (2024) [1080p]", "test movie 2024 1080p"},
		{"  Spaced   Out  ", "spaced out"},
		{"UPPER-case_title", "upper case title"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, got, tt.want)
		}
	}
}

// Package release is the boundary to the release-name parser. It converts
// free-text release titles into the structured attributes the scoring and
// decisioning layers consume.
package release

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"
)

// Attributes holds the parsed facts of a single release name.
type Attributes struct {
	Title      string   `json:"title"`
	CleanTitle string   `json:"cleanTitle"`
	Year       int      `json:"year,omitempty"`
	Resolution string   `json:"resolution,omitempty"` // "720p", "1080p", "2160p"
	Source     string   `json:"source,omitempty"`     // "BluRay", "WEB-DL", "HDTV"
	Codec      string   `json:"codec,omitempty"`
	HDR        string   `json:"hdr,omitempty"`
	Audio      string   `json:"audio,omitempty"`
	Group      string   `json:"group,omitempty"`
	Languages  []string `json:"languages,omitempty"`

	IsRemux  bool `json:"isRemux,omitempty"`
	IsRepack bool `json:"isRepack,omitempty"`
	IsProper bool `json:"isProper,omitempty"`
	Is3D     bool `json:"is3d,omitempty"`

	// Episode shape
	Season           int   `json:"season,omitempty"`
	Seasons          []int `json:"seasons,omitempty"` // all seasons a pack spans
	Episode          int   `json:"episode,omitempty"`
	IsSeasonPack     bool  `json:"isSeasonPack,omitempty"`
	IsCompleteSeries bool  `json:"isCompleteSeries,omitempty"`

	IsTV    bool `json:"isTv,omitempty"`
	IsMovie bool `json:"isMovie,omitempty"`
}

var (
	seasonRangeRe    = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*[-~]\s*S?(\d{1,2})\b`)
	completeSeriesRe = regexp.MustCompile(`(?i)\b(complete\s+(series|collection)|collection\s+complete)\b`)
	nonAlnumRe       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parse extracts structured attributes from a release title.
func Parse(title string) *Attributes {
	r := rls.ParseString(title)

	attrs := &Attributes{
		Title:      title,
		CleanTitle: Normalize(r.Title),
		Year:       r.Year,
		Resolution: r.Resolution,
		Source:     r.Source,
		Group:      r.Group,
		Season:     r.Series,
		Episode:    r.Episode,
	}

	if len(r.Codec) > 0 {
		attrs.Codec = r.Codec[0]
	}
	if len(r.HDR) > 0 {
		attrs.HDR = r.HDR[0]
	}
	if len(r.Audio) > 0 {
		attrs.Audio = r.Audio[0]
	}
	for _, lang := range r.Language {
		attrs.Languages = append(attrs.Languages, strings.ToLower(lang))
	}

	for _, tag := range r.Other {
		switch strings.ToUpper(tag) {
		case "REMUX":
			attrs.IsRemux = true
		case "REPACK", "REPACK2", "REPACK3", "RERIP":
			attrs.IsRepack = true
		case "PROPER":
			attrs.IsProper = true
		case "3D":
			attrs.Is3D = true
		}
	}
	if strings.EqualFold(r.Source, "Remux") {
		attrs.IsRemux = true
	}

	switch r.Type {
	case rls.Movie:
		attrs.IsMovie = true
	case rls.Series, rls.Episode:
		attrs.IsTV = true
	}
	if r.Series > 0 || r.Episode > 0 {
		attrs.IsTV = true
	}

	// A season marker with no episode number is a season pack.
	if attrs.IsTV && r.Series > 0 && r.Episode == 0 {
		attrs.IsSeasonPack = true
		attrs.Seasons = []int{r.Series}
	}

	// Multi-season ranges (S01-S04) span several seasons.
	if m := seasonRangeRe.FindStringSubmatch(title); m != nil {
		start, end := atoi(m[1]), atoi(m[2])
		if end > start {
			attrs.IsTV = true
			attrs.IsSeasonPack = true
			attrs.Season = start
			attrs.Seasons = attrs.Seasons[:0]
			for s := start; s <= end; s++ {
				attrs.Seasons = append(attrs.Seasons, s)
			}
		}
	}

	if completeSeriesRe.MatchString(title) {
		attrs.IsTV = true
		attrs.IsCompleteSeries = true
		attrs.IsSeasonPack = true
		// A pack always carries at least one season number. A complete
		// series with no markers spans at least season one; CoversSeason
		// extends coverage to the rest.
		if attrs.Season == 0 {
			attrs.Season = 1
		}
		if len(attrs.Seasons) == 0 {
			attrs.Seasons = []int{attrs.Season}
		}
	}

	return attrs
}

// CoversSeason reports whether the release covers the given season number.
// A complete-series pack covers every season.
func (a *Attributes) CoversSeason(season int) bool {
	if a.IsCompleteSeries {
		return true
	}
	for _, s := range a.Seasons {
		if s == season {
			return true
		}
	}
	return a.Season == season
}

// Normalize reduces a title to a lowercase alphanumeric signature, used for
// duplicate detection and blocklist matching.
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

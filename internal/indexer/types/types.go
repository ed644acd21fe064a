// Package types contains shared type definitions for indexer packages.
package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/fetcharr/fetcharr/internal/release"
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent   Protocol = "torrent"
	ProtocolUsenet    Protocol = "usenet"
	ProtocolStreaming Protocol = "streaming"
)

// SearchType tags what kind of media a search targets.
type SearchType string

const (
	SearchTypeBasic SearchType = "basic"
	SearchTypeMovie SearchType = "movie"
	SearchTypeTV    SearchType = "tv"
	SearchTypeMusic SearchType = "music"
	SearchTypeBook  SearchType = "book"
)

// IndexerDefinition represents a configured indexer.
type IndexerDefinition struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Protocol       Protocol `json:"protocol"`
	Priority       int      `json:"priority"` // 1-100, lower is better
	Enabled        bool     `json:"enabled"`
	SupportsMovies bool     `json:"supportsMovies"`
	SupportsTV     bool     `json:"supportsTV"`
	SupportsSearch bool     `json:"supportsSearch"`
}

// SearchCriteria defines search parameters. Constructed once per search and
// not mutated afterwards.
type SearchCriteria struct {
	SearchType SearchType `json:"searchType"`
	Query      string     `json:"query,omitempty"`

	// External IDs
	ImdbID string `json:"imdbId,omitempty"`
	TmdbID int    `json:"tmdbId,omitempty"`
	TvdbID int    `json:"tvdbId,omitempty"`

	// TV-specific. Season set with Episode zero signals a season pack search.
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`

	Categories []int   `json:"categories,omitempty"`
	IndexerIDs []int64 `json:"indexerIds,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// IsSeasonPackSearch reports whether the criteria target a whole season.
func (c SearchCriteria) IsSeasonPackSearch() bool {
	return c.SearchType == SearchTypeTV && c.Season > 0 && c.Episode == 0
}

// Release represents a single candidate offered by an indexer.
type Release struct {
	GUID        string    `json:"guid,omitempty"`
	Title       string    `json:"title"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	MagnetURL   string    `json:"magnetUrl,omitempty"`
	InfoHash    string    `json:"infoHash,omitempty"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publishDate,omitzero"`
	Categories  []int     `json:"categories,omitempty"`
	Seeders     int       `json:"seeders,omitempty"`

	IndexerID   int64    `json:"indexerId"`
	IndexerName string   `json:"indexer"`
	Protocol    Protocol `json:"protocol"`

	// Populated by enrichment
	Attributes      *release.Attributes `json:"attributes,omitempty"`
	TotalScore      float64             `json:"totalScore,omitempty"`
	NormalizedScore int                 `json:"normalizedScore,omitempty"`
}

// DedupKey returns the identity used for duplicate detection: the info hash
// when present, otherwise a normalized (title, size) signature.
func (r *Release) DedupKey() string {
	if r.InfoHash != "" {
		return "hash:" + strings.ToLower(strings.TrimSpace(r.InfoHash))
	}
	return "sig:" + release.Normalize(r.Title) + "|" + strconv.FormatInt(r.Size, 10)
}

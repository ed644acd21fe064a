package autosearch

import (
	"github.com/fetcharr/fetcharr/internal/decisioning"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// SearchSource identifies what triggered a search.
type SearchSource string

const (
	SourceManual    SearchSource = "manual"
	SourceScheduled SearchSource = "scheduled"
)

// SearchResult is the outcome of one automatic search-and-grab.
type SearchResult struct {
	Found      bool           `json:"found"`
	Downloaded bool           `json:"downloaded"`
	Release    *types.Release `json:"release,omitempty"`
	// EpisodeIDs lists the episodes the grabbed release covers.
	EpisodeIDs []int64 `json:"episodeIds,omitempty"`
	// WasPackGrab marks a grab satisfied by a season pack rather than a
	// single-episode release; PackSeason names the season the pack spans.
	WasPackGrab bool `json:"wasPackGrab,omitempty"`
	PackSeason  int  `json:"packSeason,omitempty"`
	// Rejections counts candidates the decision chain turned down, by
	// reason.
	Rejections map[decisioning.Reason]int `json:"rejections,omitempty"`
	// GrabFailures counts accepted candidates whose grab failed before one
	// succeeded.
	GrabFailures int    `json:"grabFailures,omitempty"`
	Upgraded     bool   `json:"upgraded,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SeasonPackGrab identifies one grabbed season pack and the episodes it
// covers.
type SeasonPackGrab struct {
	Season     int     `json:"season"`
	Title      string  `json:"title"`
	EpisodeIDs []int64 `json:"episodeIds"`
}

// BatchSearchResult aggregates the outcomes of a multi-item search run.
type BatchSearchResult struct {
	TotalSearched int             `json:"totalSearched"`
	Found         int             `json:"found"`
	Downloaded    int             `json:"downloaded"`
	Failed        int             `json:"failed"`
	Results       []*SearchResult `json:"results"`
}

// CascadingSearchResult reports a season-aware series search: how many
// seasons were handled by packs and how many episodes fell through to
// individual searches.
type CascadingSearchResult struct {
	SeasonsSearched int `json:"seasonsSearched"`
	PackGrabs       int `json:"packGrabs"`
	EpisodeGrabs    int `json:"episodeGrabs"`
	// EpisodesCovered is the total number of distinct episodes satisfied by
	// all grabs of the run.
	EpisodesCovered int  `json:"episodesCovered"`
	Failed          int  `json:"failed"`
	Cancelled       bool `json:"cancelled,omitempty"`

	// GrabbedEpisodeIDs is the union of episodes satisfied by the run's
	// grabs; each id appears in exactly one result record.
	GrabbedEpisodeIDs []int64 `json:"grabbedEpisodeIds,omitempty"`
	// SeasonPacks lists every pack grabbed during the run, whichever pass
	// found it.
	SeasonPacks []SeasonPackGrab `json:"seasonPacks,omitempty"`

	Results []*SearchResult `json:"results"`
}

// Package decisioning decides whether a candidate release may be grabbed for
// a wanted media item. Every rule is a specification that returns a typed
// decision; rejection is ordinary data, never an error.
package decisioning

import (
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
)

// MediaType represents the type of media being searched.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
	MediaTypeSeason  MediaType = "season"
	MediaTypeSeries  MediaType = "series"
)

// Target describes the wanted item a candidate is judged against.
type Target struct {
	MediaType MediaType `json:"mediaType"`
	MediaID   int64     `json:"mediaId"`
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`

	// TV-specific fields
	SeriesID      int64 `json:"seriesId,omitempty"`
	SeasonNumber  int   `json:"seasonNumber,omitempty"`
	EpisodeNumber int   `json:"episodeNumber,omitempty"`

	// Profile is the scoring policy for this item. Nil means no profile
	// could be resolved; specifications reject rather than guess.
	Profile *scoring.Profile `json:"-"`

	// Existing file state for upgrade decisions.
	HasFile              bool   `json:"hasFile"`
	ExistingReleaseTitle string `json:"existingReleaseTitle,omitempty"`

	// PackItems lists the per-episode file state a season pack candidate
	// would cover. Empty for single-item targets.
	PackItems []scoring.PackItem `json:"-"`

	// EpisodeCount is the number of episodes in the targeted season, used
	// to judge pack sizes per episode. Zero means unknown.
	EpisodeCount int `json:"episodeCount,omitempty"`
}

// Reason classifies why a candidate was rejected.
type Reason string

const (
	ReasonBlocklisted      Reason = "blocklisted"
	ReasonBanned           Reason = "banned"
	ReasonSizeRejected     Reason = "sizeRejected"
	ReasonBelowMinScore    Reason = "belowMinScore"
	ReasonNotAnUpgrade     Reason = "notAnUpgrade"
	ReasonUpgradesDisabled Reason = "upgradesDisabled"
	ReasonNoProfile        Reason = "noProfile"
)

// Decision is the outcome of one specification, or of the whole chain.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Accept returns an accepting decision.
func Accept() Decision {
	return Decision{Accepted: true}
}

// Reject returns a rejecting decision with a typed reason.
func Reject(reason Reason, detail string) Decision {
	return Decision{Accepted: false, Reason: reason, Detail: detail}
}

// mediaKind maps a target's media type onto the scoring size-limit kind.
func (t *Target) mediaKind() scoring.MediaKind {
	if t.MediaType == MediaTypeMovie {
		return scoring.MediaKindMovie
	}
	return scoring.MediaKindEpisode
}

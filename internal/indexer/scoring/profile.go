// Package scoring computes desirability scores for releases against a
// scoring profile, and decides whether one release is an upgrade over
// another. All scoring is pure: no I/O, no clock, identical output for
// identical input.
package scoring

import (
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// BanScore is the sentinel format score marking an absolute ban. A release
// matching any format mapped to BanScore scores -Inf regardless of its other
// matches.
const BanScore = -1000000

// ResolutionBonusStep is the per-position bonus derived from a profile's
// resolution preference order.
const ResolutionBonusStep = 25

// MediaKind identifies the unit a size limit applies to.
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindEpisode MediaKind = "episode"
)

// SizeLimit bounds the acceptable size per unit, in megabytes. Zero means
// unbounded on that side.
type SizeLimit struct {
	MinMB int64 `json:"minMB,omitempty"`
	MaxMB int64 `json:"maxMB,omitempty"`
}

// Profile is an immutable scoring policy snapshot. The engine never mutates
// a profile after load.
type Profile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// FormatScores maps release attribute formats (resolutions, sources,
	// codecs, HDR kinds, audio kinds, flags, groups) to integer scores.
	// A score of BanScore is an absolute ban.
	FormatScores map[string]int `json:"formatScores"`

	// ResolutionOrder ranks resolutions most preferred first.
	ResolutionOrder []string `json:"resolutionOrder"`

	MinScore int `json:"minScore"`

	// UpgradeUntilScore is the cutoff above which upgrade *searches* stop
	// being scheduled. It never rejects a found release.
	UpgradeUntilScore int `json:"upgradeUntilScore"`

	MinScoreIncrement int  `json:"minScoreIncrement"`
	UpgradesAllowed   bool `json:"upgradesAllowed"`

	SizeLimits map[MediaKind]SizeLimit `json:"sizeLimits,omitempty"`

	// AllowedProtocols filters indexer eligibility. Empty allows all.
	AllowedProtocols []types.Protocol `json:"allowedProtocols,omitempty"`
}

// AllowsProtocol reports whether the profile permits releases from the given
// protocol. An empty list allows everything.
func (p *Profile) AllowsProtocol(proto types.Protocol) bool {
	if len(p.AllowedProtocols) == 0 {
		return true
	}
	for _, allowed := range p.AllowedProtocols {
		if allowed == proto {
			return true
		}
	}
	return false
}

// resolutionBonus returns the preference bonus for a resolution based on its
// position in the profile's resolution order. Most preferred earns
// len(order)*ResolutionBonusStep, descending by position; unknown earns 0.
func (p *Profile) resolutionBonus(resolution string) float64 {
	if resolution == "" {
		return 0
	}
	target := NormalizeFormat(resolution)
	for i, res := range p.ResolutionOrder {
		if NormalizeFormat(res) == target {
			return float64((len(p.ResolutionOrder) - i) * ResolutionBonusStep)
		}
	}
	return 0
}

// NormalizeFormat canonicalizes a format name for matching: lowercase with
// separator characters removed, so "WEB-DL", "WEBDL" and "web dl" compare
// equal.
func NormalizeFormat(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DefaultProfile returns the built-in profile used when an item carries no
// profile reference.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "Default",
		FormatScores: map[string]int{
			"2160p":  400,
			"1080p":  300,
			"720p":   150,
			"480p":   -50,
			"remux":  120,
			"bluray": 100,
			"webdl":  80,
			"webrip": 40,
			"hdtv":   20,
			"x265":   30,
			"x264":   20,
			"cam":    BanScore,
		},
		ResolutionOrder:   []string{"2160p", "1080p", "720p", "480p"},
		MinScore:          0,
		UpgradeUntilScore: 500,
		MinScoreIncrement: 20,
		UpgradesAllowed:   true,
		SizeLimits: map[MediaKind]SizeLimit{
			MediaKindMovie:   {MinMB: 500, MaxMB: 80_000},
			MediaKindEpisode: {MinMB: 100, MaxMB: 20_000},
		},
	}
}

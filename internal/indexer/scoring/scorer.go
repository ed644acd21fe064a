package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/fetcharr/fetcharr/internal/release"
)

// SizeContext tells the scorer how to interpret a release's size: what kind
// of unit it contains and how many (a season pack spans several episodes).
type SizeContext struct {
	MediaKind MediaKind
	// UnitCount is the number of units the size spans. Zero is treated as 1.
	UnitCount int
}

// ScoringResult is the outcome of scoring one release against a profile.
type ScoringResult struct {
	// TotalScore is the signed raw score. math.Inf(-1) represents an
	// absolute ban.
	TotalScore     float64  `json:"totalScore"`
	MatchedFormats []string `json:"matchedFormats,omitempty"`

	IsBanned      bool     `json:"isBanned,omitempty"`
	BannedReasons []string `json:"bannedReasons,omitempty"`

	SizeRejected     bool   `json:"sizeRejected,omitempty"`
	SizeRejectReason string `json:"sizeRejectReason,omitempty"`

	// MeetsMinimum is true when TotalScore >= profile.MinScore. Always
	// false when banned.
	MeetsMinimum bool `json:"meetsMinimum"`
}

// ScoreRelease scores a release title against a profile. attrs may be nil,
// in which case the title is parsed. The size gate runs independently of the
// score whenever sizeBytes and sizeCtx are supplied.
func ScoreRelease(title string, profile *Profile, attrs *release.Attributes, sizeBytes int64, sizeCtx *SizeContext) ScoringResult {
	if attrs == nil {
		attrs = release.Parse(title)
	}

	result := ScoringResult{}
	tokens := attributeTokens(attrs)

	var total float64
	for format, score := range profile.FormatScores {
		if _, ok := tokens[NormalizeFormat(format)]; !ok {
			continue
		}
		result.MatchedFormats = append(result.MatchedFormats, format)
		if score == BanScore {
			result.IsBanned = true
			result.BannedReasons = append(result.BannedReasons, fmt.Sprintf("format %q is banned", format))
			continue
		}
		total += float64(score)
	}
	// Map iteration order is random; keep output deterministic.
	sort.Strings(result.MatchedFormats)
	sort.Strings(result.BannedReasons)

	total += profile.resolutionBonus(attrs.Resolution)

	if result.IsBanned {
		result.TotalScore = math.Inf(-1)
	} else {
		result.TotalScore = total
	}

	// The size gate is evaluated regardless of the score value.
	if sizeBytes > 0 && sizeCtx != nil {
		checkSize(&result, profile, sizeBytes, sizeCtx)
	}

	result.MeetsMinimum = !result.IsBanned && result.TotalScore >= float64(profile.MinScore)

	return result
}

// checkSize applies the profile's per-unit size limits for the media kind.
func checkSize(result *ScoringResult, profile *Profile, sizeBytes int64, sizeCtx *SizeContext) {
	limit, ok := profile.SizeLimits[sizeCtx.MediaKind]
	if !ok {
		return
	}

	units := sizeCtx.UnitCount
	if units < 1 {
		units = 1
	}
	perUnitMB := sizeBytes / int64(units) / (1024 * 1024)

	switch {
	case limit.MinMB > 0 && perUnitMB < limit.MinMB:
		result.SizeRejected = true
		result.SizeRejectReason = fmt.Sprintf("%d MB per %s is below the minimum of %d MB", perUnitMB, sizeCtx.MediaKind, limit.MinMB)
	case limit.MaxMB > 0 && perUnitMB > limit.MaxMB:
		result.SizeRejected = true
		result.SizeRejectReason = fmt.Sprintf("%d MB per %s exceeds the maximum of %d MB", perUnitMB, sizeCtx.MediaKind, limit.MaxMB)
	}
}

// attributeTokens collects the normalized format tokens a release exposes.
func attributeTokens(attrs *release.Attributes) map[string]struct{} {
	tokens := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		tokens[NormalizeFormat(s)] = struct{}{}
	}

	add(attrs.Resolution)
	add(attrs.Source)
	add(attrs.Codec)
	add(attrs.HDR)
	add(attrs.Audio)
	add(attrs.Group)
	for _, lang := range attrs.Languages {
		add(lang)
	}
	if attrs.IsRemux {
		add("remux")
	}
	if attrs.IsRepack {
		add("repack")
	}
	if attrs.IsProper {
		add("proper")
	}
	if attrs.Is3D {
		add("3d")
	}

	return tokens
}

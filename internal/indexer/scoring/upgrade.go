package scoring

import (
	"math"

	"github.com/fetcharr/fetcharr/internal/release"
)

// UpgradeOptions tunes an upgrade comparison.
type UpgradeOptions struct {
	// MinimumImprovement is the smallest raw-score delta that counts as an
	// upgrade. Zero falls back to the profile's MinScoreIncrement.
	MinimumImprovement int

	// AllowSidegrade accepts a candidate whose delta is non-negative but
	// below the minimum increment. Negative deltas are never accepted.
	AllowSidegrade bool

	// SizeBytes and SizeContext feed the candidate's size gate.
	SizeBytes   int64
	SizeContext *SizeContext
}

// UpgradeComparison is the outcome of comparing a candidate release against
// an existing file.
type UpgradeComparison struct {
	IsUpgrade      bool          `json:"isUpgrade"`
	Improvement    float64       `json:"improvement"`
	ExistingScore  ScoringResult `json:"existingScore"`
	CandidateScore ScoringResult `json:"candidateScore"`
}

// IsUpgrade scores both sides with the same profile and applies the strict
// improvement rule: the delta must be positive and at least the minimum
// increment. The profile's UpgradeUntilScore is deliberately not applied
// here; it only governs whether upgrade searches are scheduled upstream.
func IsUpgrade(existingTitle, candidateTitle string, existingAttrs, candidateAttrs *release.Attributes, profile *Profile, opts UpgradeOptions) UpgradeComparison {
	cmp := UpgradeComparison{
		ExistingScore:  ScoreRelease(existingTitle, profile, existingAttrs, 0, nil),
		CandidateScore: ScoreRelease(candidateTitle, profile, candidateAttrs, opts.SizeBytes, opts.SizeContext),
	}

	cmp.Improvement = cmp.CandidateScore.TotalScore - cmp.ExistingScore.TotalScore
	if math.IsNaN(cmp.Improvement) {
		// Both sides banned: -Inf minus -Inf. Never an upgrade.
		cmp.Improvement = 0
		return cmp
	}

	if cmp.CandidateScore.IsBanned || cmp.CandidateScore.SizeRejected {
		return cmp
	}

	minImprovement := opts.MinimumImprovement
	if minImprovement == 0 {
		minImprovement = profile.MinScoreIncrement
	}

	switch {
	case cmp.Improvement > 0 && cmp.Improvement >= float64(minImprovement):
		cmp.IsUpgrade = true
	case cmp.Improvement >= 0 && opts.AllowSidegrade:
		cmp.IsUpgrade = true
	}

	return cmp
}

// PackItem is one existing item covered by a multi-item candidate.
type PackItem struct {
	// Title is the existing file's release title. Empty when HasFile is
	// false.
	Title      string
	Attributes *release.Attributes
	HasFile    bool
}

// PackComparison is the outcome of the majority-benefit rule for a candidate
// covering several existing items.
type PackComparison struct {
	Accepted   bool `json:"accepted"`
	Beneficial int  `json:"beneficial"` // upgraded items plus items with no file
	Downgraded int  `json:"downgraded"`
	Unchanged  int  `json:"unchanged"`

	CandidateScore ScoringResult `json:"candidateScore"`
}

// IsPackUpgrade applies the majority-benefit rule: a pack is accepted only
// when the count of covered items that benefit exceeds the count that would
// be downgraded. Items with no existing file always count as beneficial.
func IsPackUpgrade(items []PackItem, candidateTitle string, candidateAttrs *release.Attributes, profile *Profile, opts UpgradeOptions) PackComparison {
	result := PackComparison{
		CandidateScore: ScoreRelease(candidateTitle, profile, candidateAttrs, opts.SizeBytes, opts.SizeContext),
	}

	if result.CandidateScore.IsBanned || result.CandidateScore.SizeRejected {
		return result
	}

	minImprovement := opts.MinimumImprovement
	if minImprovement == 0 {
		minImprovement = profile.MinScoreIncrement
	}

	for _, item := range items {
		if !item.HasFile {
			result.Beneficial++
			continue
		}

		existing := ScoreRelease(item.Title, profile, item.Attributes, 0, nil)
		improvement := result.CandidateScore.TotalScore - existing.TotalScore

		switch {
		case improvement > 0 && improvement >= float64(minImprovement):
			result.Beneficial++
		case improvement < 0:
			result.Downgraded++
		default:
			result.Unchanged++
		}
	}

	result.Accepted = result.Beneficial > result.Downgraded && result.Beneficial > 0
	return result
}

package decisioning

import (
	"context"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// BlocklistChecker reports whether a release has been blocklisted.
type BlocklistChecker interface {
	IsBlocklisted(ctx context.Context, infoHash, title string) (bool, error)
}

// BlocklistedSpec rejects releases present on the blocklist. A lookup error
// fails open: a broken blocklist must not stall acquisition.
type BlocklistedSpec struct {
	Blocklist BlocklistChecker
}

func (s *BlocklistedSpec) Name() string { return "blocklisted" }

func (s *BlocklistedSpec) IsSatisfied(ctx context.Context, _ *Target, candidate *types.Release) Decision {
	if s.Blocklist == nil {
		return Accept()
	}
	blocked, err := s.Blocklist.IsBlocklisted(ctx, candidate.InfoHash, candidate.Title)
	if err != nil {
		return Accept()
	}
	if blocked {
		return Reject(ReasonBlocklisted, "release is on the blocklist")
	}
	return Accept()
}

// NotBannedSpec rejects releases matching a banned format.
type NotBannedSpec struct{}

func (s *NotBannedSpec) Name() string { return "notBanned" }

func (s *NotBannedSpec) IsSatisfied(_ context.Context, target *Target, candidate *types.Release) Decision {
	if target.Profile == nil {
		return Reject(ReasonNoProfile, "no scoring profile resolved for item")
	}
	scored := scoring.ScoreRelease(candidate.Title, target.Profile, candidate.Attributes, 0, nil)
	if scored.IsBanned {
		detail := "release matches a banned format"
		if len(scored.BannedReasons) > 0 {
			detail = scored.BannedReasons[0]
		}
		return Reject(ReasonBanned, detail)
	}
	return Accept()
}

// SizeAcceptableSpec rejects releases outside the profile's size limits for
// the targeted media kind.
type SizeAcceptableSpec struct{}

func (s *SizeAcceptableSpec) Name() string { return "sizeAcceptable" }

func (s *SizeAcceptableSpec) IsSatisfied(_ context.Context, target *Target, candidate *types.Release) Decision {
	if target.Profile == nil {
		return Reject(ReasonNoProfile, "no scoring profile resolved for item")
	}
	if candidate.Size <= 0 {
		return Accept()
	}

	sizeCtx := &scoring.SizeContext{MediaKind: target.mediaKind()}
	if target.MediaType == MediaTypeSeason {
		if target.EpisodeCount <= 0 {
			// Unknown span: a per-episode limit cannot be applied fairly.
			return Accept()
		}
		sizeCtx.UnitCount = target.EpisodeCount
	}

	scored := scoring.ScoreRelease(candidate.Title, target.Profile, candidate.Attributes, candidate.Size, sizeCtx)
	if scored.SizeRejected {
		return Reject(ReasonSizeRejected, scored.SizeRejectReason)
	}
	return Accept()
}

// MinScoreSpec rejects releases scoring below the profile's minimum.
type MinScoreSpec struct{}

func (s *MinScoreSpec) Name() string { return "minScore" }

func (s *MinScoreSpec) IsSatisfied(_ context.Context, target *Target, candidate *types.Release) Decision {
	if target.Profile == nil {
		return Reject(ReasonNoProfile, "no scoring profile resolved for item")
	}
	scored := scoring.ScoreRelease(candidate.Title, target.Profile, candidate.Attributes, 0, nil)
	if !scored.MeetsMinimum {
		return Reject(ReasonBelowMinScore,
			fmt.Sprintf("score %.0f is below the profile minimum of %d", scored.TotalScore, target.Profile.MinScore))
	}
	return Accept()
}

// UpgradeableSpec rejects candidates that would not improve on the existing
// file. Items without a file always pass. Season packs use the
// majority-benefit rule across the episodes they cover.
type UpgradeableSpec struct{}

func (s *UpgradeableSpec) Name() string { return "upgradeable" }

func (s *UpgradeableSpec) IsSatisfied(_ context.Context, target *Target, candidate *types.Release) Decision {
	if target.Profile == nil {
		return Reject(ReasonNoProfile, "no scoring profile resolved for item")
	}

	if len(target.PackItems) > 0 {
		return s.packDecision(target, candidate)
	}

	if !target.HasFile {
		return Accept()
	}
	if !target.Profile.UpgradesAllowed {
		return Reject(ReasonUpgradesDisabled, "profile does not allow upgrades")
	}
	if target.ExistingReleaseTitle == "" {
		// File present but provenance unknown: grabbing blind risks a
		// downgrade, so require a manual decision.
		return Reject(ReasonNotAnUpgrade, "existing file has no recorded release title")
	}

	cmp := scoring.IsUpgrade(target.ExistingReleaseTitle, candidate.Title, nil, candidate.Attributes,
		target.Profile, scoring.UpgradeOptions{})
	if !cmp.IsUpgrade {
		return Reject(ReasonNotAnUpgrade,
			fmt.Sprintf("improvement %.0f does not meet the minimum increment of %d",
				cmp.Improvement, target.Profile.MinScoreIncrement))
	}
	return Accept()
}

func (s *UpgradeableSpec) packDecision(target *Target, candidate *types.Release) Decision {
	anyFile := false
	for _, item := range target.PackItems {
		if item.HasFile {
			anyFile = true
			break
		}
	}
	if anyFile && !target.Profile.UpgradesAllowed {
		return Reject(ReasonUpgradesDisabled, "profile does not allow upgrades")
	}

	result := scoring.IsPackUpgrade(target.PackItems, candidate.Title, candidate.Attributes,
		target.Profile, scoring.UpgradeOptions{})
	if !result.Accepted {
		return Reject(ReasonNotAnUpgrade,
			fmt.Sprintf("pack benefits %d episodes but downgrades %d", result.Beneficial, result.Downgraded))
	}
	return Accept()
}

package search

import (
	"sort"
	"strings"

	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/release"
)

// aggregate merges per-indexer outcomes into one scored result: dedup,
// enrich, reject, sort.
func (s *Service) aggregate(taskResults []searchTaskResult, criteria types.SearchCriteria, profile *scoring.Profile, params Params) *Result {
	// Merge in priority order so first-wins dedup keeps the release from the
	// preferred indexer.
	sort.SliceStable(taskResults, func(i, j int) bool {
		return taskResults[i].Priority < taskResults[j].Priority
	})

	var (
		merged     []types.Release
		errors     []IndexerError
		perIndexer []IndexerResult
	)
	seen := make(map[string]struct{})

	for _, task := range taskResults {
		if task.Error != nil {
			errors = append(errors, IndexerError{
				IndexerID:   task.IndexerID,
				IndexerName: task.IndexerName,
				Error:       task.Error.Error(),
			})
			continue
		}
		perIndexer = append(perIndexer, IndexerResult{
			IndexerID:   task.IndexerID,
			IndexerName: task.IndexerName,
			ResultCount: len(task.Releases),
		})

		for _, rel := range task.Releases {
			key := rel.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, rel)
		}
	}

	enriched, rejected := s.enrich(merged, criteria, profile, params)
	sortByScore(enriched)

	return &Result{
		Releases:         enriched,
		TotalResults:     len(enriched),
		RejectedCount:    rejected,
		IndexersSearched: len(perIndexer),
		IndexerResults:   perIndexer,
		IndexerErrors:    errors,
	}
}

// enrich parses and scores every release, dropping those the profile rejects
// outright (bans and size violations). Low scores survive here; minimum-score
// policy belongs to the decision layer.
func (s *Service) enrich(releases []types.Release, criteria types.SearchCriteria, profile *scoring.Profile, params Params) ([]types.Release, int) {
	kept := make([]types.Release, 0, len(releases))
	rejected := 0

	for _, rel := range releases {
		attrs := release.Parse(rel.Title)
		rel.Attributes = attrs

		scored := scoring.ScoreRelease(rel.Title, profile, attrs, rel.Size, sizeContext(criteria, attrs, params))
		rel.TotalScore = scored.TotalScore
		rel.NormalizedScore = scoring.NormalizeScore(scored.TotalScore)

		if scored.IsBanned || scored.SizeRejected {
			rejected++
			s.logger.Debug().
				Str("title", rel.Title).
				Strs("banReasons", scored.BannedReasons).
				Str("sizeReason", scored.SizeRejectReason).
				Msg("Rejected release during enrichment")
			continue
		}
		if params.MinScore > 0 && scored.TotalScore < params.MinScore {
			rejected++
			continue
		}

		kept = append(kept, rel)
	}

	return kept, rejected
}

// sizeContext derives how a release's size should be judged: movies per file,
// episodes per episode, season packs spread over their episode count when it
// is known.
func sizeContext(criteria types.SearchCriteria, attrs *release.Attributes, params Params) *scoring.SizeContext {
	switch {
	case criteria.SearchType == types.SearchTypeMovie || attrs.IsMovie && !attrs.IsTV:
		return &scoring.SizeContext{MediaKind: scoring.MediaKindMovie}
	case attrs.IsSeasonPack:
		if params.EpisodeCount <= 0 {
			// Unknown pack span: a per-episode limit cannot be applied fairly.
			return nil
		}
		return &scoring.SizeContext{MediaKind: scoring.MediaKindEpisode, UnitCount: params.EpisodeCount}
	case attrs.IsTV:
		return &scoring.SizeContext{MediaKind: scoring.MediaKindEpisode}
	default:
		return nil
	}
}

// sortByScore orders releases by raw score descending with deterministic
// tiebreaks: seeders, then title.
func sortByScore(releases []types.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		if releases[i].TotalScore != releases[j].TotalScore {
			return releases[i].TotalScore > releases[j].TotalScore
		}
		if releases[i].Seeders != releases[j].Seeders {
			return releases[i].Seeders > releases[j].Seeders
		}
		return strings.ToLower(releases[i].Title) < strings.ToLower(releases[j].Title)
	})
}

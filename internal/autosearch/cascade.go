package autosearch

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/decisioning"
	"github.com/fetcharr/fetcharr/internal/indexer/grab"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/library"
	"github.com/fetcharr/fetcharr/internal/release"
)

// cascade runs the season-aware search strategy over a set of missing
// episodes: one season-pack pass for every season missing enough of itself,
// then individual searches for whatever the packs did not cover. An episode
// grabbed once is never grabbed again within the run.
func (s *Service) cascade(ctx context.Context, series *library.Series, missing []*library.Episode, source SearchSource) (*CascadingSearchResult, error) {
	result := &CascadingSearchResult{}
	if len(missing) == 0 {
		return result, nil
	}

	searchID := uuid.NewString()
	logger := s.logger.With().Str("searchId", searchID).Int64("seriesId", series.ID).Logger()
	profile := s.profileFor(ctx, series.ProfileID)

	bySeason := make(map[int][]*library.Episode)
	var seasons []int
	for _, ep := range missing {
		if _, seen := bySeason[ep.SeasonNumber]; !seen {
			seasons = append(seasons, ep.SeasonNumber)
		}
		bySeason[ep.SeasonNumber] = append(bySeason[ep.SeasonNumber], ep)
	}
	sort.Ints(seasons)

	// Episode IDs already satisfied by a grab in this run. First writer
	// wins: once an episode is here, later passes skip it.
	grabbed := make(map[int64]struct{})

	for _, season := range seasons {
		// Cancellation is only honored between batches so an in-flight
		// grab is never abandoned halfway.
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		result.SeasonsSearched++
		seasonMissing := bySeason[season]

		if s.seasonPackEligible(ctx, logger, series.ID, season, len(seasonMissing)) {
			packResult := s.searchSeasonPack(ctx, logger, series, profile, season, seasonMissing, source)
			result.Results = append(result.Results, packResult)
			if packResult.Error != "" {
				result.Failed++
			}
			if packResult.Downloaded {
				result.PackGrabs++
				result.SeasonPacks = append(result.SeasonPacks, SeasonPackGrab{
					Season:     season,
					Title:      packResult.Release.Title,
					EpisodeIDs: packResult.EpisodeIDs,
				})
				for _, id := range packResult.EpisodeIDs {
					grabbed[id] = struct{}{}
				}
			}
			s.pause(ctx)
		}

		// Individual pass for what the pack did not cover.
		for _, ep := range seasonMissing {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}
			if _, done := grabbed[ep.ID]; done {
				continue
			}

			epResult, err := s.searchEpisodeInternal(ctx, logger, series, ep, source, grabbed)
			if err != nil {
				result.Failed++
				result.Results = append(result.Results, &SearchResult{Error: err.Error()})
				s.pause(ctx)
				continue
			}

			result.Results = append(result.Results, epResult)
			if epResult.Downloaded {
				result.EpisodeGrabs++
				if epResult.WasPackGrab {
					result.SeasonPacks = append(result.SeasonPacks, SeasonPackGrab{
						Season:     epResult.PackSeason,
						Title:      epResult.Release.Title,
						EpisodeIDs: epResult.EpisodeIDs,
					})
				}
				for _, id := range epResult.EpisodeIDs {
					grabbed[id] = struct{}{}
				}
			}
			s.recordOutcome(ctx, "episode", ep.ID, epResult)
			s.pause(ctx)
		}
	}

	result.EpisodesCovered = len(grabbed)
	result.GrabbedEpisodeIDs = make([]int64, 0, len(grabbed))
	for id := range grabbed {
		result.GrabbedEpisodeIDs = append(result.GrabbedEpisodeIDs, id)
	}
	sort.Slice(result.GrabbedEpisodeIDs, func(i, j int) bool {
		return result.GrabbedEpisodeIDs[i] < result.GrabbedEpisodeIDs[j]
	})

	logger.Info().
		Int("seasons", result.SeasonsSearched).
		Int("packGrabs", result.PackGrabs).
		Int("episodeGrabs", result.EpisodeGrabs).
		Int("episodesCovered", result.EpisodesCovered).
		Bool("cancelled", result.Cancelled).
		Msg("Cascading search completed")

	return result, nil
}

// seasonPackEligible reports whether enough of a season is missing to try a
// pack first. An unknown season size counts as fully missing.
func (s *Service) seasonPackEligible(ctx context.Context, logger zerolog.Logger, seriesID int64, season, missingCount int) bool {
	threshold := s.cfg.SeasonPackThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	total, err := s.library.SeasonEpisodeCount(ctx, seriesID, season)
	if err != nil {
		logger.Warn().Err(err).Int("season", season).Msg("Failed to count season episodes")
		return true
	}
	if total == 0 {
		return true
	}

	ratio := float64(missingCount) / float64(total)
	eligible := ratio >= threshold

	logger.Debug().
		Int("season", season).
		Int("missing", missingCount).
		Int("total", total).
		Float64("ratio", ratio).
		Bool("eligible", eligible).
		Msg("Season pack eligibility")

	return eligible
}

// searchSeasonPack looks for one release covering a whole season and grabs
// the best acceptable pack.
func (s *Service) searchSeasonPack(ctx context.Context, logger zerolog.Logger, series *library.Series, profile *scoring.Profile, season int, seasonMissing []*library.Episode, source SearchSource) *SearchResult {
	criteria := types.SearchCriteria{
		SearchType: types.SearchTypeTV,
		Query:      series.Title,
		TvdbID:     series.TvdbID,
		Season:     season,
	}

	seasonEpisodes, err := s.library.SeasonEpisodes(ctx, series.ID, season)
	if err != nil {
		return &SearchResult{Error: fmt.Sprintf("failed to load season state: %v", err)}
	}

	searchResult, err := s.searchService.SearchTV(ctx, criteria, search.Params{
		Profile:      profile,
		EpisodeCount: len(seasonEpisodes),
	})
	if err != nil {
		return &SearchResult{Error: fmt.Sprintf("season pack search failed: %v", err)}
	}

	// Only actual packs covering the target season qualify in this pass.
	candidates := filterReleases(searchResult.Releases, func(rel *types.Release) bool {
		return rel.Attributes != nil && rel.Attributes.IsSeasonPack && rel.Attributes.CoversSeason(season)
	})

	target := &decisioning.Target{
		MediaType:    decisioning.MediaTypeSeason,
		SeriesID:     series.ID,
		SeasonNumber: season,
		Title:        series.Title,
		Profile:      profile,
		PackItems:    packItems(seasonEpisodes),
		EpisodeCount: len(seasonEpisodes),
	}

	missingIDs := episodeIDs(seasonMissing)
	result := s.grabBestCandidate(ctx, logger, target, candidates, func(*types.Release) grab.Request {
		return grab.Request{
			MediaKind:    scoring.MediaKindEpisode,
			SeriesID:     series.ID,
			SeasonNumber: season,
			EpisodeIDs:   missingIDs,
			IsAutomatic:  source == SourceScheduled,
		}
	})
	if result.Downloaded {
		result.WasPackGrab = true
		result.PackSeason = season
	}
	return result
}

// searchEpisodeInternal searches for one episode. A season pack that covers
// the episode is acceptable; grabbing one expands coverage to every missing
// episode of the season not already satisfied.
func (s *Service) searchEpisodeInternal(ctx context.Context, logger zerolog.Logger, series *library.Series, episode *library.Episode, source SearchSource, alreadyGrabbed map[int64]struct{}) (*SearchResult, error) {
	profile := s.profileFor(ctx, series.ProfileID)

	criteria := types.SearchCriteria{
		SearchType: types.SearchTypeTV,
		Query:      series.Title,
		TvdbID:     series.TvdbID,
		Season:     episode.SeasonNumber,
		Episode:    episode.EpisodeNumber,
	}

	searchResult, err := s.searchService.SearchTV(ctx, criteria, search.Params{Profile: profile})
	if err != nil {
		return nil, fmt.Errorf("episode search failed: %w", err)
	}

	candidates := filterReleases(searchResult.Releases, func(rel *types.Release) bool {
		return coversEpisode(rel.Attributes, episode.SeasonNumber, episode.EpisodeNumber)
	})

	target := &decisioning.Target{
		MediaType:            decisioning.MediaTypeEpisode,
		MediaID:              episode.ID,
		SeriesID:             series.ID,
		SeasonNumber:         episode.SeasonNumber,
		EpisodeNumber:        episode.EpisodeNumber,
		Title:                series.Title,
		Profile:              profile,
		HasFile:              episode.HasFile,
		ExistingReleaseTitle: episode.ExistingReleaseTitle,
	}

	grabbedPack := false
	result := s.grabBestCandidate(ctx, logger, target, candidates, func(candidate *types.Release) grab.Request {
		req := grab.Request{
			MediaKind:    scoring.MediaKindEpisode,
			SeriesID:     series.ID,
			SeasonNumber: episode.SeasonNumber,
			EpisodeIDs:   []int64{episode.ID},
			IsAutomatic:  source == SourceScheduled,
			IsUpgrade:    episode.HasFile,
		}

		// A pack grabbed through an episode search covers the season's
		// other missing episodes too.
		grabbedPack = candidate.Attributes != nil && candidate.Attributes.IsSeasonPack
		if grabbedPack {
			if expanded := s.expandPackCoverage(ctx, series.ID, candidate.Attributes, alreadyGrabbed); len(expanded) > 0 {
				req.EpisodeIDs = expanded
			}
		}
		return req
	})
	if result.Downloaded && grabbedPack {
		result.WasPackGrab = true
		result.PackSeason = episode.SeasonNumber
	}
	return result, nil
}

// expandPackCoverage collects the missing episode IDs a pack satisfies,
// skipping episodes another grab in this run already covered.
func (s *Service) expandPackCoverage(ctx context.Context, seriesID int64, attrs *release.Attributes, alreadyGrabbed map[int64]struct{}) []int64 {
	missing, err := s.library.MissingEpisodes(ctx, seriesID)
	if err != nil {
		return nil
	}

	var ids []int64
	for _, ep := range missing {
		if !attrs.CoversSeason(ep.SeasonNumber) {
			continue
		}
		if alreadyGrabbed != nil {
			if _, done := alreadyGrabbed[ep.ID]; done {
				continue
			}
		}
		ids = append(ids, ep.ID)
	}
	return ids
}

// coversEpisode reports whether a release satisfies a specific episode:
// either the exact episode or a pack spanning its season.
func coversEpisode(attrs *release.Attributes, season, episode int) bool {
	if attrs == nil {
		return false
	}
	if attrs.IsSeasonPack {
		return attrs.CoversSeason(season)
	}
	return attrs.Season == season && attrs.Episode == episode
}

func filterReleases(releases []types.Release, keep func(*types.Release) bool) []types.Release {
	filtered := make([]types.Release, 0, len(releases))
	for i := range releases {
		if keep(&releases[i]) {
			filtered = append(filtered, releases[i])
		}
	}
	return filtered
}

func packItems(episodes []*library.Episode) []scoring.PackItem {
	items := make([]scoring.PackItem, 0, len(episodes))
	for _, ep := range episodes {
		items = append(items, scoring.PackItem{
			Title:   ep.ExistingReleaseTitle,
			HasFile: ep.HasFile,
		})
	}
	return items
}

func episodeIDs(episodes []*library.Episode) []int64 {
	ids := make([]int64, 0, len(episodes))
	for _, ep := range episodes {
		ids = append(ids, ep.ID)
	}
	return ids
}

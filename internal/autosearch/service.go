// Package autosearch finds and grabs releases for wanted library items
// automatically. TV searches cascade: season packs first where enough of a
// season is missing, individual episodes for the remainder.
package autosearch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/decisioning"
	"github.com/fetcharr/fetcharr/internal/indexer/grab"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/library"
)

var (
	ErrNoResults    = errors.New("no suitable releases found")
	ErrItemNotFound = errors.New("item not found")
)

// Searcher runs indexer searches. Implemented by the search service.
type Searcher interface {
	SearchMovies(ctx context.Context, criteria types.SearchCriteria, params search.Params) (*search.Result, error)
	SearchTV(ctx context.Context, criteria types.SearchCriteria, params search.Params) (*search.Result, error)
}

// Grabber executes grabs. Implemented by the grab service.
type Grabber interface {
	Grab(ctx context.Context, req grab.Request) (*grab.Result, error)
}

// Library reads media library acquisition state.
type Library interface {
	GetMovie(ctx context.Context, id int64) (*library.Movie, error)
	GetSeries(ctx context.Context, id int64) (*library.Series, error)
	GetEpisode(ctx context.Context, id int64) (*library.Episode, error)
	MissingMovies(ctx context.Context) ([]*library.Movie, error)
	MissingEpisodes(ctx context.Context, seriesID int64) ([]*library.Episode, error)
	AllMissingEpisodes(ctx context.Context) ([]*library.Episode, error)
	SeasonEpisodes(ctx context.Context, seriesID int64, season int) ([]*library.Episode, error)
	SeasonEpisodeCount(ctx context.Context, seriesID int64, season int) (int, error)
	UpgradableMovies(ctx context.Context) ([]*library.Movie, error)
}

// Service provides automatic release searching and grabbing.
type Service struct {
	library       Library
	searchService Searcher
	grabService   Grabber
	profiles      scoring.Store
	chain         *decisioning.Chain
	backoff       *BackoffTracker
	cfg           config.SearchConfig
	logger        zerolog.Logger

	// Track currently running searches for cancellation and overlap
	// protection.
	mu             sync.RWMutex
	activeSearches map[string]context.CancelFunc
}

// NewService creates a new automatic search service.
func NewService(
	lib Library,
	searchService Searcher,
	grabService Grabber,
	profiles scoring.Store,
	chain *decisioning.Chain,
	cfg config.SearchConfig,
	logger zerolog.Logger,
) *Service {
	return &Service{
		library:        lib,
		searchService:  searchService,
		grabService:    grabService,
		profiles:       profiles,
		chain:          chain,
		cfg:            cfg,
		logger:         logger.With().Str("component", "autosearch").Logger(),
		activeSearches: make(map[string]context.CancelFunc),
	}
}

// SetBackoffTracker sets the optional failure backoff tracker.
func (s *Service) SetBackoffTracker(backoff *BackoffTracker) {
	s.backoff = backoff
}

// SearchMovie searches for a movie and grabs the best acceptable release.
func (s *Service) SearchMovie(ctx context.Context, movieID int64, source SearchSource) (*SearchResult, error) {
	movie, err := s.library.GetMovie(ctx, movieID)
	if err != nil {
		if errors.Is(err, library.ErrMovieNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	key := fmt.Sprintf("movie:%d", movieID)
	ctx, done := s.registerSearch(ctx, key)
	defer done()

	searchID := uuid.NewString()
	logger := s.logger.With().Str("searchId", searchID).Int64("movieId", movieID).Logger()
	logger.Info().Str("title", movie.Title).Str("source", string(source)).Msg("Starting automatic movie search")

	profile := s.profileFor(ctx, movie.ProfileID)
	criteria := types.SearchCriteria{
		SearchType: types.SearchTypeMovie,
		Query:      movie.Title,
		ImdbID:     movie.ImdbID,
		TmdbID:     movie.TmdbID,
	}

	searchResult, err := s.searchService.SearchMovies(ctx, criteria, search.Params{Profile: profile})
	if err != nil {
		s.recordFailure(ctx, "movie", movieID)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	target := &decisioning.Target{
		MediaType:            decisioning.MediaTypeMovie,
		MediaID:              movie.ID,
		Title:                movie.Title,
		Year:                 movie.Year,
		Profile:              profile,
		HasFile:              movie.HasFile,
		ExistingReleaseTitle: movie.ExistingReleaseTitle,
	}

	result := s.grabBestCandidate(ctx, logger, target, searchResult.Releases, func(*types.Release) grab.Request {
		return grab.Request{
			MediaKind:   scoring.MediaKindMovie,
			MovieID:     movie.ID,
			IsAutomatic: source == SourceScheduled,
			IsUpgrade:   movie.HasFile,
		}
	})

	s.recordOutcome(ctx, "movie", movieID, result)
	return result, nil
}

// SearchEpisode searches for a single episode and grabs the best acceptable
// release. A season pack covering the episode is an acceptable candidate.
func (s *Service) SearchEpisode(ctx context.Context, episodeID int64, source SearchSource) (*SearchResult, error) {
	episode, err := s.library.GetEpisode(ctx, episodeID)
	if err != nil {
		if errors.Is(err, library.ErrEpisodeNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	series, err := s.library.GetSeries(ctx, episode.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	key := fmt.Sprintf("episode:%d", episodeID)
	ctx, done := s.registerSearch(ctx, key)
	defer done()

	searchID := uuid.NewString()
	logger := s.logger.With().Str("searchId", searchID).Int64("episodeId", episodeID).Logger()
	logger.Info().
		Str("series", series.Title).
		Int("season", episode.SeasonNumber).
		Int("episode", episode.EpisodeNumber).
		Str("source", string(source)).
		Msg("Starting automatic episode search")

	result, err := s.searchEpisodeInternal(ctx, logger, series, episode, source, nil)
	if err != nil {
		return nil, err
	}

	s.recordOutcome(ctx, "episode", episodeID, result)
	return result, nil
}

// SearchSeason runs the cascading strategy for one season.
func (s *Service) SearchSeason(ctx context.Context, seriesID int64, seasonNumber int, source SearchSource) (*CascadingSearchResult, error) {
	series, err := s.library.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, library.ErrSeriesNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	missing, err := s.library.MissingEpisodes(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get missing episodes: %w", err)
	}

	var seasonMissing []*library.Episode
	for _, ep := range missing {
		if ep.SeasonNumber == seasonNumber {
			seasonMissing = append(seasonMissing, ep)
		}
	}

	key := fmt.Sprintf("season:%d:%d", seriesID, seasonNumber)
	ctx, done := s.registerSearch(ctx, key)
	defer done()

	return s.cascade(ctx, series, seasonMissing, source)
}

// SearchSeries runs the cascading strategy across every season of a series
// with missing episodes.
func (s *Service) SearchSeries(ctx context.Context, seriesID int64, source SearchSource) (*CascadingSearchResult, error) {
	series, err := s.library.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, library.ErrSeriesNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	missing, err := s.library.MissingEpisodes(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get missing episodes: %w", err)
	}

	key := fmt.Sprintf("series:%d", seriesID)
	ctx, done := s.registerSearch(ctx, key)
	defer done()

	return s.cascade(ctx, series, missing, source)
}

// SearchEpisodes runs the cascading strategy over an explicit set of episodes,
// grouped by series. Unknown episode IDs are counted as failures; the rest of
// the batch still runs.
func (s *Service) SearchEpisodes(ctx context.Context, episodeIDs []int64, source SearchSource) (*BatchSearchResult, error) {
	result := &BatchSearchResult{}

	bySeries := make(map[int64][]*library.Episode)
	var seriesOrder []int64
	for _, id := range episodeIDs {
		episode, err := s.library.GetEpisode(ctx, id)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, &SearchResult{Error: fmt.Sprintf("episode %d: %v", id, err)})
			continue
		}
		if _, seen := bySeries[episode.SeriesID]; !seen {
			seriesOrder = append(seriesOrder, episode.SeriesID)
		}
		bySeries[episode.SeriesID] = append(bySeries[episode.SeriesID], episode)
	}

	for _, seriesID := range seriesOrder {
		if ctx.Err() != nil {
			break
		}

		series, err := s.library.GetSeries(ctx, seriesID)
		if err != nil {
			result.Failed++
			continue
		}

		cascadeResult, err := s.cascade(ctx, series, bySeries[seriesID], source)
		if err != nil {
			result.Failed++
			continue
		}
		mergeCascade(result, cascadeResult)
	}
	return result, nil
}

// SearchMissingMovies searches every monitored, released movie without a
// file. Used by the scheduler.
func (s *Service) SearchMissingMovies(ctx context.Context, source SearchSource) (*BatchSearchResult, error) {
	movies, err := s.library.MissingMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get missing movies: %w", err)
	}

	result := &BatchSearchResult{Results: make([]*SearchResult, 0, len(movies))}
	for _, movie := range movies {
		if ctx.Err() != nil {
			break
		}
		if s.shouldSkip(ctx, "movie", movie.ID) {
			continue
		}

		result.TotalSearched++
		searchResult, err := s.SearchMovie(ctx, movie.ID, source)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, &SearchResult{Error: err.Error()})
		} else {
			result.Results = append(result.Results, searchResult)
			if searchResult.Found {
				result.Found++
			}
			if searchResult.Downloaded {
				result.Downloaded++
			}
		}

		s.pause(ctx)
	}
	return result, nil
}

// SearchMovieUpgrades searches for better releases of monitored movies that
// already have a file. Movies whose existing release scores at or above the
// profile's upgrade cutoff are not searched; the cutoff only stops searches
// from being scheduled, it never rejects a found release.
func (s *Service) SearchMovieUpgrades(ctx context.Context, source SearchSource) (*BatchSearchResult, error) {
	movies, err := s.library.UpgradableMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get upgradable movies: %w", err)
	}

	result := &BatchSearchResult{Results: make([]*SearchResult, 0, len(movies))}
	for _, movie := range movies {
		if ctx.Err() != nil {
			break
		}
		if s.shouldSkip(ctx, "movie", movie.ID) {
			continue
		}

		profile := s.profileFor(ctx, movie.ProfileID)
		if !profile.UpgradesAllowed {
			continue
		}
		if profile.UpgradeUntilScore > 0 && movie.ExistingReleaseTitle != "" {
			existing := scoring.ScoreRelease(movie.ExistingReleaseTitle, profile, nil, 0, nil)
			if existing.TotalScore >= float64(profile.UpgradeUntilScore) {
				continue
			}
		}

		result.TotalSearched++
		searchResult, err := s.SearchMovie(ctx, movie.ID, source)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, &SearchResult{Error: err.Error()})
		} else {
			result.Results = append(result.Results, searchResult)
			if searchResult.Found {
				result.Found++
			}
			if searchResult.Downloaded {
				result.Downloaded++
			}
		}

		s.pause(ctx)
	}
	return result, nil
}

// SearchAllMissingEpisodes cascades through every monitored series with
// missing episodes. Used by the scheduler.
func (s *Service) SearchAllMissingEpisodes(ctx context.Context, source SearchSource) (*BatchSearchResult, error) {
	missing, err := s.library.AllMissingEpisodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get missing episodes: %w", err)
	}

	bySeries := make(map[int64][]*library.Episode)
	var seriesOrder []int64
	for _, ep := range missing {
		if _, seen := bySeries[ep.SeriesID]; !seen {
			seriesOrder = append(seriesOrder, ep.SeriesID)
		}
		bySeries[ep.SeriesID] = append(bySeries[ep.SeriesID], ep)
	}

	result := &BatchSearchResult{}
	for _, seriesID := range seriesOrder {
		if ctx.Err() != nil {
			break
		}

		series, err := s.library.GetSeries(ctx, seriesID)
		if err != nil {
			result.Failed++
			continue
		}

		cascadeResult, err := s.cascade(ctx, series, bySeries[seriesID], source)
		if err != nil {
			result.Failed++
			continue
		}
		mergeCascade(result, cascadeResult)
	}
	return result, nil
}

// mergeCascade folds one series' cascading outcome into a batch total.
func mergeCascade(batch *BatchSearchResult, cascade *CascadingSearchResult) {
	batch.TotalSearched += len(cascade.Results)
	batch.Failed += cascade.Failed
	for _, r := range cascade.Results {
		batch.Results = append(batch.Results, r)
		if r.Found {
			batch.Found++
		}
		if r.Downloaded {
			batch.Downloaded++
		}
	}
}

// CancelSearch cancels an active search for a specific key, returning true
// when a search was running.
func (s *Service) CancelSearch(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, exists := s.activeSearches[key]; exists {
		cancel()
		delete(s.activeSearches, key)
		return true
	}
	return false
}

// IsSearching reports whether a search is currently active for the key.
func (s *Service) IsSearching(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.activeSearches[key]
	return exists
}

// registerSearch tracks an active search under a key, cancelling any previous
// search for the same item.
func (s *Service) registerSearch(parent context.Context, key string) (context.Context, func()) {
	s.mu.Lock()
	if existing, ok := s.activeSearches[key]; ok {
		existing()
	}
	ctx, cancel := context.WithCancel(parent)
	s.activeSearches[key] = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		delete(s.activeSearches, key)
		s.mu.Unlock()
		cancel()
	}
}

// profileFor resolves the scoring profile for an item, falling back to the
// default profile.
func (s *Service) profileFor(ctx context.Context, profileID int64) *scoring.Profile {
	if profileID > 0 {
		profile, err := s.profiles.GetProfile(ctx, profileID)
		if err == nil {
			return profile
		}
		s.logger.Warn().Err(err).Int64("profileId", profileID).Msg("Failed to load profile, using default")
	}
	profile, err := s.profiles.GetDefaultProfile(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load default profile, using built-in")
		return scoring.DefaultProfile()
	}
	return profile
}

// grabBestCandidate walks scored candidates in order, evaluates the decision
// chain, and grabs the first acceptable one. buildReq constructs the grab
// request for the chosen candidate, since the episodes a release covers can
// depend on its shape.
func (s *Service) grabBestCandidate(ctx context.Context, logger zerolog.Logger, target *decisioning.Target, candidates []types.Release, buildReq func(candidate *types.Release) grab.Request) *SearchResult {
	result := &SearchResult{Rejections: make(map[decisioning.Reason]int)}

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		candidate := &candidates[i]

		decision := s.chain.Evaluate(ctx, target, candidate)
		if !decision.Accepted {
			result.Rejections[decision.Reason]++
			continue
		}

		result.Found = true
		result.Release = candidate

		grabReq := buildReq(candidate)
		grabReq.Release = candidate
		grabResult, err := s.grabService.Grab(ctx, grabReq)
		if err != nil {
			// A failed grab does not end the walk; the next passing
			// candidate gets its chance.
			logger.Warn().Err(err).Str("release", candidate.Title).Msg("Grab failed, trying next candidate")
			result.GrabFailures++
			result.Error = err.Error()
			continue
		}

		result.Downloaded = grabResult.Success
		result.EpisodeIDs = grabReq.EpisodeIDs
		result.Upgraded = grabReq.IsUpgrade
		result.Error = ""

		logger.Info().
			Str("release", candidate.Title).
			Float64("score", candidate.TotalScore).
			Int("normalizedScore", candidate.NormalizedScore).
			Msg("Grabbed release")
		return result
	}

	logger.Debug().
		Int("candidates", len(candidates)).
		Int("grabFailures", result.GrabFailures).
		Interface("rejections", result.Rejections).
		Msg("No release grabbed")
	return result
}

// recordOutcome updates backoff state from a search outcome.
func (s *Service) recordOutcome(ctx context.Context, itemType string, itemID int64, result *SearchResult) {
	if result != nil && result.Downloaded {
		s.recordSuccess(ctx, itemType, itemID)
		return
	}
	s.recordFailure(ctx, itemType, itemID)
}

func (s *Service) recordSuccess(ctx context.Context, itemType string, itemID int64) {
	if s.backoff == nil {
		return
	}
	if err := s.backoff.RecordSuccess(ctx, itemType, itemID); err != nil {
		s.logger.Warn().Err(err).Str("itemType", itemType).Int64("itemId", itemID).Msg("Failed to reset backoff")
	}
}

func (s *Service) recordFailure(ctx context.Context, itemType string, itemID int64) {
	if s.backoff == nil {
		return
	}
	if err := s.backoff.RecordFailure(ctx, itemType, itemID); err != nil {
		s.logger.Warn().Err(err).Str("itemType", itemType).Int64("itemId", itemID).Msg("Failed to record backoff")
	}
}

// shouldSkip reports whether repeated failures have pushed an item past the
// backoff threshold.
func (s *Service) shouldSkip(ctx context.Context, itemType string, itemID int64) bool {
	if s.backoff == nil || s.cfg.BackoffThreshold <= 0 {
		return false
	}
	count, err := s.backoff.FailureCount(ctx, itemType, itemID)
	if err != nil {
		return false
	}
	if count >= s.cfg.BackoffThreshold {
		s.logger.Debug().
			Str("itemType", itemType).
			Int64("itemId", itemID).
			Int("failures", count).
			Msg("Skipping item past backoff threshold")
		return true
	}
	return false
}

// pause waits the configured delay between consecutive searches so indexers
// are not hammered.
func (s *Service) pause(ctx context.Context) {
	delay := s.cfg.RequestDelay()
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// Package search orchestrates release searches across multiple indexers and
// aggregates the results into a single scored list.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// Service orchestrates searches across multiple indexers. One failing or slow
// indexer never takes down a search: every adapter call is isolated behind
// its own timeout and circuit breaker.
type Service struct {
	provider indexer.Provider
	profiles scoring.Store
	cfg      config.SearchConfig
	logger   zerolog.Logger

	sem *semaphore.Weighted

	mu       sync.Mutex
	breakers map[int64]*gobreaker.CircuitBreaker[[]types.Release]
}

// NewService creates a new search service.
func NewService(provider indexer.Provider, profiles scoring.Store, cfg config.SearchConfig, logger zerolog.Logger) *Service {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		provider: provider,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger.With().Str("component", "search").Logger(),
		sem:      semaphore.NewWeighted(int64(concurrency)),
		breakers: make(map[int64]*gobreaker.CircuitBreaker[[]types.Release]),
	}
}

// Params carries per-search scoring context.
type Params struct {
	// Profile overrides the default scoring profile.
	Profile *scoring.Profile

	// EpisodeCount is the number of episodes a season pack spans, used to
	// judge pack sizes per episode. Zero means unknown.
	EpisodeCount int

	// MinScore drops candidates scoring below it. Zero disables the filter;
	// dropped candidates still count as rejected.
	MinScore float64
}

// IndexerError reports a failure from one indexer during a search.
type IndexerError struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexerName"`
	Error       string `json:"error"`
}

// IndexerResult summarizes one indexer's contribution to a search.
type IndexerResult struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexerName"`
	ResultCount int    `json:"resultCount"`
}

// Result contains aggregated, scored search results.
type Result struct {
	Releases         []types.Release `json:"releases"`
	TotalResults     int             `json:"total"`
	RejectedCount    int             `json:"rejected"`
	IndexersSearched int             `json:"indexersSearched"`
	IndexerResults   []IndexerResult `json:"indexerResults,omitempty"`
	IndexerErrors    []IndexerError  `json:"errors,omitempty"`
	SearchTimeMs     int64           `json:"searchTimeMs"`
}

// searchTaskResult is the outcome of querying a single indexer.
type searchTaskResult struct {
	IndexerID   int64
	IndexerName string
	Priority    int
	Releases    []types.Release
	Error       error
}

// Search executes a search across all eligible indexers, merges and scores
// the results. Releases come back sorted by score descending.
func (s *Service) Search(ctx context.Context, criteria types.SearchCriteria, params Params) (*Result, error) {
	startTime := time.Now()

	profile := params.Profile
	if profile == nil {
		var err error
		profile, err = s.profiles.GetDefaultProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load default profile: %w", err)
		}
	}

	eligible, err := s.eligibleIndexers(ctx, criteria, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexers: %w", err)
	}

	if len(eligible) == 0 {
		s.logger.Debug().
			Str("query", criteria.Query).
			Str("type", string(criteria.SearchType)).
			Msg("No eligible indexers for search")
		return &Result{Releases: []types.Release{}, SearchTimeMs: time.Since(startTime).Milliseconds()}, nil
	}

	s.logger.Info().
		Int("indexerCount", len(eligible)).
		Str("query", criteria.Query).
		Str("type", string(criteria.SearchType)).
		Int("season", criteria.Season).
		Int("episode", criteria.Episode).
		Msg("Starting search across indexers")

	taskResults := s.dispatchSearches(ctx, eligible, criteria)
	result := s.aggregate(taskResults, criteria, profile, params)
	result.SearchTimeMs = time.Since(startTime).Milliseconds()

	s.logger.Info().
		Int("totalResults", result.TotalResults).
		Int("rejected", result.RejectedCount).
		Int("indexersSearched", result.IndexersSearched).
		Int("errors", len(result.IndexerErrors)).
		Int64("elapsedMs", result.SearchTimeMs).
		Msg("Search completed")

	return result, nil
}

// SearchMovies searches for movie releases.
func (s *Service) SearchMovies(ctx context.Context, criteria types.SearchCriteria, params Params) (*Result, error) {
	criteria.SearchType = types.SearchTypeMovie
	if len(criteria.Categories) == 0 {
		criteria.Categories = indexer.MovieCategories()
	}
	return s.Search(ctx, criteria, params)
}

// SearchTV searches for TV releases.
func (s *Service) SearchTV(ctx context.Context, criteria types.SearchCriteria, params Params) (*Result, error) {
	criteria.SearchType = types.SearchTypeTV
	if len(criteria.Categories) == 0 {
		criteria.Categories = indexer.TVCategories()
	}
	return s.Search(ctx, criteria, params)
}

// eligibleIndexers returns the adapters allowed to serve this search, sorted
// by priority (lower number first).
func (s *Service) eligibleIndexers(ctx context.Context, criteria types.SearchCriteria, profile *scoring.Profile) ([]indexer.Indexer, error) {
	all, err := s.provider.Indexers(ctx)
	if err != nil {
		return nil, err
	}

	var requested map[int64]struct{}
	if len(criteria.IndexerIDs) > 0 {
		requested = make(map[int64]struct{}, len(criteria.IndexerIDs))
		for _, id := range criteria.IndexerIDs {
			requested[id] = struct{}{}
		}
	}

	eligible := make([]indexer.Indexer, 0, len(all))
	for _, idx := range all {
		def := idx.Definition()

		if !def.Enabled || !def.SupportsSearch {
			continue
		}
		if requested != nil {
			if _, ok := requested[def.ID]; !ok {
				continue
			}
		}
		switch criteria.SearchType {
		case types.SearchTypeMovie:
			if !def.SupportsMovies {
				continue
			}
		case types.SearchTypeTV:
			if !def.SupportsTV {
				continue
			}
		}
		if !profile.AllowsProtocol(def.Protocol) {
			continue
		}
		if s.breaker(def).State() == gobreaker.StateOpen {
			s.logger.Debug().
				Int64("indexerId", def.ID).
				Str("indexerName", def.Name).
				Msg("Skipping indexer with open circuit breaker")
			continue
		}

		eligible = append(eligible, idx)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Definition().Priority < eligible[j].Definition().Priority
	})

	return eligible, nil
}

// dispatchSearches fans out to the given indexers with bounded concurrency
// and collects every adapter's outcome.
func (s *Service) dispatchSearches(ctx context.Context, indexers []indexer.Indexer, criteria types.SearchCriteria) []searchTaskResult {
	var wg sync.WaitGroup
	results := make([]searchTaskResult, len(indexers))

	for i, idx := range indexers {
		wg.Add(1)
		go func(slot int, idx indexer.Indexer) {
			defer wg.Done()
			results[slot] = s.searchIndexer(ctx, idx, criteria)
		}(i, idx)
	}

	wg.Wait()
	return results
}

// searchIndexer performs a search on a single indexer behind its circuit
// breaker and the shared concurrency limit.
func (s *Service) searchIndexer(ctx context.Context, idx indexer.Indexer, criteria types.SearchCriteria) searchTaskResult {
	def := idx.Definition()
	result := searchTaskResult{
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Priority:    def.Priority,
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		result.Error = fmt.Errorf("search cancelled: %w", err)
		return result
	}
	defer s.sem.Release(1)

	// Each adapter gets its own deadline so a hung indexer cannot stall
	// the whole search.
	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	start := time.Now()
	releases, err := s.breaker(def).Execute(func() ([]types.Release, error) {
		return idx.Search(searchCtx, criteria)
	})
	elapsed := time.Since(start)

	if err != nil {
		result.Error = fmt.Errorf("search failed: %w", err)
		s.logger.Error().
			Err(err).
			Int64("indexerId", def.ID).
			Str("indexerName", def.Name).
			Dur("elapsed", elapsed).
			Msg("Indexer search failed")
		return result
	}

	// Stamp provenance so downstream layers can trace every release.
	for i := range releases {
		releases[i].IndexerID = def.ID
		releases[i].IndexerName = def.Name
		if releases[i].Protocol == "" {
			releases[i].Protocol = def.Protocol
		}
	}
	result.Releases = releases

	s.logger.Debug().
		Int64("indexerId", def.ID).
		Str("indexerName", def.Name).
		Int("results", len(releases)).
		Dur("elapsed", elapsed).
		Msg("Search completed for indexer")

	return result
}

// breaker returns the circuit breaker for an indexer, creating it on first
// use.
func (s *Service) breaker(def *types.IndexerDefinition) *gobreaker.CircuitBreaker[[]types.Release] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[def.ID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[[]types.Release](gobreaker.Settings{
		Name:        def.Name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().
				Str("indexerName", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Indexer circuit breaker state changed")
		},
	})
	s.breakers[def.ID] = cb
	return cb
}

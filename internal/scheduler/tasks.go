package scheduler

import (
	"context"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/autosearch"
	"github.com/fetcharr/fetcharr/internal/config"
)

// MissingSearcher is the autosearch surface the scheduled tasks drive.
type MissingSearcher interface {
	SearchMissingMovies(ctx context.Context, source autosearch.SearchSource) (*autosearch.BatchSearchResult, error)
	SearchAllMissingEpisodes(ctx context.Context, source autosearch.SearchSource) (*autosearch.BatchSearchResult, error)
	SearchMovieUpgrades(ctx context.Context, source autosearch.SearchSource) (*autosearch.BatchSearchResult, error)
}

// RegisterSearchTasks registers the periodic collection tasks.
func RegisterSearchTasks(sched *Scheduler, searcher MissingSearcher, cfg config.SchedulerConfig) error {
	tasks := []TaskConfig{
		{
			ID:            "missing-movies",
			Name:          "Missing Movies Search",
			Description:   "Searches for monitored movies without a file",
			IntervalHours: cfg.MissingMoviesIntervalHours,
			Enabled:       cfg.MissingMoviesEnabled,
			Func: func(ctx context.Context, _ TaskRun) error {
				_, err := searcher.SearchMissingMovies(ctx, autosearch.SourceScheduled)
				return err
			},
		},
		{
			ID:            "missing-episodes",
			Name:          "Missing Episodes Search",
			Description:   "Searches for monitored episodes without a file, season packs first",
			IntervalHours: cfg.MissingEpisodesIntervalHours,
			Enabled:       cfg.MissingEpisodesEnabled,
			Func: func(ctx context.Context, _ TaskRun) error {
				_, err := searcher.SearchAllMissingEpisodes(ctx, autosearch.SourceScheduled)
				return err
			},
		},
		{
			ID:            "upgrade-search",
			Name:          "Upgrade Search",
			Description:   "Searches for better releases of movies below their upgrade cutoff",
			IntervalHours: cfg.UpgradeIntervalHours,
			Enabled:       cfg.UpgradeEnabled,
			Func: func(ctx context.Context, _ TaskRun) error {
				_, err := searcher.SearchMovieUpgrades(ctx, autosearch.SourceScheduled)
				return err
			},
		},
	}

	for _, task := range tasks {
		if err := sched.RegisterTask(task); err != nil {
			return fmt.Errorf("failed to register task %q: %w", task.ID, err)
		}
	}
	return nil
}

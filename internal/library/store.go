// Package library exposes the media library state the acquisition engine
// needs: which movies and episodes are wanted, what files exist, and which
// scoring profile governs each item.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/database"
)

var (
	ErrMovieNotFound   = errors.New("movie not found")
	ErrSeriesNotFound  = errors.New("series not found")
	ErrEpisodeNotFound = errors.New("episode not found")
)

// Movie is the acquisition view of a library movie.
type Movie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	TmdbID    int    `json:"tmdbId,omitempty"`
	ImdbID    string `json:"imdbId,omitempty"`
	ProfileID int64  `json:"profileId,omitempty"`
	Monitored bool   `json:"monitored"`
	HasFile   bool   `json:"hasFile"`
	// ExistingReleaseTitle is the release name of the current file, used
	// for upgrade comparisons.
	ExistingReleaseTitle string `json:"existingReleaseTitle,omitempty"`
	Released             bool   `json:"released"`
}

// Series is the acquisition view of a library series.
type Series struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	TvdbID    int    `json:"tvdbId,omitempty"`
	TmdbID    int    `json:"tmdbId,omitempty"`
	ImdbID    string `json:"imdbId,omitempty"`
	ProfileID int64  `json:"profileId,omitempty"`
	Monitored bool   `json:"monitored"`
}

// Episode is the acquisition view of one episode.
type Episode struct {
	ID                   int64  `json:"id"`
	SeriesID             int64  `json:"seriesId"`
	SeasonNumber         int    `json:"seasonNumber"`
	EpisodeNumber        int    `json:"episodeNumber"`
	Monitored            bool   `json:"monitored"`
	HasFile              bool   `json:"hasFile"`
	ExistingReleaseTitle string `json:"existingReleaseTitle,omitempty"`
	Released             bool   `json:"released"`
}

// Store reads and updates library acquisition state.
type Store struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewStore creates a library store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "library").Logger(),
	}
}

// GetMovie returns one movie.
func (s *Store) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, title, year, tmdb_id, imdb_id, profile_id, monitored, has_file,
			existing_release_title, released
		 FROM movies WHERE id = ?`, id)

	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	return movie, err
}

// MissingMovies returns monitored, released movies without a file.
func (s *Store) MissingMovies(ctx context.Context) ([]*Movie, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, title, year, tmdb_id, imdb_id, profile_id, monitored, has_file,
			existing_release_title, released
		 FROM movies
		 WHERE monitored = 1 AND has_file = 0 AND released = 1
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing movies: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

// UpgradableMovies returns monitored movies that have a file and may still be
// improved under their profile.
func (s *Store) UpgradableMovies(ctx context.Context) ([]*Movie, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, title, year, tmdb_id, imdb_id, profile_id, monitored, has_file,
			existing_release_title, released
		 FROM movies
		 WHERE monitored = 1 AND has_file = 1
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query upgradable movies: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

// GetSeries returns one series.
func (s *Store) GetSeries(ctx context.Context, id int64) (*Series, error) {
	var (
		series Series
		year   sql.NullInt64
		tvdbID sql.NullInt64
		tmdbID sql.NullInt64
		imdbID sql.NullString
		profID sql.NullInt64
	)
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, title, year, tvdb_id, tmdb_id, imdb_id, profile_id, monitored
		 FROM series WHERE id = ?`, id).
		Scan(&series.ID, &series.Title, &year, &tvdbID, &tmdbID, &imdbID, &profID, &series.Monitored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	series.Year = int(year.Int64)
	series.TvdbID = int(tvdbID.Int64)
	series.TmdbID = int(tmdbID.Int64)
	series.ImdbID = imdbID.String
	series.ProfileID = profID.Int64
	return &series, nil
}

// GetEpisode returns one episode.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, series_id, season_number, episode_number, monitored, has_file,
			existing_release_title, released
		 FROM episodes WHERE id = ?`, id)

	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	return episode, err
}

// MissingEpisodes returns monitored, released episodes without a file for one
// series, ordered by season and episode.
func (s *Store) MissingEpisodes(ctx context.Context, seriesID int64) ([]*Episode, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, series_id, season_number, episode_number, monitored, has_file,
			existing_release_title, released
		 FROM episodes
		 WHERE series_id = ? AND monitored = 1 AND has_file = 0 AND released = 1
		 ORDER BY season_number, episode_number`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// AllMissingEpisodes returns missing episodes across every monitored series.
func (s *Store) AllMissingEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT e.id, e.series_id, e.season_number, e.episode_number, e.monitored,
			e.has_file, e.existing_release_title, e.released
		 FROM episodes e
		 JOIN series s ON s.id = e.series_id
		 WHERE s.monitored = 1 AND e.monitored = 1 AND e.has_file = 0 AND e.released = 1
		 ORDER BY e.series_id, e.season_number, e.episode_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// SeasonEpisodes returns every episode of one season.
func (s *Store) SeasonEpisodes(ctx context.Context, seriesID int64, season int) ([]*Episode, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, series_id, season_number, episode_number, monitored, has_file,
			existing_release_title, released
		 FROM episodes
		 WHERE series_id = ? AND season_number = ?
		 ORDER BY episode_number`, seriesID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query season episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// SeasonEpisodeCount returns the number of episodes in one season. Zero
// means the season is unknown to the library.
func (s *Store) SeasonEpisodeCount(ctx context.Context, seriesID int64, season int) (int, error) {
	var n int
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM episodes WHERE series_id = ? AND season_number = ?`,
		seriesID, season).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count season episodes: %w", err)
	}
	return n, nil
}

// SetMovieFile records that a movie's file changed: grabbed imports set the
// release title, deletions clear it.
func (s *Store) SetMovieFile(ctx context.Context, movieID int64, hasFile bool, releaseTitle string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE movies SET has_file = ?, existing_release_title = ? WHERE id = ?`,
		hasFile, nullString(releaseTitle), movieID)
	if err != nil {
		return fmt.Errorf("failed to update movie file state: %w", err)
	}
	return nil
}

// SetEpisodeFile records that an episode's file changed.
func (s *Store) SetEpisodeFile(ctx context.Context, episodeID int64, hasFile bool, releaseTitle string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE episodes SET has_file = ?, existing_release_title = ? WHERE id = ?`,
		hasFile, nullString(releaseTitle), episodeID)
	if err != nil {
		return fmt.Errorf("failed to update episode file state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*Movie, error) {
	var (
		movie   Movie
		year    sql.NullInt64
		tmdbID  sql.NullInt64
		imdbID  sql.NullString
		profID  sql.NullInt64
		relText sql.NullString
	)
	err := row.Scan(&movie.ID, &movie.Title, &year, &tmdbID, &imdbID, &profID,
		&movie.Monitored, &movie.HasFile, &relText, &movie.Released)
	if err != nil {
		return nil, err
	}
	movie.Year = int(year.Int64)
	movie.TmdbID = int(tmdbID.Int64)
	movie.ImdbID = imdbID.String
	movie.ProfileID = profID.Int64
	movie.ExistingReleaseTitle = relText.String
	return &movie, nil
}

func collectMovies(rows *sql.Rows) ([]*Movie, error) {
	var movies []*Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	return movies, rows.Err()
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var (
		episode Episode
		relText sql.NullString
	)
	err := row.Scan(&episode.ID, &episode.SeriesID, &episode.SeasonNumber,
		&episode.EpisodeNumber, &episode.Monitored, &episode.HasFile,
		&relText, &episode.Released)
	if err != nil {
		return nil, err
	}
	episode.ExistingReleaseTitle = relText.String
	return &episode, nil
}

func collectEpisodes(rows *sql.Rows) ([]*Episode, error) {
	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

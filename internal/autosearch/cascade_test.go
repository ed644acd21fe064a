package autosearch

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/decisioning"
	"github.com/fetcharr/fetcharr/internal/indexer/grab"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
	"github.com/fetcharr/fetcharr/internal/library"
	"github.com/fetcharr/fetcharr/internal/release"
)

func cascadeProfile() *scoring.Profile {
	return &scoring.Profile{
		ID:   1,
		Name: "Test",
		FormatScores: map[string]int{
			"2160p": 500,
			"1080p": 300,
			"720p":  100,
			"cam":   scoring.BanScore,
		},
		MinScore:          100,
		MinScoreIncrement: 50,
		UpgradesAllowed:   true,
	}
}

type stubProfiles struct {
	profile *scoring.Profile
}

func (s *stubProfiles) GetProfile(_ context.Context, _ int64) (*scoring.Profile, error) {
	return s.profile, nil
}

func (s *stubProfiles) GetDefaultProfile(_ context.Context) (*scoring.Profile, error) {
	return s.profile, nil
}

func (s *stubProfiles) ListProfiles(_ context.Context) ([]*scoring.Profile, error) {
	return []*scoring.Profile{s.profile}, nil
}

func (s *stubProfiles) SaveProfile(_ context.Context, p *scoring.Profile) (int64, error) {
	return p.ID, nil
}

func (s *stubProfiles) DeleteProfile(_ context.Context, _ int64) error {
	return nil
}

// fakeSearcher dispatches season-pack searches (no episode number in the
// criteria) and episode searches to separate canned result sets.
type fakeSearcher struct {
	packReleases    []types.Release
	episodeReleases []types.Release
	movieReleases   []types.Release

	// episodesFor, when set, generates the episode-search results from the
	// requested criteria instead of using episodeReleases.
	episodesFor func(criteria types.SearchCriteria) []types.Release

	packCalls    int
	episodeCalls int
	movieCalls   int
}

func (f *fakeSearcher) SearchMovies(_ context.Context, _ types.SearchCriteria, _ search.Params) (*search.Result, error) {
	f.movieCalls++
	return &search.Result{Releases: f.movieReleases, TotalResults: len(f.movieReleases)}, nil
}

func (f *fakeSearcher) SearchTV(_ context.Context, criteria types.SearchCriteria, _ search.Params) (*search.Result, error) {
	if criteria.Episode == 0 {
		f.packCalls++
		return &search.Result{Releases: f.packReleases, TotalResults: len(f.packReleases)}, nil
	}
	f.episodeCalls++
	releases := f.episodeReleases
	if f.episodesFor != nil {
		releases = f.episodesFor(criteria)
	}
	return &search.Result{Releases: releases, TotalResults: len(releases)}, nil
}

type fakeGrabber struct {
	requests []grab.Request
	// failFirst fails this many pushes before succeeding.
	failFirst int
	attempts  int
}

func (f *fakeGrabber) Grab(_ context.Context, req grab.Request) (*grab.Result, error) {
	f.attempts++
	if f.attempts <= f.failFirst {
		return nil, grab.ErrDownloadFailed
	}
	f.requests = append(f.requests, req)
	return &grab.Result{Success: true, ReleaseName: req.Release.Title}, nil
}

type fakeLibrary struct {
	movies   map[int64]*library.Movie
	series   map[int64]*library.Series
	episodes map[int64]*library.Episode

	// ordered for deterministic iteration
	episodeOrder []int64

	seasonCounts map[int]int
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		movies:       make(map[int64]*library.Movie),
		series:       make(map[int64]*library.Series),
		episodes:     make(map[int64]*library.Episode),
		seasonCounts: make(map[int]int),
	}
}

func (f *fakeLibrary) addEpisode(ep *library.Episode) {
	f.episodes[ep.ID] = ep
	f.episodeOrder = append(f.episodeOrder, ep.ID)
}

func (f *fakeLibrary) GetMovie(_ context.Context, id int64) (*library.Movie, error) {
	movie, ok := f.movies[id]
	if !ok {
		return nil, library.ErrMovieNotFound
	}
	return movie, nil
}

func (f *fakeLibrary) GetSeries(_ context.Context, id int64) (*library.Series, error) {
	series, ok := f.series[id]
	if !ok {
		return nil, library.ErrSeriesNotFound
	}
	return series, nil
}

func (f *fakeLibrary) GetEpisode(_ context.Context, id int64) (*library.Episode, error) {
	ep, ok := f.episodes[id]
	if !ok {
		return nil, library.ErrEpisodeNotFound
	}
	return ep, nil
}

func (f *fakeLibrary) MissingMovies(_ context.Context) ([]*library.Movie, error) {
	var missing []*library.Movie
	for _, movie := range f.movies {
		if movie.Monitored && !movie.HasFile && movie.Released {
			missing = append(missing, movie)
		}
	}
	return missing, nil
}

func (f *fakeLibrary) MissingEpisodes(_ context.Context, seriesID int64) ([]*library.Episode, error) {
	var missing []*library.Episode
	for _, id := range f.episodeOrder {
		ep := f.episodes[id]
		if ep.SeriesID == seriesID && ep.Monitored && !ep.HasFile && ep.Released {
			missing = append(missing, ep)
		}
	}
	return missing, nil
}

func (f *fakeLibrary) AllMissingEpisodes(_ context.Context) ([]*library.Episode, error) {
	var missing []*library.Episode
	for _, id := range f.episodeOrder {
		ep := f.episodes[id]
		if ep.Monitored && !ep.HasFile && ep.Released {
			missing = append(missing, ep)
		}
	}
	return missing, nil
}

func (f *fakeLibrary) SeasonEpisodes(_ context.Context, seriesID int64, season int) ([]*library.Episode, error) {
	var eps []*library.Episode
	for _, id := range f.episodeOrder {
		ep := f.episodes[id]
		if ep.SeriesID == seriesID && ep.SeasonNumber == season {
			eps = append(eps, ep)
		}
	}
	return eps, nil
}

func (f *fakeLibrary) SeasonEpisodeCount(_ context.Context, _ int64, season int) (int, error) {
	return f.seasonCounts[season], nil
}

func (f *fakeLibrary) UpgradableMovies(_ context.Context) ([]*library.Movie, error) {
	return nil, nil
}

func parsedRelease(title string, size int64) types.Release {
	return types.Release{
		Title:       title,
		DownloadURL: "http://indexer.test/" + title,
		Size:        size,
		Attributes:  release.Parse(title),
	}
}

func newCascadeService(lib *fakeLibrary, searcher *fakeSearcher, grabber *fakeGrabber) *Service {
	chain := decisioning.DefaultChain(nil, zerolog.Nop())
	cfg := config.SearchConfig{
		TimeoutSeconds:      1,
		Concurrency:         4,
		SeasonPackThreshold: 0.5,
	}
	return NewService(lib, searcher, grabber, &stubProfiles{profile: cascadeProfile()}, chain, cfg, zerolog.Nop())
}

// seedSeason populates a series with total episodes in season 1, of which the
// first missing have no file. Episodes with files carry a 720p release title.
func seedSeason(lib *fakeLibrary, seriesID int64, total, missing int) {
	lib.series[seriesID] = &library.Series{ID: seriesID, Title: "Test Show", TvdbID: 12345, Monitored: true}
	lib.seasonCounts[1] = total
	for i := 1; i <= total; i++ {
		ep := &library.Episode{
			ID:            int64(100 + i),
			SeriesID:      seriesID,
			SeasonNumber:  1,
			EpisodeNumber: i,
			Monitored:     true,
			Released:      true,
		}
		if i > missing {
			ep.HasFile = true
			ep.ExistingReleaseTitle = fmt.Sprintf("Test.Show.S01E%02d.720p.HDTV.x264-GRP", i)
		}
		lib.addEpisode(ep)
	}
}

func TestSearchSeriesGrabsSeasonPack(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 8)

	searcher := &fakeSearcher{
		packReleases: []types.Release{
			parsedRelease("Test.Show.S01.1080p.WEB-DL.x264-GRP", 20_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchSeries(context.Background(), 1, SourceManual)
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}

	if result.PackGrabs != 1 {
		t.Errorf("Expected 1 pack grab, got %d", result.PackGrabs)
	}
	if result.EpisodesCovered != 8 {
		t.Errorf("Expected 8 episodes covered, got %d", result.EpisodesCovered)
	}
	if searcher.packCalls != 1 {
		t.Errorf("Expected 1 pack search, got %d", searcher.packCalls)
	}
	if searcher.episodeCalls != 0 {
		t.Errorf("Expected no episode searches after a full pack grab, got %d", searcher.episodeCalls)
	}
	if len(grabber.requests) != 1 {
		t.Fatalf("Expected 1 grab, got %d", len(grabber.requests))
	}
	if len(grabber.requests[0].EpisodeIDs) != 8 {
		t.Errorf("Expected grab to cover the 8 missing episodes, got %d", len(grabber.requests[0].EpisodeIDs))
	}
	if len(result.Results) != 1 || !result.Results[0].WasPackGrab || result.Results[0].PackSeason != 1 {
		t.Error("Expected the result to be marked as a season 1 pack grab")
	}
	if len(result.GrabbedEpisodeIDs) != 8 {
		t.Errorf("Expected 8 grabbed episode IDs, got %d", len(result.GrabbedEpisodeIDs))
	}
	if len(result.SeasonPacks) != 1 {
		t.Fatalf("Expected 1 season pack entry, got %d", len(result.SeasonPacks))
	}
	pack := result.SeasonPacks[0]
	if pack.Season != 1 || pack.Title != "Test.Show.S01.1080p.WEB-DL.x264-GRP" {
		t.Errorf("Unexpected season pack entry: %+v", pack)
	}
	if len(pack.EpisodeIDs) != 8 {
		t.Errorf("Expected the pack entry to list 8 episodes, got %d", len(pack.EpisodeIDs))
	}
}

func TestSearchSeriesSkipsPackBelowThreshold(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 2)

	searcher := &fakeSearcher{
		episodesFor: func(criteria types.SearchCriteria) []types.Release {
			title := fmt.Sprintf("Test.Show.S%02dE%02d.1080p.WEB-DL.x264-GRP", criteria.Season, criteria.Episode)
			return []types.Release{parsedRelease(title, 2_000_000_000)}
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchSeries(context.Background(), 1, SourceManual)
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}

	if searcher.packCalls != 0 {
		t.Errorf("Expected no pack search with 2 of 10 missing, got %d", searcher.packCalls)
	}
	if searcher.episodeCalls != 2 {
		t.Errorf("Expected 2 episode searches, got %d", searcher.episodeCalls)
	}
	if result.EpisodeGrabs != 2 {
		t.Errorf("Expected 2 episode grabs, got %d", result.EpisodeGrabs)
	}
	if result.PackGrabs != 0 {
		t.Errorf("Expected no pack grabs, got %d", result.PackGrabs)
	}
}

func TestSearchEpisodesBulk(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 2)

	searcher := &fakeSearcher{
		episodesFor: func(criteria types.SearchCriteria) []types.Release {
			title := fmt.Sprintf("Test.Show.S%02dE%02d.1080p.WEB-DL.x264-GRP", criteria.Season, criteria.Episode)
			return []types.Release{parsedRelease(title, 2_000_000_000)}
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	// Two known episodes and one unknown ID. The unknown fails; the rest of
	// the batch still runs.
	result, err := service.SearchEpisodes(context.Background(), []int64{101, 102, 999}, SourceManual)
	if err != nil {
		t.Fatalf("SearchEpisodes failed: %v", err)
	}

	if result.Downloaded != 2 {
		t.Errorf("Expected 2 downloads, got %d", result.Downloaded)
	}
	if result.Failed != 1 {
		t.Errorf("Expected 1 failure for the unknown episode, got %d", result.Failed)
	}
	if searcher.packCalls != 0 {
		t.Errorf("Expected no pack search for 2 of 10 episodes, got %d", searcher.packCalls)
	}
	if searcher.episodeCalls != 2 {
		t.Errorf("Expected 2 episode searches, got %d", searcher.episodeCalls)
	}
}

func TestSearchSeriesPackViaEpisodeExpandsCoverage(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 8)

	// The pack pass finds nothing; the first episode search turns up a
	// season pack, which must then cover every missing episode.
	searcher := &fakeSearcher{
		episodeReleases: []types.Release{
			parsedRelease("Test.Show.S01.2160p.WEB-DL.x265-GRP", 40_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchSeries(context.Background(), 1, SourceManual)
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}

	if result.EpisodeGrabs != 1 {
		t.Errorf("Expected 1 episode-pass grab, got %d", result.EpisodeGrabs)
	}
	if result.EpisodesCovered != 8 {
		t.Errorf("Expected the pack to cover all 8 missing episodes, got %d", result.EpisodesCovered)
	}
	if len(grabber.requests) != 1 {
		t.Fatalf("Expected exactly 1 grab, got %d", len(grabber.requests))
	}
	if got := len(grabber.requests[0].EpisodeIDs); got != 8 {
		t.Errorf("Expected expanded grab to list 8 episodes, got %d", got)
	}
	if searcher.episodeCalls != 1 {
		t.Errorf("Expected later episode searches to be skipped, got %d searches", searcher.episodeCalls)
	}

	var grabResult *SearchResult
	for _, r := range result.Results {
		if r.Downloaded {
			grabResult = r
		}
	}
	if grabResult == nil {
		t.Fatal("Expected a downloaded result")
	}
	if !grabResult.WasPackGrab {
		t.Error("Expected the grab to be marked as a pack grab")
	}
	if grabResult.PackSeason != 1 {
		t.Errorf("Expected pack season 1, got %d", grabResult.PackSeason)
	}
	if len(result.SeasonPacks) != 1 {
		t.Errorf("Expected the episode-pass pack in the season pack list, got %d entries", len(result.SeasonPacks))
	}
	if len(result.GrabbedEpisodeIDs) != 8 {
		t.Errorf("Expected 8 grabbed episode IDs, got %d", len(result.GrabbedEpisodeIDs))
	}
}

func TestSearchSeriesNeverGrabsEpisodeTwice(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 8)

	// Both the pack pass and the episode pass find grabbable releases. The
	// pack wins; no episode it covers may be grabbed again.
	searcher := &fakeSearcher{
		packReleases: []types.Release{
			parsedRelease("Test.Show.S01.1080p.WEB-DL.x264-GRP", 20_000_000_000),
		},
		episodeReleases: []types.Release{
			parsedRelease("Test.Show.S01E01.1080p.WEB-DL.x264-GRP", 2_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchSeries(context.Background(), 1, SourceManual)
	if err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}

	if len(grabber.requests) != 1 {
		t.Fatalf("Expected exactly 1 grab, got %d", len(grabber.requests))
	}

	seen := make(map[int64]int)
	for _, req := range grabber.requests {
		for _, id := range req.EpisodeIDs {
			seen[id]++
		}
	}
	for id, count := range seen {
		if count > 1 {
			t.Errorf("Episode %d grabbed %d times", id, count)
		}
	}
	if result.EpisodesCovered != 8 {
		t.Errorf("Expected 8 episodes covered, got %d", result.EpisodesCovered)
	}
}

func TestSearchSeriesUnknownSeasonSizeTriesPack(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 2)
	lib.seasonCounts[1] = 0 // metadata not yet refreshed

	searcher := &fakeSearcher{}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	if _, err := service.SearchSeries(context.Background(), 1, SourceManual); err != nil {
		t.Fatalf("SearchSeries failed: %v", err)
	}

	if searcher.packCalls != 1 {
		t.Errorf("Expected a pack attempt when the season size is unknown, got %d", searcher.packCalls)
	}
}

func TestSearchSeriesCancelledBeforeStart(t *testing.T) {
	lib := newFakeLibrary()
	seedSeason(lib, 1, 10, 8)

	searcher := &fakeSearcher{
		packReleases: []types.Release{
			parsedRelease("Test.Show.S01.1080p.WEB-DL.x264-GRP", 20_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.SearchSeries(ctx, 1, SourceManual)
	if err != nil {
		t.Fatalf("Cancellation must not surface as an error, got: %v", err)
	}
	if !result.Cancelled {
		t.Error("Expected result.Cancelled to be set")
	}
	if len(grabber.requests) != 0 {
		t.Errorf("Expected no grabs after cancellation, got %d", len(grabber.requests))
	}
}

func TestSearchMovieCountsRejections(t *testing.T) {
	lib := newFakeLibrary()
	lib.movies[7] = &library.Movie{
		ID: 7, Title: "Test Movie", Year: 2024, Monitored: true, Released: true,
	}

	searcher := &fakeSearcher{
		movieReleases: []types.Release{
			parsedRelease("Test.Movie.2024.CAM.x264-BAD", 1_000_000_000),
			parsedRelease("Test.Movie.2024.1080p.BluRay.x264-GRP", 8_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchMovie(context.Background(), 7, SourceManual)
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}

	if !result.Downloaded {
		t.Fatal("Expected the acceptable release to be grabbed")
	}
	if result.Rejections[decisioning.ReasonBanned] != 1 {
		t.Errorf("Expected 1 banned rejection, got %d", result.Rejections[decisioning.ReasonBanned])
	}
	if grabber.requests[0].Release.Title != "Test.Movie.2024.1080p.BluRay.x264-GRP" {
		t.Errorf("Grabbed wrong release: %s", grabber.requests[0].Release.Title)
	}
}

func TestSearchMovieFallsThroughOnGrabFailure(t *testing.T) {
	lib := newFakeLibrary()
	lib.movies[7] = &library.Movie{
		ID: 7, Title: "Test Movie", Year: 2024, Monitored: true, Released: true,
	}

	searcher := &fakeSearcher{
		movieReleases: []types.Release{
			parsedRelease("Test.Movie.2024.2160p.WEB-DL.x265-GRP", 12_000_000_000),
			parsedRelease("Test.Movie.2024.1080p.BluRay.x264-GRP", 8_000_000_000),
		},
	}
	grabber := &fakeGrabber{failFirst: 1}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchMovie(context.Background(), 7, SourceManual)
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}

	// The first candidate's grab fails; the walk continues to the next one.
	if !result.Downloaded {
		t.Fatal("Expected the second candidate to be grabbed after the first grab failed")
	}
	if result.GrabFailures != 1 {
		t.Errorf("Expected 1 grab failure, got %d", result.GrabFailures)
	}
	if result.Error != "" {
		t.Errorf("Expected no error after a successful grab, got %q", result.Error)
	}
	if grabber.attempts != 2 {
		t.Errorf("Expected 2 grab attempts, got %d", grabber.attempts)
	}
	if len(grabber.requests) != 1 {
		t.Fatalf("Expected 1 successful grab, got %d", len(grabber.requests))
	}
	if grabber.requests[0].Release.Title != "Test.Movie.2024.1080p.BluRay.x264-GRP" {
		t.Errorf("Grabbed wrong release: %s", grabber.requests[0].Release.Title)
	}
	if result.Release == nil || result.Release.Title != "Test.Movie.2024.1080p.BluRay.x264-GRP" {
		t.Error("Expected the result to carry the grabbed release")
	}
}

func TestSearchMovieAllGrabsFail(t *testing.T) {
	lib := newFakeLibrary()
	lib.movies[7] = &library.Movie{
		ID: 7, Title: "Test Movie", Year: 2024, Monitored: true, Released: true,
	}

	searcher := &fakeSearcher{
		movieReleases: []types.Release{
			parsedRelease("Test.Movie.2024.2160p.WEB-DL.x265-GRP", 12_000_000_000),
			parsedRelease("Test.Movie.2024.1080p.BluRay.x264-GRP", 8_000_000_000),
		},
	}
	grabber := &fakeGrabber{failFirst: 2}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchMovie(context.Background(), 7, SourceManual)
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}

	if result.Downloaded {
		t.Error("Expected no download when every grab fails")
	}
	if !result.Found {
		t.Error("Expected acceptable candidates to be reported as found")
	}
	if result.GrabFailures != 2 {
		t.Errorf("Expected 2 grab failures, got %d", result.GrabFailures)
	}
	if result.Error == "" {
		t.Error("Expected the last grab error to be reported")
	}
}

func TestSearchMovieNotFound(t *testing.T) {
	service := newCascadeService(newFakeLibrary(), &fakeSearcher{}, &fakeGrabber{})

	_, err := service.SearchMovie(context.Background(), 999, SourceManual)
	if err != ErrItemNotFound {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestSearchEpisodeUpgradeRejectedWhenNotBetter(t *testing.T) {
	lib := newFakeLibrary()
	lib.series[1] = &library.Series{ID: 1, Title: "Test Show", TvdbID: 12345, Monitored: true}
	lib.addEpisode(&library.Episode{
		ID: 101, SeriesID: 1, SeasonNumber: 1, EpisodeNumber: 1,
		Monitored: true, Released: true, HasFile: true,
		ExistingReleaseTitle: "Test.Show.S01E01.1080p.WEB-DL.x264-GRP",
	})

	searcher := &fakeSearcher{
		episodeReleases: []types.Release{
			parsedRelease("Test.Show.S01E01.1080p.WEB-DL.x264-OTHER", 2_000_000_000),
		},
	}
	grabber := &fakeGrabber{}
	service := newCascadeService(lib, searcher, grabber)

	result, err := service.SearchEpisode(context.Background(), 101, SourceManual)
	if err != nil {
		t.Fatalf("SearchEpisode failed: %v", err)
	}

	if result.Downloaded {
		t.Error("Equal-score release must not replace the existing file")
	}
	if result.Rejections[decisioning.ReasonNotAnUpgrade] != 1 {
		t.Errorf("Expected a notAnUpgrade rejection, got %v", result.Rejections)
	}
}

func TestCancelSearchStopsActiveKey(t *testing.T) {
	service := newCascadeService(newFakeLibrary(), &fakeSearcher{}, &fakeGrabber{})

	if service.CancelSearch("movie:1") {
		t.Error("Cancelling an idle key should report false")
	}

	ctx, done := service.registerSearch(context.Background(), "movie:1")
	if !service.IsSearching("movie:1") {
		t.Fatal("Expected movie:1 to be active")
	}
	if !service.CancelSearch("movie:1") {
		t.Error("Expected cancel to report true for an active search")
	}
	if ctx.Err() == nil {
		t.Error("Expected the search context to be cancelled")
	}
	done()
}

package search

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// Handlers provides HTTP handlers for manual search operations.
type Handlers struct {
	service  *Service
	profiles scoring.Store
}

// NewHandlers creates new search handlers.
func NewHandlers(service *Service, profiles scoring.Store) *Handlers {
	return &Handlers{
		service:  service,
		profiles: profiles,
	}
}

// RegisterRoutes registers the search routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Search)
	g.GET("/movie", h.SearchMovie)
	g.GET("/tv", h.SearchTV)
}

// SearchRequest represents a manual search request.
type SearchRequest struct {
	Query        string  `query:"query"`
	Type         string  `query:"type"` // basic, movie, tv
	Categories   string  `query:"categories"`
	ImdbID       string  `query:"imdbId"`
	TmdbID       int     `query:"tmdbId"`
	TvdbID       int     `query:"tvdbId"`
	Season       int     `query:"season"`
	Episode      int     `query:"episode"`
	EpisodeCount int     `query:"episodeCount"`
	Limit        int     `query:"limit"`
	Offset       int     `query:"offset"`
	ProfileID    int64   `query:"profileId"`
	MinScore     float64 `query:"minScore"`
}

// Search handles general search requests.
// GET /api/v1/search?query=...&type=...
func (h *Handlers) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	params, err := h.toParams(c, req)
	if err != nil {
		return err
	}

	result, err := h.service.Search(c.Request().Context(), h.toCriteria(req), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// SearchMovie handles movie search requests.
// GET /api/v1/search/movie?query=...&tmdbId=...&profileId=...
func (h *Handlers) SearchMovie(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	params, err := h.toParams(c, req)
	if err != nil {
		return err
	}

	result, err := h.service.SearchMovies(c.Request().Context(), h.toCriteria(req), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// SearchTV handles TV search requests.
// GET /api/v1/search/tv?query=...&tvdbId=...&season=...&episode=...&profileId=...
func (h *Handlers) SearchTV(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	params, err := h.toParams(c, req)
	if err != nil {
		return err
	}

	result, err := h.service.SearchTV(c.Request().Context(), h.toCriteria(req), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// toParams resolves the requested scoring profile. A missing profileId means
// the default profile.
func (h *Handlers) toParams(c echo.Context, req SearchRequest) (Params, error) {
	params := Params{EpisodeCount: req.EpisodeCount, MinScore: req.MinScore}
	if req.ProfileID == 0 {
		return params, nil
	}

	profile, err := h.profiles.GetProfile(c.Request().Context(), req.ProfileID)
	if err != nil {
		if errors.Is(err, scoring.ErrProfileNotFound) {
			return params, echo.NewHTTPError(http.StatusNotFound, "Scoring profile not found")
		}
		return params, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	params.Profile = profile
	return params, nil
}

// toCriteria converts a SearchRequest to SearchCriteria.
func (h *Handlers) toCriteria(req SearchRequest) types.SearchCriteria {
	criteria := types.SearchCriteria{
		SearchType: types.SearchType(req.Type),
		Query:      req.Query,
		ImdbID:     req.ImdbID,
		TmdbID:     req.TmdbID,
		TvdbID:     req.TvdbID,
		Season:     req.Season,
		Episode:    req.Episode,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}

	if criteria.SearchType == "" {
		criteria.SearchType = types.SearchTypeBasic
	}

	if req.Categories != "" {
		parts := strings.Split(req.Categories, ",")
		categories := make([]int, 0, len(parts))
		for _, part := range parts {
			if cat, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				categories = append(categories, cat)
			}
		}
		criteria.Categories = categories
	}

	if criteria.Limit == 0 {
		criteria.Limit = 100
	}

	return criteria
}

package autosearch

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for triggering automatic searches.
type Handlers struct {
	service *Service
}

// NewHandlers creates new autosearch handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the autosearch routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/movie/:id", h.SearchMovie)
	g.POST("/episode/:id", h.SearchEpisode)
	g.POST("/episodes", h.SearchEpisodes)
	g.POST("/series/:id", h.SearchSeries)
	g.POST("/series/:id/season/:season", h.SearchSeason)
}

// SearchMovie handles POST /api/v1/autosearch/movie/:id.
func (h *Handlers) SearchMovie(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid movie ID"})
	}

	result, err := h.service.SearchMovie(c.Request().Context(), id, SourceManual)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// SearchEpisode handles POST /api/v1/autosearch/episode/:id.
func (h *Handlers) SearchEpisode(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid episode ID"})
	}

	result, err := h.service.SearchEpisode(c.Request().Context(), id, SourceManual)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Episode not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// BulkEpisodesRequest is the body for a bulk episode search.
type BulkEpisodesRequest struct {
	EpisodeIDs []int64 `json:"episodeIds"`
}

// SearchEpisodes handles POST /api/v1/autosearch/episodes.
func (h *Handlers) SearchEpisodes(c echo.Context) error {
	var req BulkEpisodesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if len(req.EpisodeIDs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "episodeIds is required"})
	}

	result, err := h.service.SearchEpisodes(c.Request().Context(), req.EpisodeIDs, SourceManual)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// SearchSeries handles POST /api/v1/autosearch/series/:id.
func (h *Handlers) SearchSeries(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid series ID"})
	}

	result, err := h.service.SearchSeries(c.Request().Context(), id, SourceManual)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Series not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// SearchSeason handles POST /api/v1/autosearch/series/:id/season/:season.
func (h *Handlers) SearchSeason(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid series ID"})
	}
	season, err := strconv.Atoi(c.Param("season"))
	if err != nil || season < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid season number"})
	}

	result, err := h.service.SearchSeason(c.Request().Context(), id, season, SourceManual)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Series not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

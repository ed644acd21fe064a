package blocklist

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for blocklist operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new blocklist handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the blocklist routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Add)
	g.DELETE("/:id", h.Remove)
}

// AddRequest represents a request to blocklist a release.
type AddRequest struct {
	InfoHash  string `json:"infoHash"`
	Title     string `json:"title"`
	IndexerID int64  `json:"indexerId"`
	Reason    string `json:"reason"`
}

// List handles GET /api/v1/blocklist.
func (h *Handlers) List(c echo.Context) error {
	entries, err := h.service.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Add handles POST /api/v1/blocklist.
func (h *Handlers) Add(c echo.Context) error {
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	entry, err := h.service.Add(c.Request().Context(), req.InfoHash, req.Title, req.Reason, req.IndexerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, entry)
}

// Remove handles DELETE /api/v1/blocklist/:id.
func (h *Handlers) Remove(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid blocklist ID"})
	}

	if err := h.service.Remove(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Blocklist entry not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

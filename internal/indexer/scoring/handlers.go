package scoring

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for scoring profile management.
type Handlers struct {
	store Store
}

// NewHandlers creates new scoring profile handlers.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the profile routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListProfiles)
	g.GET("/default", h.GetDefaultProfile)
	g.GET("/:id", h.GetProfile)
	g.POST("", h.SaveProfile)
	g.PUT("/:id", h.UpdateProfile)
	g.DELETE("/:id", h.DeleteProfile)
}

// ListProfiles handles GET /api/v1/profiles.
func (h *Handlers) ListProfiles(c echo.Context) error {
	profiles, err := h.store.ListProfiles(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list profiles"})
	}
	if profiles == nil {
		profiles = []*Profile{}
	}
	return c.JSON(http.StatusOK, profiles)
}

// GetDefaultProfile handles GET /api/v1/profiles/default.
func (h *Handlers) GetDefaultProfile(c echo.Context) error {
	profile, err := h.store.GetDefaultProfile(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get default profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

// GetProfile handles GET /api/v1/profiles/:id.
func (h *Handlers) GetProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid profile ID"})
	}

	profile, err := h.store.GetProfile(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

// SaveProfile handles POST /api/v1/profiles.
func (h *Handlers) SaveProfile(c echo.Context) error {
	var profile Profile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if profile.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Profile name is required"})
	}
	profile.ID = 0

	id, err := h.store.SaveProfile(c.Request().Context(), &profile)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save profile"})
	}
	profile.ID = id
	return c.JSON(http.StatusCreated, profile)
}

// UpdateProfile handles PUT /api/v1/profiles/:id.
func (h *Handlers) UpdateProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid profile ID"})
	}

	var profile Profile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	profile.ID = id

	if _, err := h.store.SaveProfile(c.Request().Context(), &profile); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/v1/profiles/:id.
func (h *Handlers) DeleteProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid profile ID"})
	}

	if err := h.store.DeleteProfile(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete profile"})
	}
	return c.NoContent(http.StatusNoContent)
}

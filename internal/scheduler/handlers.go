package scheduler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for the task registry.
type Handlers struct {
	scheduler *Scheduler
}

// NewHandlers creates new scheduler handlers.
func NewHandlers(scheduler *Scheduler) *Handlers {
	return &Handlers{scheduler: scheduler}
}

// RegisterRoutes registers the scheduler routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListTasks)
	g.POST("/:id/run", h.RunTask)
}

// ListTasks handles GET /api/v1/tasks.
func (h *Handlers) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// RunTask handles POST /api/v1/tasks/:id/run.
func (h *Handlers) RunTask(c echo.Context) error {
	id := c.Param("id")
	if err := h.scheduler.RunNow(id); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Task not found"})
		}
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "started"})
}

// Package api assembles the HTTP surface: one echo instance, middleware, and
// the per-package route groups.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/autosearch"
	"github.com/fetcharr/fetcharr/internal/blocklist"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/scheduler"
)

// Services holds everything the API routes over.
type Services struct {
	Search     *search.Service
	Profiles   scoring.Store
	Blocklist  *blocklist.Service
	Autosearch *autosearch.Service
	Scheduler  *scheduler.Scheduler
	History    *history.Service
}

// Server is the HTTP server.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(services Services, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes(services)
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

func (s *Server) setupRoutes(services Services) {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": config.Version,
		})
	})

	v1 := s.echo.Group("/api/v1")

	search.NewHandlers(services.Search, services.Profiles).RegisterRoutes(v1.Group("/search"))
	scoring.NewHandlers(services.Profiles).RegisterRoutes(v1.Group("/profiles"))
	blocklist.NewHandlers(services.Blocklist).RegisterRoutes(v1.Group("/blocklist"))
	autosearch.NewHandlers(services.Autosearch).RegisterRoutes(v1.Group("/autosearch"))
	scheduler.NewHandlers(services.Scheduler).RegisterRoutes(v1.Group("/tasks"))
	history.NewHandlers(services.History).RegisterRoutes(v1.Group("/history"))
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving on the given address. Blocks until shutdown.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

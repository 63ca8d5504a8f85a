// Package http serves the owera run API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/services"
	"github.com/fyrsmithlabs/owera/internal/spec"
)

// Subscriber streams one run's events. *events.NATSPublisher satisfies it.
type Subscriber interface {
	Subscribe(runID string, ch chan *nats.Msg) (*nats.Subscription, error)
}

// Server provides HTTP endpoints for owera.
type Server struct {
	echo       *echo.Echo
	reg        services.Registry
	runs       *services.Runs
	subscriber Subscriber
	logger     *logging.Logger
	config     *Config
	heartbeat  time.Duration
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. subscriber may be nil, in which case
// the event stream answers 503.
func NewServer(reg services.Registry, runs *services.Runs, subscriber Subscriber, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("service registry cannot be nil")
	}
	if runs == nil {
		return nil, fmt.Errorf("run tracker cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	logger := reg.Logger().Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(reg.Meter(), logger.Underlying()).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:       e,
		reg:        reg,
		runs:       runs,
		subscriber: subscriber,
		logger:     logger,
		config:     cfg,
		heartbeat:  15 * time.Second,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/runs", s.handleCreateRun)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/runs/:id/events", s.handleEvents)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Runs: len(s.runs.List())})
}

func (s *Server) handleCreateRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid run request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := s.buildProject(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, spec.ErrEmptySpec) || errors.Is(err, spec.ErrInvalidSpec) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	id, err := s.runs.Submit(p)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	s.logger.Info(c.Request().Context(), "run accepted",
		zap.String("run.id", id),
		zap.String("project", p.Name()),
		zap.Int("features", len(p.Features())))
	return c.JSON(http.StatusAccepted, RunAccepted{RunID: id})
}

func (s *Server) buildProject(ctx context.Context, req RunRequest) (*project.Project, error) {
	if req.Document != nil {
		return req.Document.Build()
	}
	return s.reg.Parser().Parse(ctx, req.Spec)
}

func (s *Server) handleListRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, RunsResponse{Runs: s.runs.List()})
}

func (s *Server) handleGetRun(c echo.Context) error {
	id := c.Param("id")
	info, err := s.runs.Get(id)
	if err == nil {
		return c.JSON(http.StatusOK, RunResponse{RunInfo: info, Source: "live"})
	}

	cp, err := s.reg.Checkpoints().Latest(c.Request().Context(), id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, RunResponse{
		RunInfo: services.RunInfo{
			ID:        cp.RunID,
			Name:      cp.Snapshot.Name,
			Status:    services.StatusFinished,
			Cycle:     cp.Cycle,
			StartedAt: cp.SavedAt,
			Snapshot:  cp.Snapshot,
		},
		Source: "checkpoint",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for open ones, including
// event streams, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

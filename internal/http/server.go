// Package http provides the HTTP API for tierd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/tierd/internal/classify"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/engine"
	"github.com/fyrsmithlabs/tierd/internal/sanitize"
	"github.com/fyrsmithlabs/tierd/internal/stats"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// Backend is what the HTTP API serves. *engine.Engine satisfies it; the
// service wraps a swappable engine so configuration reloads take effect
// without restarting the listener.
type Backend interface {
	Answer(ctx context.Context, query, key string) (*engine.Answer, error)
	Summarize(ctx context.Context, text string) digest.Digest
	Ingest(ctx context.Context, key, text string) (digest.Digest, error)
	Classify(query string) classify.Result
	Dashboard() stats.Dashboard
	ListDocuments(ctx context.Context) ([]string, error)
	ResetStats() error
	Mode() tier.Mode
}

// Server provides HTTP endpoints for tierd.
type Server struct {
	echo    *echo.Echo
	backend Backend
	logger  *zap.Logger
	config  *Config
	metrics *serverMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// AuthToken, when set, gates the /api/v1 group behind bearer-token
	// authentication. Health, status, and metrics stay open so probes
	// and scrapers work without credentials.
	AuthToken string
	// RateLimitRPS throttles the /api/v1 group per client IP. Zero
	// disables throttling.
	RateLimitRPS float64
	Version      string
}

// NewServer creates a new HTTP server.
func NewServer(backend Backend, logger *zap.Logger, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := newServerMetrics()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		backend: backend,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	v1 := s.echo.Group("/api/v1")
	if s.config.AuthToken != "" {
		v1.Use(bearerAuth(s.config.AuthToken))
	}
	if s.config.RateLimitRPS > 0 {
		v1.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimitRPS),
				Burst:     int(s.config.RateLimitRPS) + 1,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	v1.POST("/answer", s.handleAnswer)
	v1.POST("/summarize", s.handleSummarize)
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/classify", s.handleClassify)
	v1.GET("/stats", s.handleStats)
	v1.POST("/stats/reset", s.handleStatsReset)
	v1.GET("/documents", s.handleDocuments)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports service mode, corpus size, and query totals.
func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		Mode:    string(s.backend.Mode()),
	}

	dashboard := s.backend.Dashboard()
	resp.TotalQueries = dashboard.TotalQueries
	resp.UptimeSeconds = dashboard.UptimeSeconds

	docs, err := s.backend.ListDocuments(c.Request().Context())
	if err != nil {
		s.logger.Warn("listing documents for status", zap.Error(err))
		resp.Status = "degraded"
	} else {
		resp.Documents = len(docs)
	}

	return c.JSON(http.StatusOK, resp)
}

// handleAnswer retrieves tiered content for a query.
func (s *Server) handleAnswer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid answer request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	answer, err := s.backend.Answer(c.Request().Context(), req.Query, req.DocumentKey)
	if err != nil {
		return s.backendError(c, "answer", err)
	}

	return c.JSON(http.StatusOK, answer)
}

// handleSummarize generates the reduced tiers for submitted content
// without storing them.
func (s *Server) handleSummarize(c echo.Context) error {
	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid summarize request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	d := s.backend.Summarize(c.Request().Context(), req.Content)
	return c.JSON(http.StatusOK, d)
}

// handleIngest stores a document and its generated tiers.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key field is required")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	d, err := s.backend.Ingest(c.Request().Context(), req.Key, req.Content)
	if err != nil {
		return s.backendError(c, "ingest", err)
	}

	return c.JSON(http.StatusOK, IngestResponse{Key: req.Key, Metadata: d.Metadata})
}

// handleClassify classifies a query without retrieving content.
func (s *Server) handleClassify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid classify request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	return c.JSON(http.StatusOK, s.backend.Classify(req.Query))
}

// handleStats returns the aggregate statistics dashboard.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.backend.Dashboard())
}

// handleStatsReset zeroes the aggregate statistics.
func (s *Server) handleStatsReset(c echo.Context) error {
	if err := s.backend.ResetStats(); err != nil {
		return s.backendError(c, "stats reset", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleDocuments lists the known document keys.
func (s *Server) handleDocuments(c echo.Context) error {
	docs, err := s.backend.ListDocuments(c.Request().Context())
	if err != nil {
		return s.backendError(c, "list documents", err)
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Documents: docs})
}

// backendError maps backend failures to HTTP status codes.
func (s *Server) backendError(c echo.Context, op string, err error) error {
	s.logger.Error("backend operation failed",
		zap.String("operation", op),
		zap.Error(err),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	)

	if errors.Is(err, sanitize.ErrInvalidKey) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document key")
	}
	if errors.Is(err, store.ErrStorageUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

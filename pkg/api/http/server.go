package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/dapub/internal/application/workers"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RunService is the part of the orchestrator the API drives
type RunService interface {
	Start(ctx context.Context, items []domain.ContentItem, cfg domain.RunConfig) (*domain.JobState, error)
	Stop(ctx context.Context) (bool, error)
	GetState() domain.JobState
}

// HealthReporter reports orchestrator health
type HealthReporter interface {
	GetStatus() *workers.HealthStatus
}

// SinkReporter reports progress sink workers
type SinkReporter interface {
	Stats() []workers.WorkerStats
}

// Server represents the HTTP API server
type Server struct {
	router *gin.Engine
	server *http.Server
	runs   RunService
	health HealthReporter
	sinks  SinkReporter
	logger *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Addr           string
	Runs           RunService
	Health         HealthReporter
	Sinks          SinkReporter
	MetricsHandler http.Handler
	EnableCORS     bool
	Logger         *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	// numbers in item extras reach the orchestrator without float rounding
	binding.EnableDecoderUseNumber = true

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	if cfg.EnableCORS {
		router.Use(corsMiddleware())
	}

	s := &Server{
		router: router,
		runs:   cfg.Runs,
		health: cfg.Health,
		sinks:  cfg.Sinks,
		logger: cfg.Logger,
	}

	metrics := cfg.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	s.setupRoutes(metrics)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/runs", s.handleStartRun)
		v1.POST("/runs/stop", s.handleStopRun)
		v1.GET("/runs/state", s.handleGetState)
		v1.GET("/sinks", s.handleListSinks)
	}
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleRunStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/runs/ws", wsHandler.HandleRunStream)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

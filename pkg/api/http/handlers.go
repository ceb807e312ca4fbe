package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dapub/internal/application/orchestrator"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartRunRequest represents a run submission request
type StartRunRequest struct {
	Items  []domain.ContentItem `json:"items"`
	Config domain.RunConfig     `json:"config"`
}

// StartRunResponse represents a run submission response
type StartRunResponse struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id"`
}

// StopRunResponse represents a stop request response
type StopRunResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	status := s.health.GetStatus()
	code := http.StatusOK
	label := "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		label = "unhealthy"
	}

	c.JSON(code, gin.H{
		"status":    label,
		"timestamp": status.Timestamp,
		"checks":    status,
	})
}

// handleStartRun handles run submission
func (s *Server) handleStartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	state, err := s.runs.Start(c.Request.Context(), req.Items, req.Config)
	if err != nil {
		s.writeStartError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, StartRunResponse{
		Accepted: true,
		RunID:    state.RunID,
	})
}

func (s *Server) writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrConfig):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CONFIG_ERROR",
				Message: err.Error(),
			},
		})
	case errors.Is(err, domain.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "ALREADY_RUNNING",
				Message: err.Error(),
				Details: gin.H{"run_id": s.runs.GetState().RunID},
			},
		})
	case errors.Is(err, orchestrator.ErrShutdown):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SHUTTING_DOWN",
				Message: err.Error(),
			},
		})
	default:
		s.logger.Error("failed to start run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "START_FAILED",
				Message: err.Error(),
			},
		})
	}
}

// handleStopRun handles stop requests. Stopping with no active run is
// accepted=false, not an error.
func (s *Server) handleStopRun(c *gin.Context) {
	accepted, err := s.runs.Stop(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to stop run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STOP_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, StopRunResponse{Accepted: accepted})
}

// handleGetState returns the current job snapshot. items=false omits the
// item list.
func (s *Server) handleGetState(c *gin.Context) {
	state := s.runs.GetState()
	if c.Query("items") == "false" {
		state.Items = nil
	}
	c.JSON(http.StatusOK, state)
}

// handleListSinks lists the progress sink workers
func (s *Server) handleListSinks(c *gin.Context) {
	if s.sinks == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SINKS_NOT_AVAILABLE",
				Message: "Sink dispatcher is not configured",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      s.sinks.Stats(),
		"timestamp": time.Now().UTC(),
	})
}

// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"print-agent/internal/config"
	"print-agent/internal/session"
	"print-agent/internal/transport"
	"print-agent/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	session   *session.Session
	manager   *transport.Manager
	wsHandler *WebSocketHandler
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	sess *session.Session,
	manager *transport.Manager,
	wsHandler *WebSocketHandler,
	config *config.Config,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		session:   sess,
		manager:   manager,
		wsHandler: wsHandler,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports agent health. The agent stays healthy with no printer
// attached; the printer state is informational, since the HTML fallback
// keeps printing available.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	state := h.session.State()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.manager.Supported() {
		health.Checks["usb"] = CheckResult{
			Status:  "healthy",
			Message: "USB stack available",
		}
	} else {
		health.Checks["usb"] = CheckResult{
			Status:  "degraded",
			Message: "USB stack unavailable, HTML fallback only",
		}
	}

	printerStatus := "disconnected"
	if state.IsConnected {
		printerStatus = "connected"
	}
	health.Checks["printer"] = CheckResult{
		Status:  "healthy",
		Message: printerStatus,
		Data: map[string]interface{}{
			"is_printing": state.IsPrinting,
			"last_error":  state.LastError,
		},
	}

	// Fallback documents need a connected UI tab to show them.
	wsStats := h.wsHandler.GetConnectionStats()
	uiStatus := "healthy"
	uiMessage := "print ui connected"
	if wsStats.TotalConnections == 0 {
		uiStatus = "degraded"
		uiMessage = "no print ui connected, fallback documents cannot be shown"
	}
	health.Checks["ui_clients"] = CheckResult{
		Status:  uiStatus,
		Message: uiMessage,
		Data: map[string]interface{}{
			"total_connections": wsStats.TotalConnections,
		},
	}

	c.JSON(http.StatusOK, health)
}

// LivenessCheck answers as long as the process can respond
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// internal/handler/printer_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"print-agent/internal/receipt"
	"print-agent/internal/session"
	"print-agent/internal/transport"
	"print-agent/internal/utils"
)

// PrinterHandler exposes the printer session over the local REST surface
// consumed by the POS UI.
type PrinterHandler struct {
	session *session.Session
	manager *transport.Manager
	bridge  *SessionEventBridge
	logger  *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(
	sess *session.Session,
	manager *transport.Manager,
	bridge *SessionEventBridge,
	logger *zap.Logger,
) *PrinterHandler {
	return &PrinterHandler{
		session: sess,
		manager: manager,
		bridge:  bridge,
		logger:  utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printer := router.Group("/printer")
	{
		printer.GET("/status", h.GetStatus)
		printer.GET("/devices", h.ListDevices)
		printer.POST("/connect", h.Connect)
		printer.POST("/disconnect", h.Disconnect)
		printer.POST("/print", h.Print)
		printer.POST("/test-print", h.TestPrint)
	}
}

// GetStatus returns the current session state
func (h *PrinterHandler) GetStatus(c *gin.Context) {
	state := h.session.State()
	utils.SuccessResponse(c, http.StatusOK, "Printer status retrieved", gin.H{
		"state":         state,
		"usb_supported": h.manager.Supported(),
	})
}

// ListDevices enumerates the USB printers visible to the agent
func (h *PrinterHandler) ListDevices(c *gin.Context) {
	devices, err := h.manager.List(c.Request.Context())
	if err != nil {
		utils.LogError(h.logger.Logger, "Device enumeration failed", err)
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to enumerate USB devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved", gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// ConnectRequest selects a specific printer. With an empty body the agent
// runs its picker flow instead.
type ConnectRequest struct {
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
}

// Connect claims a printer for the session
func (h *PrinterHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid connect request", err)
		return
	}

	if req.VendorID != "" || req.ProductID != "" {
		vid, err := transport.ParseID(req.VendorID)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid vendor_id", err)
			return
		}
		pid, err := transport.ParseID(req.ProductID)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid product_id", err)
			return
		}

		info := transport.DeviceInfo{VendorID: vid, ProductID: pid}
		if err := h.session.ConnectTo(c.Request.Context(), info); err != nil {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to connect printer", err)
			return
		}
	} else {
		if err := h.session.Connect(c.Request.Context()); err != nil {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to connect printer", err)
			return
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Connect completed", gin.H{
		"state": h.session.State(),
	})
}

// Disconnect releases the printer
func (h *PrinterHandler) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	utils.SuccessResponse(c, http.StatusOK, "Printer disconnected", gin.H{
		"state": h.session.State(),
	})
}

// Print delivers one receipt, falling back to an HTML document on the
// WebSocket channel when the USB path fails
func (h *PrinterHandler) Print(c *gin.Context) {
	var data receipt.ReceiptData
	if err := c.ShouldBindJSON(&data); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid receipt payload", err)
		return
	}

	log := utils.LoggerWithRequestID(h.logger.Logger, c.GetString("request_id"))

	result, err := h.session.Print(c.Request.Context(), &data)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Print rejected", err)
		return
	}

	log.Info("Receipt print handled",
		zap.String("sale_no", data.SaleNo),
		zap.String("mode", string(result.Mode)),
	)
	h.bridge.OnPrintCompleted(data.SaleNo, result)

	utils.SuccessResponse(c, http.StatusOK, "Print completed", gin.H{
		"mode":    result.Mode,
		"warning": result.Warning,
		"state":   h.session.State(),
	})
}

// TestPrint sends the connectivity-check page
func (h *PrinterHandler) TestPrint(c *gin.Context) {
	if err := h.session.TestPrint(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Test print failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Test page printed", gin.H{
		"state": h.session.State(),
	})
}

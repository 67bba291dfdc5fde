package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/http/handlers/common"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

const (
	msgAlertSent     = "SOS alert sent successfully"
	msgAlertResolved = "Alert resolved"
	msgEFIRGenerated = "E-FIR generated successfully"
)

// AlertHandler обслуживает тревоги: приём от туристов и действия властей.
type AlertHandler struct {
	alerts *service.AlertService
}

func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// SubmitAlert обрабатывает POST /api/alerts.
func (h *AlertHandler) SubmitAlert(c *gin.Context) {
	var req dto.SubmitAlertRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	alert, err := h.alerts.SubmitAlert(c.Request.Context(), req.ToInput())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreatedResponse{
		ID:      alert.ID,
		Status:  dto.StatusCreated,
		Message: msgAlertSent,
	})
}

// ListAlerts обрабатывает GET /api/alerts.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListAlerts(c.Request.Context(), common.GetLimit(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AlertsResponse{Alerts: alerts})
}

// ListUserAlerts обрабатывает GET /api/alerts/user/:userId (история туриста).
func (h *AlertHandler) ListUserAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListAlertsForUser(c.Request.Context(), c.Param("userId"), common.GetLimit(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AlertsResponse{Alerts: alerts})
}

// ResolveAlert обрабатывает PATCH /api/alerts/:id/resolve.
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	alert, err := h.alerts.ResolveAlert(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AlertResponse{Alert: alert, Message: msgAlertResolved})
}

// GenerateEFIR обрабатывает POST /api/alerts/:id/efir.
func (h *AlertHandler) GenerateEFIR(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	efir, err := h.alerts.GenerateEFIR(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EFIRResponse{EFIR: efir, Message: msgEFIRGenerated})
}

// Heatmap обрабатывает GET /api/heatmap.
func (h *AlertHandler) Heatmap(c *gin.Context) {
	points, err := h.alerts.Heatmap(c.Request.Context(), common.GetLimit(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.HeatmapResponse{Points: points})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/http/handlers/common"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

const msgReportSubmitted = "Report submitted successfully"

// ReportHandler обслуживает отчёты об инцидентах.
type ReportHandler struct {
	alerts *service.AlertService
}

func NewReportHandler(alerts *service.AlertService) *ReportHandler {
	return &ReportHandler{alerts: alerts}
}

// SubmitReport обрабатывает POST /api/reports.
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	var req dto.SubmitReportRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	report, err := h.alerts.SubmitReport(c.Request.Context(), req.ToInput())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreatedResponse{
		ID:      report.ID,
		Status:  dto.StatusCreated,
		Message: msgReportSubmitted,
	})
}

// ListReports обрабатывает GET /api/reports.
func (h *ReportHandler) ListReports(c *gin.Context) {
	reports, err := h.alerts.ListReports(c.Request.Context(), common.GetLimit(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReportsResponse{Reports: reports})
}

// ListUserReports обрабатывает GET /api/reports/user/:userId.
func (h *ReportHandler) ListUserReports(c *gin.Context) {
	reports, err := h.alerts.ListReportsForUser(c.Request.Context(), c.Param("userId"), common.GetLimit(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReportsResponse{Reports: reports})
}

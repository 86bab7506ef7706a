package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/parcelworks/siteline/internal/errors"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/services"
)

// ReportHandler handles report generation and download requests.
type ReportHandler struct {
	coordinator *services.ReportCoordinator
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(coordinator *services.ReportCoordinator) *ReportHandler {
	return &ReportHandler{coordinator: coordinator}
}

// GenerateRequest is the request body for generating a report.
type GenerateRequest struct {
	Type    string               `json:"type" binding:"required"`
	Options models.ReportOptions `json:"options"`
}

// Generate handles POST /api/v1/jobs/:id/reports.
func (h *ReportHandler) Generate(c *gin.Context) {
	jobID, ok := h.parseUUID(c, "id", "Invalid job id")
	if !ok {
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	report, err := h.coordinator.Generate(c.Request.Context(), jobID, models.ReportType(req.Type), req.Options)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// List handles GET /api/v1/jobs/:id/reports.
func (h *ReportHandler) List(c *gin.Context) {
	jobID, ok := h.parseUUID(c, "id", "Invalid job id")
	if !ok {
		return
	}

	reports, err := h.coordinator.ListReports(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// Content handles GET /api/v1/jobs/:id/reports/:reportId/content. A
// successful fetch counts as a download.
func (h *ReportHandler) Content(c *gin.Context) {
	jobID, ok := h.parseUUID(c, "id", "Invalid job id")
	if !ok {
		return
	}
	reportID, ok := h.parseUUID(c, "reportId", "Invalid report id")
	if !ok {
		return
	}

	content, err := h.coordinator.FetchContent(c.Request.Context(), jobID, reportID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, content.ContentType, content.Data)
}

func (h *ReportHandler) parseUUID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		apierrors.BadRequest(c, message, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ReportHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrJobNotFound),
		errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, services.ErrLocationNotFound):
		apierrors.NotFound(c, "Job or report not found")
	case errors.Is(err, services.ErrInvalidReportType):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrRenderFailed):
		apierrors.InternalServerError(c, "Report rendering failed", err)
	default:
		apierrors.InternalServerError(c, "Failed to process report request", err)
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type reportService interface {
	UserReport(ctx context.Context, actor models.Actor, userID string, q models.ReportQuery) (*models.UserReport, error)
	SystemReport(ctx context.Context, actor models.Actor, q models.ReportQuery) (*models.SystemReport, error)
	ExportUserReport(report *models.UserReport, format export.Format) (*service.ExportedReport, error)
	ExportSystemReport(report *models.SystemReport, format export.Format) (*service.ExportedReport, error)
}

// ReportHandler exposes attendance reports as JSON or downloadable files.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// UserReport godoc
// @Summary User attendance report
// @Description Attendance of one user over an inclusive date range
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "User ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/reports/users/{id} [get]
func (h *ReportHandler) UserReport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	q, ok := bindReportQuery(c)
	if !ok {
		return
	}

	report, err := h.service.UserReport(c.Request.Context(), actor, c.Param("id"), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	if q.Format == "" {
		response.JSON(c, http.StatusOK, report, nil)
		return
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.service.ExportUserReport(report, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// SystemReport godoc
// @Summary System attendance report
// @Description Attendance of every user over an inclusive date range
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/reports/system [get]
func (h *ReportHandler) SystemReport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	q, ok := bindReportQuery(c)
	if !ok {
		return
	}

	report, err := h.service.SystemReport(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}

	if q.Format == "" {
		response.JSON(c, http.StatusOK, report, nil)
		return
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.service.ExportSystemReport(report, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func bindReportQuery(c *gin.Context) (models.ReportQuery, bool) {
	var q models.ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err, "invalid report query"))
		return q, false
	}
	return q, true
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, actor models.Actor) (*models.MarkResult, error)
	ListOwn(ctx context.Context, actor models.Actor) ([]models.AttendanceRecord, error)
	ListForUser(ctx context.Context, actor models.Actor, userID string) ([]models.AttendanceRecord, error)
	Add(ctx context.Context, actor models.Actor, req models.AddAttendanceRequest) (*models.AttendanceRecord, models.Notice, error)
	EditStatus(ctx context.Context, actor models.Actor, recordID string, req models.EditAttendanceRequest) (models.Notice, error)
}

// AttendanceHandler exposes daily marking and the admin attendance tools.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance
// @Description Mark the caller present for today in the server timezone; marking twice is a no-op
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.service.Mark(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil, response.Notice(result.Notice))
}

// ListOwn godoc
// @Summary Own attendance history
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/me [get]
func (h *AttendanceHandler) ListOwn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	records, err := h.service.ListOwn(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// ListForUser godoc
// @Summary Attendance history of a user
// @Tags Attendance
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id}/attendance [get]
func (h *AttendanceHandler) ListForUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	records, err := h.service.ListForUser(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// Add godoc
// @Summary Add attendance
// @Description Create or overwrite a user's attendance for a date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.AddAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/attendance [post]
func (h *AttendanceHandler) Add(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.AddAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}

	record, notice, err := h.service.Add(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record, response.Notice(notice))
}

// EditStatus godoc
// @Summary Edit attendance status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance record ID"
// @Param payload body models.EditAttendanceRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/attendance/{id} [patch]
func (h *AttendanceHandler) EditStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.EditAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}

	notice, err := h.service.EditStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil, nil, response.Notice(notice))
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type leaveService interface {
	Request(ctx context.Context, actor models.Actor, req models.CreateLeaveRequest) (*models.LeaveRequest, models.Notice, error)
	ListOwn(ctx context.Context, actor models.Actor) ([]models.LeaveRequest, error)
	List(ctx context.Context, actor models.Actor, filter models.LeaveFilter) ([]models.LeaveRequest, error)
	Approve(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error)
	Reject(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error)
}

// LeaveHandler exposes leave request endpoints.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler constructs the handler.
func NewLeaveHandler(svc leaveService) *LeaveHandler {
	return &LeaveHandler{service: svc}
}

// Create godoc
// @Summary Request leave
// @Tags Leave
// @Accept json
// @Produce json
// @Param payload body models.CreateLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leave-requests [post]
func (h *LeaveHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid leave payload"))
		return
	}

	leave, notice, err := h.service.Request(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, leave, response.Notice(notice))
}

// ListOwn godoc
// @Summary Own leave requests
// @Tags Leave
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leave-requests/me [get]
func (h *LeaveHandler) ListOwn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	items, err := h.service.ListOwn(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// List godoc
// @Summary List leave requests
// @Tags Leave
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param user_id query string false "User ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/leave-requests [get]
func (h *LeaveHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	filter := models.LeaveFilter{UserID: c.Query("user_id")}
	if status := c.Query("status"); status != "" {
		s := models.LeaveStatus(status)
		filter.Status = &s
	}

	items, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Approve godoc
// @Summary Approve leave
// @Tags Leave
// @Produce json
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/leave-requests/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	notice, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil, nil, response.Notice(notice))
}

// Reject godoc
// @Summary Reject leave
// @Tags Leave
// @Produce json
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/leave-requests/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	notice, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil, nil, response.Notice(notice))
}

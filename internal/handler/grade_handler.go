package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type gradeService interface {
	Policy(ctx context.Context, actor models.Actor) (models.GradingPolicy, error)
	UpdatePolicy(ctx context.Context, actor models.Actor, policy models.GradingPolicy) (*models.GradingRun, error)
	RecomputeDefault(ctx context.Context, actor models.Actor) (*models.GradingRun, error)
	AssignGrades(ctx context.Context, actor models.Actor) (*models.GradingRun, error)
	List(ctx context.Context, actor models.Actor) ([]models.GradeRecord, bool, error)
}

// GradeHandler exposes the grade snapshot and the grading policy.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// List godoc
// @Summary List grades
// @Description Returns the latest grade snapshot
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	grades, hit, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, grades, nil, middleware.ExtractMeta(c))
}

// Assign godoc
// @Summary Assign grades
// @Description Recompute every user's grade with the configured policy
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/grades/assign [post]
func (h *GradeHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	run, err := h.service.AssignGrades(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, run, nil, withNotice(c, run.Notice))
}

// AssignDefault godoc
// @Summary Assign grades with default thresholds
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/grades/default [post]
func (h *GradeHandler) AssignDefault(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	run, err := h.service.RecomputeDefault(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, run, nil, withNotice(c, run.Notice))
}

// Policy godoc
// @Summary Get grading policy
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/grading-policy [get]
func (h *GradeHandler) Policy(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	policy, err := h.service.Policy(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, policy, nil)
}

// UpdatePolicy godoc
// @Summary Update grading policy
// @Description Persist new thresholds and regrade every user
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradingPolicy true "Thresholds"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/grading-policy [put]
func (h *GradeHandler) UpdatePolicy(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var policy models.GradingPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		response.Error(c, bindError(err, "invalid grading policy"))
		return
	}

	run, err := h.service.UpdatePolicy(c.Request.Context(), actor, policy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, run, nil, withNotice(c, run.Notice))
}

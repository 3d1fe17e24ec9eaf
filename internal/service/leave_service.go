package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type leaveRepository interface {
	Create(ctx context.Context, req *models.LeaveRequest) error
	UpdateStatus(ctx context.Context, id string, status models.LeaveStatus, decidedBy string) (bool, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, error)
}

// LeaveService runs the leave request lifecycle.
type LeaveService struct {
	repo      leaveRepository
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveService constructs the service.
func NewLeaveService(repo leaveRepository, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{repo: repo, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Request files a pending leave request for the actor.
func (s *LeaveService) Request(ctx context.Context, actor models.Actor, req models.CreateLeaveRequest) (*models.LeaveRequest, models.Notice, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, "", validationError(err, "invalid leave request payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, "", validationError(err, "invalid date")
	}

	leave := &models.LeaveRequest{
		UserID: actor.UserID,
		Date:   date,
		Reason: req.Reason,
		Status: models.LeaveStatusPending,
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, "", internalError(err, "failed to create leave request")
	}
	return leave, models.NoticeLeaveRequested, nil
}

// ListOwn returns the actor's requests.
func (s *LeaveService) ListOwn(ctx context.Context, actor models.Actor) ([]models.LeaveRequest, error) {
	requests, err := s.repo.List(ctx, models.LeaveFilter{UserID: actor.UserID})
	if err != nil {
		return nil, internalError(err, "failed to list leave requests")
	}
	return requests, nil
}

// List returns requests for the admin dashboard, joined with usernames.
func (s *LeaveService) List(ctx context.Context, actor models.Actor, filter models.LeaveFilter) ([]models.LeaveRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.LeaveStatusPending, models.LeaveStatusApproved, models.LeaveStatusRejected:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
	}
	if filter.UserID != "" && !validID(filter.UserID) {
		return []models.LeaveRequest{}, nil
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list leave requests")
	}
	return requests, nil
}

// Approve marks a request approved.
func (s *LeaveService) Approve(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error) {
	return s.decide(ctx, actor, requestID, models.LeaveStatusApproved)
}

// Reject marks a request rejected.
func (s *LeaveService) Reject(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error) {
	return s.decide(ctx, actor, requestID, models.LeaveStatusRejected)
}

// decide overwrites the status whatever it currently is; concurrent decisions resolve
// to the last write. An unknown id is a no-op.
func (s *LeaveService) decide(ctx context.Context, actor models.Actor, requestID string, status models.LeaveStatus) (models.Notice, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	updated := false
	if validID(requestID) {
		var err error
		updated, err = s.repo.UpdateStatus(ctx, requestID, status, actor.UserID)
		if err != nil {
			return "", internalError(err, "failed to update leave request")
		}
	}
	if updated {
		s.metrics.RecordLeaveDecision(status)
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionLeaveDecision, "leave_requests", requestID, nil, map[string]string{"status": string(status)})
	}
	if status == models.LeaveStatusApproved {
		return models.NoticeLeaveApproved, nil
	}
	return models.NoticeLeaveRejected, nil
}

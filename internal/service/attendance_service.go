package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type attendanceRepository interface {
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AttendanceService handles self-service marking and admin corrections.
type AttendanceService struct {
	repo      attendanceRepository
	users     userLookup
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewAttendanceService constructs the service. loc decides what "today" means.
func NewAttendanceService(repo attendanceRepository, users userLookup, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{repo: repo, users: users, audit: audit, metrics: metrics, validator: validate, logger: logger, location: loc, now: time.Now}
}

// Mark records the actor as present for today in the configured location. Users
// cannot pick the date; backfilling other days is an admin operation.
// A second mark on the same day changes nothing and reports already marked.
func (s *AttendanceService) Mark(ctx context.Context, actor models.Actor) (*models.MarkResult, error) {
	now := s.now().In(s.location)
	date := calendarDay(now)
	clock := now.Format(models.ClockLayout)

	record := &models.AttendanceRecord{
		UserID: actor.UserID,
		Date:   date,
		Status: models.AttendanceStatusPresent,
		Time:   &clock,
	}
	created, err := s.repo.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, internalError(err, "failed to mark attendance")
	}

	result := &models.MarkResult{Date: date.Format(models.DateLayout)}
	if created {
		result.Outcome = models.MarkOutcomeCreated
		result.RecordID = record.ID
		result.Time = clock
		result.Notice = models.NoticeMarkedAt(clock)
	} else {
		result.Outcome = models.MarkOutcomeAlreadyMarked
		result.Notice = models.NoticeAlreadyMarked
	}
	s.metrics.RecordAttendanceMark(result.Outcome)
	return result, nil
}

// ListOwn returns the actor's records, newest first.
func (s *AttendanceService) ListOwn(ctx context.Context, actor models.Actor) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	return records, nil
}

// ListForUser returns every record of a user for the admin edit screen.
func (s *AttendanceService) ListForUser(ctx context.Context, actor models.Actor, userID string) ([]models.AttendanceRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return []models.AttendanceRecord{}, nil
	}
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	return records, nil
}

// Add backfills a record. An existing (user, date) record is overwritten with the new
// status and time rather than duplicated.
func (s *AttendanceService) Add(ctx context.Context, actor models.Actor, req models.AddAttendanceRequest) (*models.AttendanceRecord, models.Notice, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, "", err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, "", validationError(err, "invalid attendance payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, "", validationError(err, "invalid date")
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, "", internalError(err, "failed to load user")
	}

	record := &models.AttendanceRecord{UserID: req.UserID, Date: date, Status: req.Status}
	if req.Time != "" {
		clock := req.Time
		record.Time = &clock
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, "", internalError(err, "failed to add attendance")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAttendanceAdd, "attendance", stored.ID, nil, req)
	return stored, models.NoticeAttendanceAdded, nil
}

// EditStatus changes the status of one record. An unknown id is a no-op.
func (s *AttendanceService) EditStatus(ctx context.Context, actor models.Actor, recordID string, req models.EditAttendanceRequest) (models.Notice, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err, "invalid status")
	}
	if !validID(recordID) {
		s.logger.Debug("attendance edit matched no record", zap.String("record_id", recordID))
		return models.NoticeAttendanceUpdated, nil
	}
	updated, err := s.repo.UpdateStatus(ctx, recordID, req.Status)
	if err != nil {
		return "", internalError(err, "failed to update attendance")
	}
	if updated {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAttendanceEdit, "attendance", recordID, nil, req)
	} else {
		s.logger.Debug("attendance edit matched no record", zap.String("record_id", recordID))
	}
	return models.NoticeAttendanceUpdated, nil
}

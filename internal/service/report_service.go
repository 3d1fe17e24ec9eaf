package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type attendanceRangeRepository interface {
	UserRange(ctx context.Context, userID string, from, to time.Time) ([]models.ReportEntry, error)
	SystemRange(ctx context.Context, from, to time.Time) ([]models.ReportEntry, error)
}

// ExportedReport is a rendered report ready to be sent as an attachment.
type ExportedReport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService builds attendance reports over inclusive date ranges.
type ReportService struct {
	attendance attendanceRangeRepository
	users      userLookup
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(attendance attendanceRangeRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{attendance: attendance, users: users, validator: validate, logger: logger}
}

// UserReport lists one user's attendance with from <= date <= to, oldest first.
// A reversed range or an unknown user yields an empty report.
func (s *ReportService) UserReport(ctx context.Context, actor models.Actor, userID string, q models.ReportQuery) (*models.UserReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	from, to, err := s.parseRange(q)
	if err != nil {
		return nil, err
	}

	report := &models.UserReport{UserID: userID, From: q.From, To: q.To, Entries: []models.ReportEntry{}}
	if from.After(to) || !validID(userID) {
		return report, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report, nil
		}
		return nil, internalError(err, "failed to load user")
	}
	report.Username = user.Username

	entries, err := s.attendance.UserRange(ctx, userID, from, to)
	if err != nil {
		return nil, internalError(err, "failed to build user report")
	}
	for i := range entries {
		entries[i].Username = user.Username
	}
	report.Entries = entries
	return report, nil
}

// SystemReport lists every user's attendance in the range, oldest first, with the
// usernames users have at query time.
func (s *ReportService) SystemReport(ctx context.Context, actor models.Actor, q models.ReportQuery) (*models.SystemReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	from, to, err := s.parseRange(q)
	if err != nil {
		return nil, err
	}

	report := &models.SystemReport{From: q.From, To: q.To, Entries: []models.ReportEntry{}}
	if from.After(to) {
		return report, nil
	}

	entries, err := s.attendance.SystemRange(ctx, from, to)
	if err != nil {
		return nil, internalError(err, "failed to build system report")
	}
	report.Entries = entries
	return report, nil
}

// ExportUserReport renders a user report as CSV or PDF.
func (s *ReportService) ExportUserReport(report *models.UserReport, format export.Format) (*ExportedReport, error) {
	title := fmt.Sprintf("Attendance report for %s (%s to %s)", displayName(report.Username, report.UserID), report.From, report.To)
	name := fmt.Sprintf("attendance_%s_%s_%s", displayName(report.Username, report.UserID), report.From, report.To)
	return s.render(format, title, name, []string{"Date", "Status", "Time"}, report.Entries)
}

// ExportSystemReport renders a system report as CSV or PDF.
func (s *ReportService) ExportSystemReport(report *models.SystemReport, format export.Format) (*ExportedReport, error) {
	title := fmt.Sprintf("Attendance report (%s to %s)", report.From, report.To)
	name := fmt.Sprintf("attendance_%s_%s", report.From, report.To)
	return s.render(format, title, name, []string{"Username", "Date", "Status", "Time"}, report.Entries)
}

func (s *ReportService) render(format export.Format, title, name string, headers []string, entries []models.ReportEntry) (*ExportedReport, error) {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		clock := ""
		if e.Time != nil {
			clock = *e.Time
		}
		rows = append(rows, map[string]string{
			"Username": e.Username,
			"Date":     e.Date.Format(models.DateLayout),
			"Status":   string(e.Status),
			"Time":     clock,
		})
	}
	body, err := export.Render(format, export.Dataset{Title: title, Headers: headers, Rows: rows})
	if err != nil {
		return nil, internalError(err, "failed to render report")
	}
	return &ExportedReport{
		Filename:    fmt.Sprintf("%s.%s", name, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *ReportService) parseRange(q models.ReportQuery) (time.Time, time.Time, error) {
	if err := s.validator.Struct(q); err != nil {
		return time.Time{}, time.Time{}, validationError(err, "from and to must be dates (YYYY-MM-DD)")
	}
	from, err := parseDate(q.From)
	if err != nil {
		return time.Time{}, time.Time{}, validationError(err, "invalid from date")
	}
	to, err := parseDate(q.To)
	if err != nil {
		return time.Time{}, time.Time{}, validationError(err, "invalid to date")
	}
	return from, to, nil
}

func displayName(username, fallback string) string {
	if username != "" {
		return username
	}
	return fallback
}

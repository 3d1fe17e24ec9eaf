package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type mockRangeRepo struct {
	entries []models.ReportEntry
	calls   int
}

func (m *mockRangeRepo) UserRange(ctx context.Context, userID string, from, to time.Time) ([]models.ReportEntry, error) {
	m.calls++
	out := make([]models.ReportEntry, 0)
	for _, e := range m.entries {
		if e.Username == userID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, models.ReportEntry{Date: e.Date, Status: e.Status, Time: e.Time})
		}
	}
	return out, nil
}

func (m *mockRangeRepo) SystemRange(ctx context.Context, from, to time.Time) ([]models.ReportEntry, error) {
	m.calls++
	out := make([]models.ReportEntry, 0)
	for _, e := range m.entries {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func mustDate(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newReportFixture() (*ReportService, *mockRangeRepo) {
	clock := "08:00:00"
	// Username doubles as the user id in this fake.
	repo := &mockRangeRepo{entries: []models.ReportEntry{
		{Username: aliceID, Date: mustDate("2024-03-01"), Status: models.AttendanceStatusPresent, Time: &clock},
		{Username: aliceID, Date: mustDate("2024-03-15"), Status: models.AttendanceStatusLate},
		{Username: aliceID, Date: mustDate("2024-03-31"), Status: models.AttendanceStatusPresent},
		{Username: aliceID, Date: mustDate("2024-04-01"), Status: models.AttendanceStatusPresent},
	}}
	users := newMockUserRepo(&models.User{ID: aliceID, Username: "alice"})
	return NewReportService(repo, users, nil, nil), repo
}

func TestUserReportInclusiveBounds(t *testing.T) {
	svc, _ := newReportFixture()

	report, err := svc.UserReport(context.Background(), adminActor, aliceID, models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, "alice", report.Username)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "alice", report.Entries[0].Username)
	assert.Equal(t, mustDate("2024-03-31"), report.Entries[2].Date)
}

func TestUserReportReversedRangeSkipsStore(t *testing.T) {
	svc, repo := newReportFixture()

	report, err := svc.UserReport(context.Background(), adminActor, aliceID, models.ReportQuery{From: "2024-03-31", To: "2024-03-01"})
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.Zero(t, repo.calls)
}

func TestUserReportUnknownUserIsEmpty(t *testing.T) {
	svc, repo := newReportFixture()

	report, err := svc.UserReport(context.Background(), adminActor, unknownID, models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.NotNil(t, report.Entries)
	assert.Empty(t, report.Entries)
	assert.Zero(t, repo.calls)
}

func TestUserReportMalformedIDIsEmpty(t *testing.T) {
	svc, repo := newReportFixture()

	report, err := svc.UserReport(context.Background(), adminActor, "alice", models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.NotNil(t, report.Entries)
	assert.Empty(t, report.Entries)
	assert.Zero(t, repo.calls)
}

func TestSystemReport(t *testing.T) {
	svc, _ := newReportFixture()

	report, err := svc.SystemReport(context.Background(), adminActor, models.ReportQuery{From: "2024-03-15", To: "2024-04-01"})
	require.NoError(t, err)
	assert.Len(t, report.Entries, 3)

	empty, err := svc.SystemReport(context.Background(), adminActor, models.ReportQuery{From: "2024-04-02", To: "2024-03-01"})
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}

func TestReportsValidateAndAuthorize(t *testing.T) {
	svc, repo := newReportFixture()
	ctx := context.Background()

	_, err := svc.SystemReport(ctx, userActor, models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.UserReport(ctx, adminActor, aliceID, models.ReportQuery{From: "March", To: "2024-03-31"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, repo.calls)
}

func TestExportUserReportCSV(t *testing.T) {
	svc, _ := newReportFixture()
	report, err := svc.UserReport(context.Background(), adminActor, aliceID, models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)

	out, err := svc.ExportUserReport(report, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "attendance_alice_2024-03-01_2024-03-31.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)
	lines := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Status,Time", lines[0])
	assert.Equal(t, "2024-03-01,present,08:00:00", lines[1])
}

func TestExportSystemReportPDF(t *testing.T) {
	svc, _ := newReportFixture()
	report, err := svc.SystemReport(context.Background(), adminActor, models.ReportQuery{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)

	out, err := svc.ExportSystemReport(report, export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, strings.HasPrefix(string(out.Body), "%PDF"))
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestInsertIfAbsentCreates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	clock := "08:00:00"
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, date) DO NOTHING RETURNING id")).
		WithArgs(sqlmock.AnyArg(), "u1", day("2024-03-01"), models.AttendanceStatusPresent, &clock, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))

	created, err := repo.InsertIfAbsent(context.Background(), &models.AttendanceRecord{UserID: "u1", Date: day("2024-03-01"), Status: models.AttendanceStatusPresent, Time: &clock})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsentReportsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("DO NOTHING RETURNING id").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	created, err := repo.InsertIfAbsent(context.Background(), &models.AttendanceRecord{UserID: "u1", Date: day("2024-03-01"), Status: models.AttendanceStatusPresent})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestInsertIfAbsentSurfacesStoreErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("DO NOTHING RETURNING id").WillReturnError(sql.ErrConnDone)

	_, err := repo.InsertIfAbsent(context.Background(), &models.AttendanceRecord{UserID: "u1", Date: day("2024-03-01")})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestUpsertMergesIntoExistingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("DO UPDATE SET status = EXCLUDED.status, time = EXCLUDED.time")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "date", "status", "time", "created_at", "updated_at"}).
			AddRow("existing", "u1", day("2024-03-01"), "late", "09:10:00", now, now))

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{UserID: "u1", Date: day("2024-03-01"), Status: models.AttendanceStatusLate})
	require.NoError(t, err)
	assert.Equal(t, "existing", stored.ID)
	assert.Equal(t, models.AttendanceStatusLate, stored.Status)
}

func TestUpdateStatusReportsMissingRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("UPDATE attendance SET status").WithArgs("rec-9", models.AttendanceStatusAbsent, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "rec-9", models.AttendanceStatusAbsent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRangeIsInclusiveAndAscending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND date BETWEEN $2 AND $3\nORDER BY date ASC")).
		WithArgs("u1", day("2024-03-01"), day("2024-03-31")).
		WillReturnRows(sqlmock.NewRows([]string{"date", "status", "time"}).
			AddRow(day("2024-03-01"), "present", "08:00:00").
			AddRow(day("2024-03-31"), "present", nil))

	entries, err := repo.UserRange(context.Background(), "u1", day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[1].Time)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemRangeJoinsCurrentUsernames(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = a.user_id")).
		WithArgs(day("2024-03-01"), day("2024-03-02")).
		WillReturnRows(sqlmock.NewRows([]string{"username", "date", "status", "time"}).
			AddRow("alice-renamed", day("2024-03-01"), "present", "08:00:00"))

	entries, err := repo.SystemRange(context.Background(), day("2024-03-01"), day("2024-03-02"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice-renamed", entries[0].Username)
}

func TestListByUserReturnsEmptySlice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("FROM attendance WHERE user_id = \\$1 ORDER BY date DESC").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "date", "status", "time", "created_at", "updated_at"}))

	records, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

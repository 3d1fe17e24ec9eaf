package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-api/internal/models"
)

const attendanceColumns = `id, user_id, date, status, time, created_at, updated_at`

// AttendanceRepository persists per-day attendance records.
// The (user_id, date) unique constraint is what makes marking race-free.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertIfAbsent stores the record unless one already exists for (user, date).
// It reports whether a row was created.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	prepareAttendance(record)
	const query = `INSERT INTO attendance (id, user_id, date, status, time, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, date) DO NOTHING RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query, record.ID, record.UserID, record.Date, record.Status, record.Time, record.CreatedAt, record.UpdatedAt).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// Upsert writes the record, merging into the existing (user, date) row when present.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	prepareAttendance(record)
	query := `INSERT INTO attendance (id, user_id, date, status, time, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, date)
DO UPDATE SET status = EXCLUDED.status, time = EXCLUDED.time, updated_at = EXCLUDED.updated_at
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.UserID, record.Date, record.Status, record.Time, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// UpdateStatus changes only the status of one record; it reports false when the id is unknown.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (bool, error) {
	const query = `UPDATE attendance SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update attendance status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update attendance status rows: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns every record of a user, newest first.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE user_id = $1 ORDER BY date DESC`
	records := make([]models.AttendanceRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list attendance by user: %w", err)
	}
	return records, nil
}

// UserRange returns a user's records with from <= date <= to, oldest first.
func (r *AttendanceRepository) UserRange(ctx context.Context, userID string, from, to time.Time) ([]models.ReportEntry, error) {
	const query = `SELECT date, status, time FROM attendance
WHERE user_id = $1 AND date BETWEEN $2 AND $3
ORDER BY date ASC`
	entries := make([]models.ReportEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("user attendance range: %w", err)
	}
	return entries, nil
}

// SystemRange returns every user's records in the range joined with current usernames.
func (r *AttendanceRepository) SystemRange(ctx context.Context, from, to time.Time) ([]models.ReportEntry, error) {
	const query = `SELECT u.username, a.date, a.status, a.time
FROM attendance a
JOIN users u ON u.id = a.user_id
WHERE a.date BETWEEN $1 AND $2
ORDER BY a.date ASC, u.username ASC`
	entries := make([]models.ReportEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, from, to); err != nil {
		return nil, fmt.Errorf("system attendance range: %w", err)
	}
	return entries, nil
}

func prepareAttendance(record *models.AttendanceRecord) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

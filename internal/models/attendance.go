package models

import "time"

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format for the time-of-day of a mark.
	ClockLayout = "15:04:05"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one user's attendance for one calendar day.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Time      *string          `db:"time" json:"time,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// MarkOutcome tells whether a self-service mark created a record.
type MarkOutcome string

const (
	MarkOutcomeCreated       MarkOutcome = "created"
	MarkOutcomeAlreadyMarked MarkOutcome = "already_marked"
)

// MarkResult is returned from a self-service mark.
type MarkResult struct {
	Outcome  MarkOutcome `json:"outcome"`
	RecordID string      `json:"record_id,omitempty"`
	Date     string      `json:"date"`
	Time     string      `json:"time,omitempty"`
	Notice   Notice      `json:"-"`
}

// AddAttendanceRequest is the admin backfill payload.
type AddAttendanceRequest struct {
	UserID string           `json:"user_id" validate:"required,uuid"`
	Date   string           `json:"date" validate:"required,datetime=2006-01-02"`
	Status AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Time   string           `json:"time" validate:"omitempty,datetime=15:04:05"`
}

// EditAttendanceRequest changes only the status of an existing record.
type EditAttendanceRequest struct {
	Status AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
}

// PresentCount is the aggregated number of present days per user.
type PresentCount struct {
	UserID       string `db:"user_id"`
	DaysAttended int    `db:"days_attended"`
}

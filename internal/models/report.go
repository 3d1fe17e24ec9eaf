package models

import "time"

// ReportQuery is the inclusive date range of a report, as sent by the caller.
type ReportQuery struct {
	From   string `form:"from" validate:"required,datetime=2006-01-02"`
	To     string `form:"to" validate:"required,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// ReportEntry is one attendance line in a report.
type ReportEntry struct {
	Username string           `db:"username" json:"username,omitempty"`
	Date     time.Time        `db:"date" json:"date"`
	Status   AttendanceStatus `db:"status" json:"status"`
	Time     *string          `db:"time" json:"time,omitempty"`
}

// UserReport is a single user's attendance over a range, oldest first.
type UserReport struct {
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Entries  []ReportEntry `json:"entries"`
}

// SystemReport is every user's attendance over a range, oldest first.
type SystemReport struct {
	From    string        `json:"from"`
	To      string        `json:"to"`
	Entries []ReportEntry `json:"entries"`
}

package models

import "time"

// LeaveStatus is the lifecycle state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// Decision reports whether the status is a terminal admin decision.
func (s LeaveStatus) Decision() bool {
	return s == LeaveStatusApproved || s == LeaveStatusRejected
}

// LeaveRequest is a user's request to be excused on a date.
// Username is populated only by joined listings.
type LeaveRequest struct {
	ID        string      `db:"id" json:"id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Username  string      `db:"username" json:"username,omitempty"`
	Date      time.Time   `db:"date" json:"date"`
	Reason    string      `db:"reason" json:"reason"`
	Status    LeaveStatus `db:"status" json:"status"`
	DecidedBy *string     `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// CreateLeaveRequest is the self-service leave payload.
type CreateLeaveRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

// LeaveFilter narrows admin listings.
type LeaveFilter struct {
	Status *LeaveStatus
	UserID string
}

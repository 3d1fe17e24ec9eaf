package models

import "fmt"

// Notice is the user-facing message an operation reports back.
type Notice string

const (
	NoticeAlreadyMarked       Notice = "Already marked"
	NoticeLeaveRequested      Notice = "Leave requested"
	NoticeLeaveApproved       Notice = "Leave approved"
	NoticeLeaveRejected       Notice = "Leave rejected"
	NoticeAttendanceAdded     Notice = "Attendance added"
	NoticeAttendanceUpdated   Notice = "Attendance updated."
	NoticeUserDeleted         Notice = "User deleted successfully."
	NoticeGradesUpdated       Notice = "Grades updated"
	NoticeGradingPolicyUpdate Notice = "Grading system updated and grades assigned!"
	NoticeRegistered          Notice = "Registration successful!"
	NoticeDuplicateIdentity   Notice = "Username or Email already exists."
	NoticeProfileUpdated      Notice = "Updated"
	NoticeRoleUpdated         Notice = "Role updated"
	NoticePasswordChanged     Notice = "Password changed"
	NoticeLoggedOut           Notice = "Logged out"
	NoticeInvalidCredentials  Notice = "Invalid credentials"
)

// NoticeMarkedAt is the notice for a fresh attendance mark, stamped with the clock time.
func NoticeMarkedAt(clock string) Notice {
	return Notice(fmt.Sprintf("Attendance marked at %s", clock))
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-api/internal/models"
)

// LeaveRepository persists leave requests.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create stores a new request; status defaults to pending.
func (r *LeaveRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.LeaveStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO leave_requests (id, user_id, date, reason, status, created_at) VALUES (:id, :user_id, :date, :reason, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// UpdateStatus overwrites the status regardless of its current value and records
// who decided. It reports false when the id is unknown.
func (r *LeaveRepository) UpdateStatus(ctx context.Context, id string, status models.LeaveStatus, decidedBy string) (bool, error) {
	const query = `UPDATE leave_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update leave status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update leave status rows: %w", err)
	}
	return n > 0, nil
}

// List returns requests joined with the requester's username, newest first.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("lr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("lr.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT lr.id, lr.user_id, u.username, lr.date, lr.reason, lr.status, lr.decided_by, lr.decided_at, lr.created_at
FROM leave_requests lr
JOIN users u ON u.id = lr.user_id
%s
ORDER BY lr.date DESC, lr.created_at DESC`, where)

	requests := make([]models.LeaveRequest, 0)
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return requests, nil
}

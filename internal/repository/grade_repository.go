package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-api/internal/models"
)

// GradeRepository owns the grade snapshot table.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Classifier maps a present-day count to a grade letter.
type Classifier func(daysAttended int) models.GradeLetter

// ReplaceAll recomputes the whole snapshot in one transaction: it counts present
// days per user, deletes every grade row and inserts one row per counted user.
// Readers see either the previous snapshot or the new one.
func (r *GradeRepository) ReplaceAll(ctx context.Context, classify Classifier) (graded []models.GradeRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grading run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serialises concurrent runs; plain readers are not blocked.
	if _, err = tx.ExecContext(ctx, `LOCK TABLE grades IN EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock grades: %w", err)
	}

	var counts []models.PresentCount
	const aggregate = `SELECT user_id, COUNT(*) AS days_attended FROM attendance WHERE status = $1 GROUP BY user_id ORDER BY user_id`
	if err = tx.SelectContext(ctx, &counts, aggregate, models.AttendanceStatusPresent); err != nil {
		return nil, fmt.Errorf("aggregate present days: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM grades`); err != nil {
		return nil, fmt.Errorf("clear grades: %w", err)
	}

	now := time.Now().UTC()
	graded = make([]models.GradeRecord, 0, len(counts))
	const insert = `INSERT INTO grades (id, user_id, days_attended, grade, computed_at) VALUES ($1, $2, $3, $4, $5)`
	for _, c := range counts {
		rec := models.GradeRecord{
			ID:           uuid.NewString(),
			UserID:       c.UserID,
			DaysAttended: c.DaysAttended,
			Grade:        classify(c.DaysAttended),
			ComputedAt:   now,
		}
		if _, err = tx.ExecContext(ctx, insert, rec.ID, rec.UserID, rec.DaysAttended, rec.Grade, rec.ComputedAt); err != nil {
			return nil, fmt.Errorf("insert grade: %w", err)
		}
		graded = append(graded, rec)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grading run: %w", err)
	}
	return graded, nil
}

// List returns the current snapshot with usernames where the user still exists.
func (r *GradeRepository) List(ctx context.Context) ([]models.GradeRecord, error) {
	const query = `SELECT g.id, g.user_id, u.username, g.days_attended, g.grade, g.computed_at
FROM grades g
LEFT JOIN users u ON u.id = g.user_id
ORDER BY g.days_attended DESC, u.username ASC`
	records := make([]models.GradeRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return records, nil
}

package service

import (
	"time"

	"github.com/noah-isme/attendance-api/internal/models"
)

// parseDate reads a calendar date as UTC midnight so the stored DATE never shifts.
func parseDate(raw string) (time.Time, error) {
	return time.Parse(models.DateLayout, raw)
}

// calendarDay returns the UTC-midnight calendar date of t as seen in t's location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

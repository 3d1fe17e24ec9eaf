package models

import (
	"fmt"
	"strconv"
	"time"
)

// GradeFloorD is the fixed minimum number of present days for a D.
const GradeFloorD = 10

// GradeLetter is the outcome of classifying an attendance count.
type GradeLetter string

const (
	GradeA GradeLetter = "A"
	GradeB GradeLetter = "B"
	GradeC GradeLetter = "C"
	GradeD GradeLetter = "D"
	GradeF GradeLetter = "F"
)

// Configuration keys holding the persisted grading policy.
const (
	ConfigKeyGradeThresholdA = "grade_threshold_a"
	ConfigKeyGradeThresholdB = "grade_threshold_b"
	ConfigKeyGradeThresholdC = "grade_threshold_c"
)

// GradingPolicy holds the minimum present days for A, B and C.
type GradingPolicy struct {
	A int `json:"a" validate:"required,gt=0"`
	B int `json:"b" validate:"required,gt=0"`
	C int `json:"c" validate:"required,gt=0"`
}

// DefaultGradingPolicy is used until an admin configures thresholds.
func DefaultGradingPolicy() GradingPolicy {
	return GradingPolicy{A: 26, B: 20, C: 15}
}

// Validate requires strictly descending cut-points above the D floor.
func (p GradingPolicy) Validate() error {
	if !(p.A > p.B && p.B > p.C && p.C > GradeFloorD) {
		return fmt.Errorf("thresholds must satisfy A > B > C > %d (got A=%d B=%d C=%d)", GradeFloorD, p.A, p.B, p.C)
	}
	return nil
}

// Classify maps a present-day count to a letter, checking from A downwards.
func (p GradingPolicy) Classify(daysAttended int) GradeLetter {
	switch {
	case daysAttended >= p.A:
		return GradeA
	case daysAttended >= p.B:
		return GradeB
	case daysAttended >= p.C:
		return GradeC
	case daysAttended >= GradeFloorD:
		return GradeD
	default:
		return GradeF
	}
}

// Configurations renders the policy as configuration rows.
func (p GradingPolicy) Configurations(updatedBy *string) []Configuration {
	row := func(key string, v int) Configuration {
		return Configuration{Key: key, Value: strconv.Itoa(v), Type: ConfigurationTypeInteger, UpdatedBy: updatedBy}
	}
	return []Configuration{
		row(ConfigKeyGradeThresholdA, p.A),
		row(ConfigKeyGradeThresholdB, p.B),
		row(ConfigKeyGradeThresholdC, p.C),
	}
}

// GradingPolicyFromConfigurations rebuilds a policy; ok is false unless all three keys parse.
func GradingPolicyFromConfigurations(cfgs []Configuration) (GradingPolicy, bool) {
	var p GradingPolicy
	seen := 0
	for _, cfg := range cfgs {
		v, err := strconv.Atoi(cfg.Value)
		if err != nil {
			return GradingPolicy{}, false
		}
		switch cfg.Key {
		case ConfigKeyGradeThresholdA:
			p.A = v
		case ConfigKeyGradeThresholdB:
			p.B = v
		case ConfigKeyGradeThresholdC:
			p.C = v
		default:
			continue
		}
		seen++
	}
	return p, seen == 3
}

// GradeRecord is one row of the grade snapshot.
// Username is nil when the user was deleted after the run.
type GradeRecord struct {
	ID           string      `db:"id" json:"id"`
	UserID       string      `db:"user_id" json:"user_id"`
	Username     *string     `db:"username" json:"username,omitempty"`
	DaysAttended int         `db:"days_attended" json:"days_attended"`
	Grade        GradeLetter `db:"grade" json:"grade"`
	ComputedAt   time.Time   `db:"computed_at" json:"computed_at"`
}

// GradingRun summarises a completed recompute.
type GradingRun struct {
	Policy GradingPolicy `json:"policy"`
	Graded int           `json:"graded"`
	RanAt  time.Time     `json:"ran_at"`
	Notice Notice        `json:"-"`
}

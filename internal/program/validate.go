package program

import (
	"errors"
	"fmt"

	"github.com/claude/physcio/internal/models"
)

var (
	// ErrMalformedPlan is returned when a plan does not have the weekly
	// structure the tracker depends on.
	ErrMalformedPlan = errors.New("malformed plan")
	// ErrInvalidSessionsPerWeek is returned for a session quota below 1.
	ErrInvalidSessionsPerWeek = errors.New("sessions per week must be at least 1")
	// ErrNoActiveProgram is returned by operations that need an active plan.
	ErrNoActiveProgram = errors.New("no active program")
	// ErrInconsistentRecord is returned when stored program state breaks
	// the progress invariants.
	ErrInconsistentRecord = errors.New("inconsistent program state")
)

// ValidatePlan checks durationWeeks >= 1, one weekly plan per week and
// week numbers 1..durationWeeks in order. Exercise content is not checked.
func ValidatePlan(plan *models.ExercisePlan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan is missing", ErrMalformedPlan)
	}
	if plan.DurationWeeks < 1 {
		return fmt.Errorf("%w: durationWeeks is %d", ErrMalformedPlan, plan.DurationWeeks)
	}
	if len(plan.WeeklyPlans) != plan.DurationWeeks {
		return fmt.Errorf("%w: %d weekly plans for %d weeks",
			ErrMalformedPlan, len(plan.WeeklyPlans), plan.DurationWeeks)
	}
	for i, wp := range plan.WeeklyPlans {
		if wp.Week != i+1 {
			return fmt.Errorf("%w: weekly plan %d is numbered %d", ErrMalformedPlan, i+1, wp.Week)
		}
	}
	return nil
}

// CheckRecord verifies the program slot of a user record: plan and progress
// are both set or both nil, and progress agrees with the plan and with its
// own derived fields.
func CheckRecord(user models.UserRecord) error {
	switch {
	case user.ActivePlan == nil && user.ProgressData == nil:
		return nil
	case user.ActivePlan == nil:
		return fmt.Errorf("%w: progress without an active plan", ErrInconsistentRecord)
	case user.ProgressData == nil:
		return fmt.Errorf("%w: active plan without progress", ErrInconsistentRecord)
	}
	if err := ValidatePlan(user.ActivePlan); err != nil {
		return err
	}
	return checkProgress(user.ProgressData, user.ActivePlan)
}

func checkProgress(p *models.ProgramProgress, plan *models.ExercisePlan) error {
	if p.TotalWeeks != plan.DurationWeeks {
		return fmt.Errorf("%w: totalWeeks %d, plan has %d weeks",
			ErrInconsistentRecord, p.TotalWeeks, plan.DurationWeeks)
	}
	if p.SessionsPerWeek < 1 {
		return fmt.Errorf("%w: sessionsPerWeek is %d", ErrInconsistentRecord, p.SessionsPerWeek)
	}
	if len(p.WeeklyCompletions) != p.TotalWeeks {
		return fmt.Errorf("%w: %d weekly completions for %d weeks",
			ErrInconsistentRecord, len(p.WeeklyCompletions), p.TotalWeeks)
	}
	total := p.TotalSessions()
	if p.CompletedSessions < 0 || p.CompletedSessions > total {
		return fmt.Errorf("%w: completedSessions %d outside [0, %d]",
			ErrInconsistentRecord, p.CompletedSessions, total)
	}

	sum := 0
	for i, n := range p.WeeklyCompletions {
		if n < 0 || n > p.SessionsPerWeek {
			return fmt.Errorf("%w: week %d has %d completions", ErrInconsistentRecord, i+1, n)
		}
		sum += n
	}
	if sum != p.CompletedSessions {
		return fmt.Errorf("%w: weekly completions sum to %d, completedSessions is %d",
			ErrInconsistentRecord, sum, p.CompletedSessions)
	}

	if want := CurrentWeek(p.CompletedSessions, p.SessionsPerWeek, p.TotalWeeks); p.CurrentWeek != want {
		return fmt.Errorf("%w: currentWeek %d, want %d", ErrInconsistentRecord, p.CurrentWeek, want)
	}
	if want := Percent(p.CompletedSessions, total); p.ProgressPercent != want {
		return fmt.Errorf("%w: progressPercent %d, want %d", ErrInconsistentRecord, p.ProgressPercent, want)
	}
	return nil
}

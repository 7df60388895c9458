package program

import (
	"fmt"
	"time"

	"github.com/claude/physcio/internal/models"
)

// AcceptPlan makes plan the user's active program with fresh progress.
// An already active plan is recorded in history as Replaced.
func AcceptPlan(user models.UserRecord, plan *models.ExercisePlan, sessionsPerWeek int, now time.Time) (models.UserRecord, error) {
	if err := ValidatePlan(plan); err != nil {
		return user, err
	}
	if sessionsPerWeek < 1 {
		return user, fmt.Errorf("%w: got %d", ErrInvalidSessionsPerWeek, sessionsPerWeek)
	}

	next := user.Clone()
	if user.ActivePlan != nil {
		next.PlanHistory = append(next.PlanHistory, historyItem(user.ActivePlan, models.StatusReplaced, now))
	}
	next.ActivePlan = plan.Clone()
	next.ProgressData = NewProgress(plan.DurationWeeks, sessionsPerWeek)
	return next, nil
}

// RecordSession logs one session against the user's active program. When
// the session is the last one the plan is moved to history as Completed
// and the program slot is cleared. For OutcomeAlreadyComplete and
// OutcomeNoProgram the record is returned unchanged.
func RecordSession(user models.UserRecord, now time.Time) (models.UserRecord, Outcome) {
	progress, outcome := LogSession(user.ProgressData, user.ActivePlan)
	switch outcome {
	case OutcomeLogged:
		next := user.Clone()
		next.ProgressData = progress
		return next, outcome
	case OutcomePlanCompleted:
		return finish(user, models.StatusCompleted, now), outcome
	default:
		return user, outcome
	}
}

// CompletePlan moves the active plan to history as Completed regardless of
// how many sessions were logged.
func CompletePlan(user models.UserRecord, now time.Time) (models.UserRecord, error) {
	if !HasActiveProgram(user) {
		return user, ErrNoActiveProgram
	}
	return finish(user, models.StatusCompleted, now), nil
}

func finish(user models.UserRecord, status models.HistoryStatus, now time.Time) models.UserRecord {
	next := user.Clone()
	next.PlanHistory = append(next.PlanHistory, historyItem(user.ActivePlan, status, now))
	next.ActivePlan = nil
	next.ProgressData = nil
	return next
}

func historyItem(plan *models.ExercisePlan, status models.HistoryStatus, now time.Time) models.PlanHistoryItem {
	return models.PlanHistoryItem{
		PlanTitle:     plan.PlanTitle,
		DurationWeeks: plan.DurationWeeks,
		CompletedDate: now.UTC(),
		Status:        status,
	}
}

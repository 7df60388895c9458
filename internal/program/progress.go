package program

import "github.com/claude/physcio/internal/models"

// DefaultSessionsPerWeek is the weekly quota used when none is given.
const DefaultSessionsPerWeek = 3

// Outcome describes what a session log did. Only OutcomeLogged and
// OutcomePlanCompleted change state.
type Outcome string

const (
	OutcomeLogged          Outcome = "logged"
	OutcomePlanCompleted   Outcome = "plan_completed"
	OutcomeAlreadyComplete Outcome = "already_complete"
	OutcomeNoProgram       Outcome = "no_program"
)

// NewProgress returns zeroed progress for a freshly accepted plan.
func NewProgress(durationWeeks, sessionsPerWeek int) *models.ProgramProgress {
	return &models.ProgramProgress{
		ProgressPercent:   0,
		CurrentWeek:       1,
		CompletedSessions: 0,
		TotalWeeks:        durationWeeks,
		SessionsPerWeek:   sessionsPerWeek,
		WeeklyCompletions: make([]int, durationWeeks),
	}
}

// LogSession credits one session to progress.
//
// With OutcomeLogged the returned progress is a new value; the input is not
// modified. With OutcomePlanCompleted nil is returned and the caller must
// move the plan to history (RecordSession does this). OutcomeAlreadyComplete
// and OutcomeNoProgram return the input unchanged.
func LogSession(progress *models.ProgramProgress, plan *models.ExercisePlan) (*models.ProgramProgress, Outcome) {
	if progress == nil || plan == nil {
		return progress, OutcomeNoProgram
	}

	total := progress.TotalSessions()
	if progress.CompletedSessions >= total {
		return progress, OutcomeAlreadyComplete
	}

	completed := progress.CompletedSessions + 1
	if completed >= total {
		return nil, OutcomePlanCompleted
	}

	next := progress.Clone()

	// The credited week comes from the count before this session.
	weekIndex := progress.CompletedSessions / progress.SessionsPerWeek
	if weekIndex < len(next.WeeklyCompletions) {
		doneThisWeek := progress.CompletedSessions - weekIndex*progress.SessionsPerWeek
		next.WeeklyCompletions[weekIndex] = doneThisWeek + 1
	}

	next.CompletedSessions = completed
	next.CurrentWeek = CurrentWeek(completed, progress.SessionsPerWeek, progress.TotalWeeks)
	next.ProgressPercent = Percent(completed, total)
	return next, OutcomeLogged
}

// CurrentWeek returns min(totalWeeks, completed/sessionsPerWeek + 1).
func CurrentWeek(completed, sessionsPerWeek, totalWeeks int) int {
	if sessionsPerWeek < 1 {
		return 1
	}
	return min(totalWeeks, completed/sessionsPerWeek+1)
}

// Percent returns completed/total*100 rounded half up.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

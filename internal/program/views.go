package program

import "github.com/claude/physcio/internal/models"

// HasActiveProgram reports whether the user has both a plan and progress.
func HasActiveProgram(user models.UserRecord) bool {
	return user.ActivePlan != nil && user.ProgressData != nil
}

// IsProgramComplete reports whether every session of the program is logged.
func IsProgramComplete(progress *models.ProgramProgress) bool {
	if progress == nil {
		return false
	}
	return progress.CompletedSessions >= progress.TotalSessions()
}

// RemainingSessionsThisWeek returns how many sessions are left in the
// current week. A week whose quota was just filled reports 0 rather than a
// full new week.
func RemainingSessionsThisWeek(progress *models.ProgramProgress) int {
	if progress == nil || progress.SessionsPerWeek < 1 || IsProgramComplete(progress) {
		return 0
	}
	remaining := progress.SessionsPerWeek - progress.CompletedSessions%progress.SessionsPerWeek
	if remaining == progress.SessionsPerWeek && progress.CompletedSessions > 0 {
		return 0
	}
	return remaining
}

// CurrentWeekPlan returns the weekly plan for progress.CurrentWeek, or nil
// when there is no active program or the week is out of range.
func CurrentWeekPlan(user models.UserRecord) *models.WeeklyPlan {
	if !HasActiveProgram(user) {
		return nil
	}
	idx := user.ProgressData.CurrentWeek - 1
	if idx < 0 || idx >= len(user.ActivePlan.WeeklyPlans) {
		return nil
	}
	wp := user.ActivePlan.WeeklyPlans[idx]
	return &wp
}

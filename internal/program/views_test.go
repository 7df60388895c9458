package program

import (
	"errors"
	"testing"

	"github.com/claude/physcio/internal/models"
)

// TestHasActiveProgram verifies the predicate needs both plan and progress.
func TestHasActiveProgram(t *testing.T) {
	user := models.NewUserRecord("u1", "Ada", "ada@example.com")
	if HasActiveProgram(user) {
		t.Error("empty record reported active")
	}
	user.ActivePlan = testPlan("p", 2)
	if HasActiveProgram(user) {
		t.Error("plan without progress reported active")
	}
	user.ProgressData = NewProgress(2, 3)
	if !HasActiveProgram(user) {
		t.Error("plan with progress reported inactive")
	}
}

// TestIsProgramComplete verifies completion is reached at the total.
func TestIsProgramComplete(t *testing.T) {
	p := NewProgress(2, 3)
	if IsProgramComplete(p) {
		t.Error("fresh progress reported complete")
	}
	p.CompletedSessions = 6
	if !IsProgramComplete(p) {
		t.Error("full progress reported incomplete")
	}
	if IsProgramComplete(nil) {
		t.Error("nil progress reported complete")
	}
}

// TestRemainingSessionsThisWeek mirrors the tracker widget's countdown.
func TestRemainingSessionsThisWeek(t *testing.T) {
	tests := []struct {
		completed int
		want      int
	}{
		{0, 3},
		{1, 2},
		{2, 1},
		{3, 0},
		{4, 2},
		{12, 0},
	}
	for _, tt := range tests {
		p := NewProgress(4, 3)
		p.CompletedSessions = tt.completed
		if got := RemainingSessionsThisWeek(p); got != tt.want {
			t.Errorf("RemainingSessionsThisWeek(completed=%d) = %d, want %d", tt.completed, got, tt.want)
		}
	}
}

// TestCurrentWeekPlan verifies the weekly plan follows progress.
func TestCurrentWeekPlan(t *testing.T) {
	user := acceptedUser(t, 3, 1)
	if wp := CurrentWeekPlan(user); wp == nil || wp.Week != 1 {
		t.Fatalf("week plan = %+v, want week 1", wp)
	}
	user, _ = RecordSession(user, testNow)
	if wp := CurrentWeekPlan(user); wp == nil || wp.Week != 2 {
		t.Errorf("week plan = %+v, want week 2", wp)
	}
	if wp := CurrentWeekPlan(models.NewUserRecord("u2", "B", "b@example.com")); wp != nil {
		t.Errorf("week plan without program = %+v, want nil", wp)
	}
}

// TestCheckRecord verifies corrupt program slots are detected.
func TestCheckRecord(t *testing.T) {
	valid := acceptedUser(t, 4, 3)
	valid, _ = RecordSession(valid, testNow)

	tests := []struct {
		name   string
		mutate func(u *models.UserRecord)
		want   error
	}{
		{"valid", func(u *models.UserRecord) {}, nil},
		{"empty slot", func(u *models.UserRecord) { u.ActivePlan, u.ProgressData = nil, nil }, nil},
		{"plan only", func(u *models.UserRecord) { u.ProgressData = nil }, ErrInconsistentRecord},
		{"progress only", func(u *models.UserRecord) { u.ActivePlan = nil }, ErrInconsistentRecord},
		{"weeks mismatch", func(u *models.UserRecord) { u.ProgressData.TotalWeeks = 5 }, ErrInconsistentRecord},
		{"sum mismatch", func(u *models.UserRecord) { u.ProgressData.WeeklyCompletions[2] = 1 }, ErrInconsistentRecord},
		{"short completions", func(u *models.UserRecord) { u.ProgressData.WeeklyCompletions = []int{1} }, ErrInconsistentRecord},
		{"bad week", func(u *models.UserRecord) { u.ProgressData.CurrentWeek = 3 }, ErrInconsistentRecord},
		{"bad percent", func(u *models.UserRecord) { u.ProgressData.ProgressPercent = 50 }, ErrInconsistentRecord},
		{"malformed plan", func(u *models.UserRecord) { u.ActivePlan.WeeklyPlans[0].Week = 2 }, ErrMalformedPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid.Clone()
			tt.mutate(&u)
			err := CheckRecord(u)
			if tt.want == nil && err != nil {
				t.Fatalf("CheckRecord: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

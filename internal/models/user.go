package models

import "time"

// ProgramProgress is the derived tracking state for the active plan.
type ProgramProgress struct {
	ProgressPercent   int   `json:"progressPercent"`
	CurrentWeek       int   `json:"currentWeek"`
	CompletedSessions int   `json:"completedSessions"`
	TotalWeeks        int   `json:"totalWeeks"`
	SessionsPerWeek   int   `json:"sessionsPerWeek"`
	WeeklyCompletions []int `json:"weeklyCompletions"`
}

// TotalSessions is the number of sessions needed to finish the program.
func (p *ProgramProgress) TotalSessions() int {
	return p.TotalWeeks * p.SessionsPerWeek
}

// Clone returns a copy that does not share WeeklyCompletions.
func (p *ProgramProgress) Clone() *ProgramProgress {
	if p == nil {
		return nil
	}
	out := *p
	out.WeeklyCompletions = append([]int(nil), p.WeeklyCompletions...)
	return &out
}

// HistoryStatus records how a plan left the active slot.
type HistoryStatus string

const (
	StatusCompleted HistoryStatus = "Completed"
	StatusReplaced  HistoryStatus = "Replaced"
)

// PlanHistoryItem is an immutable snapshot of a plan that ended.
type PlanHistoryItem struct {
	PlanTitle     string        `json:"planTitle"`
	DurationWeeks int           `json:"durationWeeks"`
	CompletedDate time.Time     `json:"completedDate"`
	Status        HistoryStatus `json:"status"`
}

// AdminMessage is an inbox entry sent by an administrator.
type AdminMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// UserRecord is everything stored for one user. ActivePlan and ProgressData
// are either both set or both nil.
type UserRecord struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Age               string            `json:"age"`
	Weight            string            `json:"weight"`
	Height            string            `json:"height"`
	IsPremium         bool              `json:"isPremium"`
	ActivePlan        *ExercisePlan     `json:"activePlan"`
	ProgressData      *ProgramProgress  `json:"progressData"`
	MessagesFromAdmin []AdminMessage    `json:"messagesFromAdmin"`
	PlanHistory       []PlanHistoryItem `json:"planHistory"`
}

// Clone returns a deep copy of the record.
func (u UserRecord) Clone() UserRecord {
	out := u
	out.ActivePlan = u.ActivePlan.Clone()
	out.ProgressData = u.ProgressData.Clone()
	out.MessagesFromAdmin = append(make([]AdminMessage, 0, len(u.MessagesFromAdmin)), u.MessagesFromAdmin...)
	out.PlanHistory = append(make([]PlanHistoryItem, 0, len(u.PlanHistory)), u.PlanHistory...)
	return out
}

// Default profile values for newly registered users.
const (
	DefaultAge    = "30"
	DefaultWeight = "70"
	DefaultHeight = "175"
)

// NewUserRecord returns a record with default profile values and empty
// program state.
func NewUserRecord(id, name, email string) UserRecord {
	return UserRecord{
		ID:                id,
		Name:              name,
		Email:             email,
		Age:               DefaultAge,
		Weight:            DefaultWeight,
		Height:            DefaultHeight,
		MessagesFromAdmin: []AdminMessage{},
		PlanHistory:       []PlanHistoryItem{},
	}
}

package models

// Exercise is a single prescribed movement inside a weekly plan.
type Exercise struct {
	Name  string `json:"name"`
	Sets  string `json:"sets"`
	Reps  string `json:"reps"`
	Notes string `json:"notes"`
}

// WeeklyPlan holds one week of a program. Week is 1-indexed and matches
// the plan's position in ExercisePlan.WeeklyPlans.
type WeeklyPlan struct {
	Week      int        `json:"week"`
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

// ExercisePlan is a generated multi-week program. It is treated as
// immutable once generated.
type ExercisePlan struct {
	PlanTitle     string       `json:"planTitle"`
	DurationWeeks int          `json:"durationWeeks"`
	WeeklyPlans   []WeeklyPlan `json:"weeklyPlans"`
}

// Clone returns a deep copy so callers can hand a plan to another record
// without sharing slices.
func (p *ExercisePlan) Clone() *ExercisePlan {
	if p == nil {
		return nil
	}
	out := &ExercisePlan{
		PlanTitle:     p.PlanTitle,
		DurationWeeks: p.DurationWeeks,
		WeeklyPlans:   make([]WeeklyPlan, len(p.WeeklyPlans)),
	}
	for i, wp := range p.WeeklyPlans {
		out.WeeklyPlans[i] = WeeklyPlan{
			Week:      wp.Week,
			Focus:     wp.Focus,
			Exercises: append([]Exercise(nil), wp.Exercises...),
		}
	}
	return out
}

// PostureDeviation is one finding of a posture analysis.
type PostureDeviation struct {
	Area      string `json:"area"`
	Deviation string `json:"deviation"`
}

// PostureAnalysisResult is returned by the vision model for an uploaded photo.
type PostureAnalysisResult struct {
	Deviations      []PostureDeviation `json:"deviations"`
	RiskLevel       string             `json:"riskLevel"`
	Recommendations []string           `json:"recommendations"`
}

// Risk levels reported by posture analysis.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Chat senders.
const (
	SenderUser   = "user"
	SenderPhysio = "physio"
)

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

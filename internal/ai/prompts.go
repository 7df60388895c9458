package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
)

const chatSystemInstruction = `You are an AI assistant for Physcio Connect, a physiotherapy application.
Act as a helpful and empathetic virtual physiotherapist.
Give general advice, answer questions about exercises and offer encouragement.
Always end every message with a brief disclaimer that you are not a real medical professional and the user should consult a doctor for any serious medical concerns.
Example disclaimer: "Remember, I'm an AI assistant. Please consult a healthcare professional for medical advice."
Do not provide a medical diagnosis. Keep responses concise and easy to understand.`

const postureInstructions = `Analyze the posture of the person in this image.
Identify key postural deviations from a side-view perspective.
Assess the overall risk level as Low, Medium, or High.
Provide actionable recommendations, including specific exercises, to help correct these deviations.`

const planShape = `{
  "planTitle": string,
  "durationWeeks": integer,
  "weeklyPlans": [
    {"week": integer, "focus": string,
     "exercises": [{"name": string, "sets": string, "reps": string, "notes": string}]}
  ]
}`

const postureShape = `{
  "deviations": [{"area": string, "deviation": string}],
  "riskLevel": "Low" | "Medium" | "High",
  "recommendations": [string]
}`

const jsonOnly = "The output must be a single valid JSON object with exactly this structure. Do not include any other text, markdown or explanation outside the JSON object.\nStructure:\n"

// BMI computes body mass index from weight in kg and height in cm given as
// profile strings. ok is false when either value is not a positive number.
func BMI(weight, height string) (bmi float64, category string, ok bool) {
	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil || w <= 0 {
		return 0, "", false
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(height), 64)
	if err != nil || h <= 0 {
		return 0, "", false
	}
	m := h / 100
	bmi = w / (m * m)
	switch {
	case bmi < 18.5:
		category = "underweight"
	case bmi < 25:
		category = "normal weight"
	case bmi < 30:
		category = "overweight"
	default:
		category = "obese"
	}
	return bmi, category, true
}

func planWeeks(req PlanRequest) int {
	if req.Weeks > 0 {
		return req.Weeks
	}
	return DefaultPlanWeeks
}

// planPrompt builds the plan request. withShape appends the JSON structure
// for providers without response schemas.
func planPrompt(req PlanRequest, withShape bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %d-week physiotherapy exercise plan for a person with the following details:\n", planWeeks(req))
	fmt.Fprintf(&b, "- Age: %s years\n", req.Age)
	fmt.Fprintf(&b, "- Weight: %s kg\n", req.Weight)
	fmt.Fprintf(&b, "- Height: %s cm\n", req.Height)
	if bmi, category, ok := BMI(req.Weight, req.Height); ok {
		fmt.Fprintf(&b, "- BMI: %.1f (%s)\n", bmi, category)
	}
	fmt.Fprintf(&b, "- Health Complaints/Goals: %s\n", req.Complaints)
	fmt.Fprintf(&b, "- Current Activity Level: %s\n\n", req.ActivityLevel)
	b.WriteString("The plan should be safe, progressive and tailored to these details.\n")
	b.WriteString("Consider the person's BMI and weight when suggesting exercise intensity and modifications.\n")
	b.WriteString("Include a mix of mobility, strengthening and stretching exercises appropriate for their physical condition.\n")
	fmt.Fprintf(&b, "Number the weeks 1 to %d, one weekly plan per week.\n", planWeeks(req))
	if withShape {
		b.WriteString(jsonOnly)
		b.WriteString(planShape)
	}
	return b.String()
}

func posturePrompt(withShape bool) string {
	if !withShape {
		return postureInstructions
	}
	return postureInstructions + "\n" + jsonOnly + postureShape
}

// decodePlan parses and validates model output as an exercise plan.
func decodePlan(raw string, req PlanRequest) (*models.ExercisePlan, error) {
	var plan models.ExercisePlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &plan); err != nil {
		return nil, fmt.Errorf("%w: decoding plan: %w", ErrBadResponse, err)
	}
	if err := program.ValidatePlan(&plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if plan.DurationWeeks != planWeeks(req) {
		return nil, fmt.Errorf("%w: got a %d-week plan, asked for %d", ErrBadResponse, plan.DurationWeeks, planWeeks(req))
	}
	return &plan, nil
}

// decodePosture parses model output as a posture analysis.
func decodePosture(raw string) (*models.PostureAnalysisResult, error) {
	var res models.PostureAnalysisResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		return nil, fmt.Errorf("%w: decoding posture analysis: %w", ErrBadResponse, err)
	}
	switch res.RiskLevel {
	case models.RiskLow, models.RiskMedium, models.RiskHigh:
	default:
		return nil, fmt.Errorf("%w: risk level %q", ErrBadResponse, res.RiskLevel)
	}
	if res.Deviations == nil || res.Recommendations == nil {
		return nil, fmt.Errorf("%w: posture analysis missing deviations or recommendations", ErrBadResponse)
	}
	return &res, nil
}

// stripFences removes a surrounding markdown code fence some models add
// despite being asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

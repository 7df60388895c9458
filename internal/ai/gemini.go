package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claude/physcio/internal/models"
	"google.golang.org/genai"
)

// Gemini calls the Gemini API with JSON response schemas.
type Gemini struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg Config, log *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Timeout: &cfg.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, log: log}, nil
}

var exerciseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":  {Type: genai.TypeString, Description: "Name of the exercise."},
		"sets":  {Type: genai.TypeString, Description: "Number of sets (e.g., '3')."},
		"reps":  {Type: genai.TypeString, Description: "Repetitions per set (e.g., '10-12')."},
		"notes": {Type: genai.TypeString, Description: "Brief instructions or points of focus."},
	},
	Required: []string{"name", "sets", "reps", "notes"},
}

var planSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"planTitle":     {Type: genai.TypeString, Description: "A catchy title for the exercise plan."},
		"durationWeeks": {Type: genai.TypeInteger, Description: "The total duration of the plan in weeks."},
		"weeklyPlans": {
			Type:        genai.TypeArray,
			Description: "One weekly plan per week, in order.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"week":      {Type: genai.TypeInteger, Description: "The week number, starting at 1."},
					"focus":     {Type: genai.TypeString, Description: "The main focus for this week."},
					"exercises": {Type: genai.TypeArray, Items: exerciseSchema},
				},
				Required: []string{"week", "focus", "exercises"},
			},
		},
	},
	Required: []string{"planTitle", "durationWeeks", "weeklyPlans"},
}

var postureSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"deviations": {
			Type:        genai.TypeArray,
			Description: "Identified postural deviations.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"area":      {Type: genai.TypeString, Description: "Body area (e.g., 'Head', 'Shoulders', 'Pelvis')."},
					"deviation": {Type: genai.TypeString, Description: "The deviation (e.g., 'Forward Head Posture')."},
				},
				Required: []string{"area", "deviation"},
			},
		},
		"riskLevel": {
			Type:        genai.TypeString,
			Description: "Overall risk assessment of the posture.",
			Enum:        []string{models.RiskLow, models.RiskMedium, models.RiskHigh},
		},
		"recommendations": {
			Type:        genai.TypeArray,
			Description: "Actionable recommendations and exercises to correct the posture.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"deviations", "riskLevel", "recommendations"},
}

// GeneratePlan asks the model for a plan matching planSchema.
func (g *Gemini) GeneratePlan(ctx context.Context, req PlanRequest) (*models.ExercisePlan, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(planPrompt(req, false)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   planSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("generating plan: %w", err)
	}
	plan, err := decodePlan(resp.Text(), req)
	if err != nil {
		g.log.Warn("gemini returned an unusable plan", "error", err)
		return nil, err
	}
	return plan, nil
}

// AnalyzePosture sends the image inline with the posture instructions.
func (g *Gemini) AnalyzePosture(ctx context.Context, image []byte, mimeType string) (*models.PostureAnalysisResult, error) {
	if err := checkImage(image, mimeType); err != nil {
		return nil, err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(posturePrompt(false)),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents,
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   postureSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("analyzing posture: %w", err)
	}
	return decodePosture(resp.Text())
}

// Chat continues the conversation with the physiotherapist instruction.
func (g *Gemini) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	if err := checkChat(history); err != nil {
		return "", err
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Sender != models.SenderUser {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents,
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(chatSystemInstruction, genai.RoleUser),
		})
	if err != nil {
		return "", fmt.Errorf("generating chat reply: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", fmt.Errorf("%w: empty chat reply", ErrBadResponse)
	}
	return reply, nil
}

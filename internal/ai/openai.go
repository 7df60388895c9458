package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/claude/physcio/internal/models"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, or a self-hosted gateway).
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(cfg Config, log *slog.Logger) *OpenAI {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GeneratePlan requests a JSON object describing the plan.
func (c *OpenAI) GeneratePlan(ctx context.Context, req PlanRequest) (*models.ExercisePlan, error) {
	out, err := c.complete(ctx, completionRequest{
		Messages:       []chatMessage{{Role: "user", Content: planPrompt(req, true)}},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("generating plan: %w", err)
	}
	plan, err := decodePlan(out, req)
	if err != nil {
		c.log.Warn("provider returned an unusable plan", "model", c.model, "error", err)
		return nil, err
	}
	return plan, nil
}

// AnalyzePosture sends the image as a data URL. Vision requests go without
// response_format, which several compatible servers reject for images.
func (c *OpenAI) AnalyzePosture(ctx context.Context, image []byte, mimeType string) (*models.PostureAnalysisResult, error) {
	if err := checkImage(image, mimeType); err != nil {
		return nil, err
	}
	parts := []contentPart{
		{Type: "text", Text: posturePrompt(true)},
		{Type: "image_url", ImageURL: &imageURL{
			URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image),
		}},
	}
	out, err := c.complete(ctx, completionRequest{
		Messages: []chatMessage{{Role: "user", Content: parts}},
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing posture: %w", err)
	}
	return decodePosture(out)
}

// Chat sends the system instruction followed by the conversation.
func (c *OpenAI) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	if err := checkChat(history); err != nil {
		return "", err
	}
	msgs := make([]chatMessage, 0, len(history)+1)
	msgs = append(msgs, chatMessage{Role: "system", Content: chatSystemInstruction})
	for _, m := range history {
		role := "assistant"
		if m.Sender == models.SenderUser {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
	}
	out, err := c.complete(ctx, completionRequest{Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("generating chat reply: %w", err)
	}
	return out, nil
}

func (c *OpenAI) complete(ctx context.Context, body completionRequest) (string, error) {
	body.Model = c.model
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decoding completion: %w", ErrBadResponse, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrBadResponse)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

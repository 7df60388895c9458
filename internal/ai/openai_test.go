package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeCompletions serves /chat/completions, records the last request and
// answers with content.
func fakeCompletions(t *testing.T, content string, status int) (*httptest.Server, *completionRequest) {
	t.Helper()
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestOpenAI(baseURL string) *OpenAI {
	return NewOpenAI(Config{APIKey: "sk-test", BaseURL: baseURL + "/v1/", Model: "test-model"}, discard)
}

func planJSON(weeks int) string {
	plan := models.ExercisePlan{PlanTitle: "Strong Back", DurationWeeks: weeks}
	for w := 1; w <= weeks; w++ {
		plan.WeeklyPlans = append(plan.WeeklyPlans, models.WeeklyPlan{
			Week: w, Focus: fmt.Sprintf("focus %d", w),
			Exercises: []models.Exercise{{Name: "Plank", Sets: "3", Reps: "30s", Notes: "neutral spine"}},
		})
	}
	b, _ := json.Marshal(plan)
	return string(b)
}

// TestOpenAIGeneratePlan verifies the request shape and that a valid plan
// is decoded.
func TestOpenAIGeneratePlan(t *testing.T) {
	srv, got := fakeCompletions(t, "```json\n"+planJSON(4)+"\n```", http.StatusOK)
	c := newTestOpenAI(srv.URL)

	plan, err := c.GeneratePlan(context.Background(), PlanRequest{
		Age: "30", Weight: "70", Height: "175", Complaints: "low back pain", ActivityLevel: "sedentary",
	})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if plan.PlanTitle != "Strong Back" || len(plan.WeeklyPlans) != 4 {
		t.Errorf("plan = %+v", plan)
	}

	if got.Model != "test-model" {
		t.Errorf("model = %q, want test-model", got.Model)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", got.ResponseFormat)
	}
	prompt, _ := got.Messages[0].Content.(string)
	if !strings.Contains(prompt, "BMI: 22.9 (normal weight)") {
		t.Errorf("prompt missing BMI line:\n%s", prompt)
	}
}

// TestOpenAIGeneratePlanRejectsBadPlans verifies malformed model output is
// reported as ErrBadResponse.
func TestOpenAIGeneratePlanRejectsBadPlans(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"not json", "Sure! Here is a plan.", ErrBadResponse},
		{"wrong length", planJSON(3), ErrBadResponse},
		{"weeks out of order", strings.Replace(planJSON(4), `"week":2`, `"week":7`, 1), program.ErrMalformedPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeCompletions(t, tt.content, http.StatusOK)
			_, err := newTestOpenAI(srv.URL).GeneratePlan(context.Background(), PlanRequest{Weight: "70", Height: "175"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestOpenAIAnalyzePosture verifies the image is sent as a data URL without
// a response format.
func TestOpenAIAnalyzePosture(t *testing.T) {
	srv, got := fakeCompletions(t,
		`{"deviations":[{"area":"Head","deviation":"Forward Head Posture"}],"riskLevel":"Medium","recommendations":["Chin tucks"]}`,
		http.StatusOK)

	res, err := newTestOpenAI(srv.URL).AnalyzePosture(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("AnalyzePosture: %v", err)
	}
	if res.RiskLevel != models.RiskMedium || len(res.Deviations) != 1 {
		t.Errorf("result = %+v", res)
	}
	if got.ResponseFormat != nil {
		t.Errorf("response_format = %+v, want none", got.ResponseFormat)
	}
	raw, _ := json.Marshal(got.Messages[0].Content)
	if !strings.Contains(string(raw), "data:image/jpeg;base64,/9g=") {
		t.Errorf("content missing data URL: %s", raw)
	}

	if _, err := newTestOpenAI(srv.URL).AnalyzePosture(context.Background(), nil, "image/jpeg"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty image err = %v, want ErrBadRequest", err)
	}
}

// TestOpenAIChat verifies roles are mapped and the system instruction leads.
func TestOpenAIChat(t *testing.T) {
	srv, got := fakeCompletions(t, "Try gentle stretches. Remember, I'm an AI assistant.", http.StatusOK)

	reply, err := newTestOpenAI(srv.URL).Chat(context.Background(), []models.ChatMessage{
		{Sender: models.SenderUser, Text: "My neck hurts"},
		{Sender: models.SenderPhysio, Text: "Since when?"},
		{Sender: models.SenderUser, Text: "Two days"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.HasPrefix(reply, "Try gentle stretches") {
		t.Errorf("reply = %q", reply)
	}

	roles := make([]string, len(got.Messages))
	for i, m := range got.Messages {
		roles[i] = m.Role
	}
	if want := "system,user,assistant,user"; strings.Join(roles, ",") != want {
		t.Errorf("roles = %v, want %s", roles, want)
	}

	_, err = newTestOpenAI(srv.URL).Chat(context.Background(), []models.ChatMessage{{Sender: models.SenderPhysio, Text: "hi"}})
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("physio-last err = %v, want ErrBadRequest", err)
	}
}

// TestOpenAIHTTPError verifies non-200 responses surface the status code.
func TestOpenAIHTTPError(t *testing.T) {
	srv, _ := fakeCompletions(t, "", http.StatusUnauthorized)
	_, err := newTestOpenAI(srv.URL).Chat(context.Background(), []models.ChatMessage{{Sender: models.SenderUser, Text: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want status 401", err)
	}
}

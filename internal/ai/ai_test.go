package ai

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestBMI verifies the index and category thresholds.
func TestBMI(t *testing.T) {
	tests := []struct {
		weight, height string
		want           float64
		category       string
		ok             bool
	}{
		{"70", "175", 22.86, "normal weight", true},
		{"50", "175", 16.33, "underweight", true},
		{"80", "175", 26.12, "overweight", true},
		{"110", "175", 35.92, "obese", true},
		{" 70 ", "175", 22.86, "normal weight", true},
		{"", "175", 0, "", false},
		{"70", "0", 0, "", false},
		{"seventy", "175", 0, "", false},
	}
	for _, tt := range tests {
		bmi, category, ok := BMI(tt.weight, tt.height)
		if ok != tt.ok || category != tt.category || math.Abs(bmi-tt.want) > 0.01 {
			t.Errorf("BMI(%q, %q) = %.2f, %q, %v; want %.2f, %q, %v",
				tt.weight, tt.height, bmi, category, ok, tt.want, tt.category, tt.ok)
		}
	}
}

// TestNewSelectsProvider verifies provider selection and configuration errors.
func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{}, discard)
	if err != nil {
		t.Fatalf("New(empty): %v", err)
	}
	if _, err := p.GeneratePlan(ctx, PlanRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("disabled provider err = %v, want ErrNotConfigured", err)
	}

	p, err = New(ctx, Config{Provider: ProviderGroq, APIKey: "k"}, discard)
	if err != nil {
		t.Fatalf("New(groq): %v", err)
	}
	groq, ok := p.(*OpenAI)
	if !ok {
		t.Fatalf("groq provider type = %T, want *OpenAI", p)
	}
	if groq.baseURL != "https://api.groq.com/openai/v1" || groq.model == "" {
		t.Errorf("groq defaults = %q, %q", groq.baseURL, groq.model)
	}

	if _, err := New(ctx, Config{Provider: ProviderCustom, APIKey: "k"}, discard); err == nil {
		t.Error("custom provider without base URL should fail")
	}
	if _, err := New(ctx, Config{Provider: "palm", APIKey: "k"}, discard); err == nil {
		t.Error("unknown provider should fail")
	}
}

// TestInstrumentCountsCalls verifies calls are counted by operation and result.
func TestInstrumentCountsCalls(t *testing.T) {
	m := metrics.NewTestManager()
	p := Instrument(Disabled{}, m)

	p.Chat(context.Background(), []models.ChatMessage{{Sender: models.SenderUser, Text: "hi"}})
	p.GeneratePlan(context.Background(), PlanRequest{})

	if got := testutil.ToFloat64(m.CounterAICalls.WithLabelValues("chat", "not_configured")); got != 1 {
		t.Errorf("chat not_configured = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CounterAICalls.WithLabelValues("plan", "not_configured")); got != 1 {
		t.Errorf("plan not_configured = %v, want 1", got)
	}
}

// TestDecodePosture verifies risk levels outside the enum are rejected.
func TestDecodePosture(t *testing.T) {
	if _, err := decodePosture(`{"deviations":[],"riskLevel":"Severe","recommendations":[]}`); !errors.Is(err, ErrBadResponse) {
		t.Errorf("err = %v, want ErrBadResponse", err)
	}
	if _, err := decodePosture(`{"riskLevel":"Low"}`); !errors.Is(err, ErrBadResponse) {
		t.Errorf("missing lists err = %v, want ErrBadResponse", err)
	}
	res, err := decodePosture(`{"deviations":[],"riskLevel":"Low","recommendations":["walk"]}`)
	if err != nil || res.RiskLevel != models.RiskLow {
		t.Errorf("decodePosture = %+v, %v", res, err)
	}
}

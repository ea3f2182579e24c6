package recommendations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenhealth/patient-portal/internal/chat"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.recommendations")

var (
	// ErrOnboardingIncomplete is returned when the patient has not
	// answered the questionnaire yet.
	ErrOnboardingIncomplete = errors.New("onboarding questionnaire not completed")

	// ErrGenerationFailed is returned when the model reply could not be
	// produced or parsed.
	ErrGenerationFailed = errors.New("failed to generate recommendations")
)

// Recommendation is one personalized wellness suggestion derived from a
// questionnaire answer.
type Recommendation struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	Recommendation string `json:"recommendation"`
	Type           string `json:"type"`
}

// Service generates wellness recommendations from onboarding answers.
type Service struct {
	patients  patients.Repository
	llm       chat.LLMClient
	logger    *logging.Logger
	maxTokens int
}

// NewService builds a recommendations service.
func NewService(repo patients.Repository, llm chat.LLMClient, logger *logging.Logger, maxTokens int) *Service {
	if repo == nil {
		panic("recommendations: patients repository cannot be nil")
	}
	if llm == nil {
		panic("recommendations: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Service{patients: repo, llm: llm, logger: logger, maxTokens: maxTokens}
}

// Generate produces recommendations for the patient's questionnaire
// answers.
func (s *Service) Generate(ctx context.Context, patientID string) ([]Recommendation, error) {
	ctx, span := tracer.Start(ctx, "recommendations.Service.Generate", trace.WithAttributes(
		attribute.String("patient.id", patientID),
	))
	defer span.End()

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("recommendations: load patient failed: %w", err)
	}
	if !patient.OnboardingCompleted {
		return nil, ErrOnboardingIncomplete
	}

	resp, err := s.llm.Complete(ctx, chat.LLMRequest{
		System:   []string{recommendationSystemPrompt},
		Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: buildPrompt(patient.OnboardingAnswers)}},
		// Structured output needs determinism more than variety.
		Temperature: 0.2,
		MaxTokens:   int32(s.maxTokens),
	})
	if err != nil {
		s.logger.Error("recommendation completion failed", "patient_id", patientID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	recs, err := parseRecommendations(resp.Text)
	if err != nil {
		s.logger.Error("recommendation reply unparseable", "patient_id", patientID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return recs, nil
}

const recommendationSystemPrompt = "You are a wellness advisor. Based on the patient's onboarding answers, produce practical health recommendations. Respond ONLY with a JSON array of objects with keys \"question\", \"answer\", \"recommendation\" and \"type\". Do not include any other text."

func buildPrompt(a patients.OnboardingAnswers) string {
	var b strings.Builder
	b.WriteString("Patient onboarding answers:\n")
	fmt.Fprintf(&b, "- Age: %d\n", a.Age)
	fmt.Fprintf(&b, "- City/state of residence: %s\n", a.CityState)
	fmt.Fprintf(&b, "- Family health conditions: %s\n", orNone(a.FamilyHealthConditions))
	fmt.Fprintf(&b, "- Current medications: %s\n", orNone(a.CurrentMedications))
	fmt.Fprintf(&b, "- Physical activity: %s\n", orNone(a.PhysicalActivity))
	fmt.Fprintf(&b, "- Mental wellbeing (1-10): %d\n", a.MentalWellbeing)
	b.WriteString("Generate one recommendation per answer.")
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none reported"
	}
	return s
}

// parseRecommendations extracts the JSON array from the model reply.
// Models often wrap JSON in markdown code fences despite the prompt.
func parseRecommendations(raw string) ([]Recommendation, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Tolerate leading commentary by locating the array bounds.
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("recommendations: no JSON array in reply")
	}

	var recs []Recommendation
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &recs); err != nil {
		return nil, fmt.Errorf("recommendations: decode reply failed: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("recommendations: empty reply")
	}
	return recs, nil
}

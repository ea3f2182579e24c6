package recommendations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/patient-portal/internal/chat"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

type stubLLM struct {
	reply string
	err   error
	last  chat.LLMRequest
}

func (s *stubLLM) Provider() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req chat.LLMRequest) (chat.LLMResponse, error) {
	s.last = req
	if s.err != nil {
		return chat.LLMResponse{}, s.err
	}
	return chat.LLMResponse{Text: s.reply}, nil
}

func seedOnboardedPatient(t *testing.T, repo *patients.InMemoryRepository) string {
	t.Helper()
	p, err := repo.Create(context.Background(), &patients.CreatePatientRequest{
		Email:        "amara@example.com",
		PasswordHash: "x",
		FullName:     "Amara Okafor",
	})
	require.NoError(t, err)
	require.NoError(t, repo.SubmitOnboarding(context.Background(), p.ID, &patients.OnboardingAnswers{
		Age:                45,
		CityState:          "Austin, TX",
		CurrentMedications: "lisinopril",
		PhysicalActivity:   "walks twice a week",
		MentalWellbeing:    6,
	}))
	return p.ID
}

const validReply = `[
  {"question": "Physical activity", "answer": "walks twice a week", "recommendation": "Add one strength session per week.", "type": "activity"},
  {"question": "Mental wellbeing", "answer": "6", "recommendation": "Try a short daily breathing exercise.", "type": "mental"}
]`

func TestGenerateParsesModelReply(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	id := seedOnboardedPatient(t, repo)
	llm := &stubLLM{reply: validReply}
	svc := NewService(repo, llm, logging.Default(), 1000)

	recs, err := svc.Generate(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "activity", recs[0].Type)
	assert.Equal(t, "Add one strength session per week.", recs[0].Recommendation)

	// The questionnaire answers are in the prompt sent to the model.
	require.Len(t, llm.last.Messages, 1)
	assert.Contains(t, llm.last.Messages[0].Content, "Austin, TX")
	assert.Contains(t, llm.last.Messages[0].Content, "lisinopril")
}

func TestGenerateStripsCodeFences(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	id := seedOnboardedPatient(t, repo)
	llm := &stubLLM{reply: "```json\n" + validReply + "\n```"}
	svc := NewService(repo, llm, logging.Default(), 1000)

	recs, err := svc.Generate(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGenerateRequiresOnboarding(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	p, err := repo.Create(context.Background(), &patients.CreatePatientRequest{
		Email:        "new@example.com",
		PasswordHash: "x",
		FullName:     "New Patient",
	})
	require.NoError(t, err)
	svc := NewService(repo, &stubLLM{reply: validReply}, logging.Default(), 1000)

	_, err = svc.Generate(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrOnboardingIncomplete)
}

func TestGenerateUnknownPatient(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	svc := NewService(repo, &stubLLM{reply: validReply}, logging.Default(), 1000)

	_, err := svc.Generate(context.Background(), "missing")
	require.ErrorIs(t, err, patients.ErrPatientNotFound)
}

func TestGenerateModelFailure(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	id := seedOnboardedPatient(t, repo)
	svc := NewService(repo, &stubLLM{err: errors.New("overloaded")}, logging.Default(), 1000)

	_, err := svc.Generate(context.Background(), id)
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateUnparseableReply(t *testing.T) {
	repo := patients.NewInMemoryRepository()
	id := seedOnboardedPatient(t, repo)
	svc := NewService(repo, &stubLLM{reply: "Sorry, I cannot help with that."}, logging.Default(), 1000)

	_, err := svc.Generate(context.Background(), id)
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestParseRecommendationsTolerantOfCommentary(t *testing.T) {
	recs, err := parseRecommendations("Here are your recommendations:\n" + validReply + "\nStay healthy!")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

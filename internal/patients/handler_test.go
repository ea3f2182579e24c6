package patients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

func seedPatient(t *testing.T, repo *InMemoryRepository) *Patient {
	t.Helper()
	p, err := repo.Create(context.Background(), &CreatePatientRequest{
		Email:        "jane@example.com",
		PasswordHash: "x",
		FullName:     "Jane Doe",
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func authedRequest(method, target string, body []byte, patientID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(identity.WithPatientID(req.Context(), patientID))
}

func TestGetProfile(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPatient(t, repo)
	handler := NewHandler(repo, logging.Default())

	w := httptest.NewRecorder()
	handler.GetProfile(w, authedRequest(http.MethodGet, "/api/portal/profile", nil, p.ID))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got Patient
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Email != "jane@example.com" {
		t.Errorf("unexpected email %q", got.Email)
	}
}

func TestGetProfileNoIdentity(t *testing.T) {
	handler := NewHandler(NewInMemoryRepository(), logging.Default())
	w := httptest.NewRecorder()
	handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/portal/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestSubmitOnboarding(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPatient(t, repo)
	handler := NewHandler(repo, logging.Default())

	answers := OnboardingAnswers{
		Age:              34,
		CityState:        "Austin, TX",
		PhysicalActivity: "running twice a week",
		MentalWellbeing:  7,
	}
	body, _ := json.Marshal(answers)

	w := httptest.NewRecorder()
	handler.SubmitOnboarding(w, authedRequest(http.MethodPost, "/api/portal/onboarding", body, p.ID))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	stored, err := repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("reload patient: %v", err)
	}
	if !stored.OnboardingCompleted {
		t.Error("expected onboarding_completed to be set")
	}
	if stored.MentalWellbeing != 7 {
		t.Errorf("expected wellbeing 7, got %d", stored.MentalWellbeing)
	}
}

func TestSubmitOnboardingRejectsBadWellbeing(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPatient(t, repo)
	handler := NewHandler(repo, logging.Default())

	body, _ := json.Marshal(OnboardingAnswers{Age: 34, CityState: "Austin, TX", MentalWellbeing: 11})
	w := httptest.NewRecorder()
	handler.SubmitOnboarding(w, authedRequest(http.MethodPost, "/api/portal/onboarding", body, p.ID))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := NewInMemoryRepository()
	p := seedPatient(t, repo)
	handler := NewHandler(repo, logging.Default())

	body, _ := json.Marshal(UpdateProfileRequest{FullName: "Jane Q. Doe"})
	w := httptest.NewRecorder()
	handler.UpdateProfile(w, authedRequest(http.MethodPut, "/api/portal/profile", body, p.ID))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	stored, _ := repo.GetByID(context.Background(), p.ID)
	if stored.FullName != "Jane Q. Doe" {
		t.Errorf("expected updated name, got %q", stored.FullName)
	}
}

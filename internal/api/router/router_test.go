package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) (http.Handler, *patients.InMemoryRepository) {
	t.Helper()
	repo := patients.NewInMemoryRepository()
	return New(&Config{
		Logger:          logging.Default(),
		PatientsHandler: patients.NewHandler(repo, logging.Default()),
		JWTSecret:       testSecret,
	}), repo
}

func bearerFor(t *testing.T, patientID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   patientID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestPortalRoutesRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/portal/profile", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPortalRoutesWithValidToken(t *testing.T) {
	r, repo := newTestRouter(t)
	p, err := repo.Create(context.Background(), &patients.CreatePatientRequest{
		Email:        "a@example.com",
		PasswordHash: "x",
		FullName:     "A",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/portal/profile", nil)
	req.Header.Set("Authorization", bearerFor(t, p.ID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@example.com")
}

func TestUnknownRouteIs404(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/patient-portal/internal/notify"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

func newTestService(t *testing.T) (*Service, *patients.InMemoryRepository, *notify.StubEmailSender, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := patients.NewInMemoryRepository()
	email := notify.NewStubEmailSender(logging.Default())
	svc := NewService(repo, client, email, Config{
		JWTSecret:    "test-secret",
		ResetBaseURL: "https://portal.example.com",
	}, logging.Default())
	return svc, repo, email, mr
}

func TestRegisterIssuesValidToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	patient, token, err := svc.Register(context.Background(), "Amara@Example.com", "correct-horse", "Amara Okafor")
	require.NoError(t, err)
	assert.Equal(t, "amara@example.com", patient.Email)

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, patient.ID, claims.Subject)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Register(context.Background(), "a@example.com", "short", "A")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Register(context.Background(), "a@example.com", "long-enough", "First")
	require.NoError(t, err)
	_, _, err = svc.Register(context.Background(), "a@example.com", "long-enough", "Second")
	require.ErrorIs(t, err, patients.ErrEmailTaken)
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registered, _, err := svc.Register(context.Background(), "a@example.com", "correct-horse", "A")
	require.NoError(t, err)

	patient, token, err := svc.Login(context.Background(), "a@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, patient.ID)
	assert.NotEmpty(t, token)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, _, err := svc.Register(context.Background(), "a@example.com", "correct-horse", "A")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "a@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, email, _ := newTestService(t)
	_, _, err := svc.Register(context.Background(), "a@example.com", "correct-horse", "A")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a@example.com"))
	require.Len(t, email.Sent, 1)

	token := resetTokenFromEmail(t, email.Sent[0].Body)

	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), token, "new-password-1"))

	// Old password no longer works, new one does.
	_, _, err = svc.Login(context.Background(), "a@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "a@example.com", "new-password-1")
	require.NoError(t, err)

	// Tokens are single use.
	err = svc.ConfirmPasswordReset(context.Background(), token, "another-pass-2")
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	svc, _, email, _ := newTestService(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, email.Sent)
}

func TestPasswordResetTokenExpires(t *testing.T) {
	svc, _, email, mr := newTestService(t)
	_, _, err := svc.Register(context.Background(), "a@example.com", "correct-horse", "A")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a@example.com"))
	require.Len(t, email.Sent, 1)

	token := resetTokenFromEmail(t, email.Sent[0].Body)

	mr.FastForward(2 * time.Hour)

	err = svc.ConfirmPasswordReset(context.Background(), token, "new-password-1")
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

// resetTokenFromEmail pulls the token out of the reset link in the
// email body.
func resetTokenFromEmail(t *testing.T, body string) string {
	t.Helper()
	const marker = "reset-password?token="
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "reset link missing from email")
	token := body[i+len(marker):]
	if j := strings.IndexAny(token, " \n\t"); j >= 0 {
		token = token[:j]
	}
	return token
}

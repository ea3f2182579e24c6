package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/havenhealth/patient-portal/internal/notify"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

const minPasswordLen = 8

func resetTokenKey(token string) string {
	return fmt.Sprintf("pwreset:%s", token)
}

// Config carries the auth service tunables.
type Config struct {
	JWTSecret        string
	TokenTTL         time.Duration
	PasswordResetTTL time.Duration
	ResetBaseURL     string
}

// Service implements registration, login and password reset for
// patients.
type Service struct {
	patients patients.Repository
	redis    *redis.Client
	email    notify.EmailSender
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// NewService builds an auth service.
func NewService(repo patients.Repository, rdb *redis.Client, email notify.EmailSender, cfg Config, logger *logging.Logger) *Service {
	if repo == nil {
		panic("auth: patients repository cannot be nil")
	}
	if rdb == nil {
		panic("auth: redis client cannot be nil")
	}
	if email == nil {
		email = notify.NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = time.Hour
	}
	return &Service{
		patients: repo,
		redis:    rdb,
		email:    email,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Register provisions a patient record and returns it with a session
// token.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*patients.Patient, string, error) {
	if len(password) < minPasswordLen {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password failed: %w", err)
	}

	patient, err := s.patients.Create(ctx, &patients.CreatePatientRequest{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     fullName,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(patient.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("patient registered", "patient_id", patient.ID)
	return patient, token, nil
}

// Login verifies credentials and returns the patient with a session
// token.
func (s *Service) Login(ctx context.Context, email, password string) (*patients.Patient, string, error) {
	patient, err := s.patients.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("auth: lookup patient failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(patient.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(patient.ID)
	if err != nil {
		return nil, "", err
	}
	return patient, token, nil
}

// RequestPasswordReset issues a reset token and emails it to the
// patient. Unknown emails are silently accepted so the endpoint does
// not leak which addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	patient, err := s.patients.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			return nil
		}
		return fmt.Errorf("auth: lookup patient failed: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, resetTokenKey(token), patient.ID, s.cfg.PasswordResetTTL).Err(); err != nil {
		return fmt.Errorf("auth: store reset token failed: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(s.cfg.ResetBaseURL, "/"), token)
	msg := notify.PasswordResetEmail(patient.Email, patient.FullName, resetURL)
	if err := s.email.Send(ctx, msg); err != nil {
		// The token stays valid; the patient can retry the request.
		s.logger.Error("reset email send failed", "patient_id", patient.ID, "error", err)
		return fmt.Errorf("auth: send reset email failed: %w", err)
	}
	return nil
}

// ConfirmPasswordReset exchanges a valid reset token for a new
// password. The token is single-use.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	patientID, err := s.redis.GetDel(ctx, resetTokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("auth: read reset token failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password failed: %w", err)
	}
	if err := s.patients.UpdatePasswordHash(ctx, patientID, string(hash)); err != nil {
		return fmt.Errorf("auth: update password failed: %w", err)
	}
	s.logger.Info("password reset completed", "patient_id", patientID)
	return nil
}

func (s *Service) issueToken(patientID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   patientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token failed: %w", err)
	}
	return signed, nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate reset token failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

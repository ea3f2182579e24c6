package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines the interface for patient record storage.
type Repository interface {
	Create(ctx context.Context, req *CreatePatientRequest) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	SubmitOnboarding(ctx context.Context, id string, answers *OnboardingAnswers) error
	UpdateProfile(ctx context.Context, id, fullName, avatarURL string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patient records in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const patientColumns = `id, email, password_hash, full_name, avatar_url, onboarding_completed,
	       age, city_state, family_health_conditions, current_medications,
	       physical_activity, mental_wellbeing, created_at, updated_at`

// Create inserts a new patient row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO patients (id, email, password_hash, full_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		strings.ToLower(strings.TrimSpace(req.Email)),
		req.PasswordHash,
		strings.TrimSpace(req.FullName),
	).Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}

	return &Patient{
		ID:           id.String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: req.PasswordHash,
		FullName:     strings.TrimSpace(req.FullName),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// GetByID fetches a patient by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches a patient by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// SubmitOnboarding saves the questionnaire answers and marks onboarding
// complete.
func (r *PostgresRepository) SubmitOnboarding(ctx context.Context, id string, answers *OnboardingAnswers) error {
	if err := answers.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE patients
		SET age = $2, city_state = $3, family_health_conditions = $4,
		    current_medications = $5, physical_activity = $6, mental_wellbeing = $7,
		    onboarding_completed = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		id,
		answers.Age,
		answers.CityState,
		answers.FamilyHealthConditions,
		answers.CurrentMedications,
		answers.PhysicalActivity,
		answers.MentalWellbeing,
	)
	if err != nil {
		return fmt.Errorf("patients: onboarding update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// UpdateProfile updates mutable profile fields.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, fullName, avatarURL string) error {
	query := `
		UPDATE patients
		SET full_name = COALESCE(NULLIF($2, ''), full_name),
		    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, strings.TrimSpace(fullName), strings.TrimSpace(avatarURL))
	if err != nil {
		return fmt.Errorf("patients: profile update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return ErrMissingPasswordHash
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE patients SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("patients: password update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.FullName,
		&p.AvatarURL,
		&p.OnboardingCompleted,
		&p.Age,
		&p.CityState,
		&p.FamilyHealthConditions,
		&p.CurrentMedications,
		&p.PhysicalActivity,
		&p.MentalWellbeing,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &p, nil
}

// InMemoryRepository is a map-backed Repository used in tests and local
// development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[string]*Patient)}
}

// Create creates a new patient in memory.
func (r *InMemoryRepository) Create(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, existing := range r.patients {
		if existing.Email == email {
			return nil, ErrEmailTaken
		}
	}

	now := time.Now().UTC()
	p := &Patient{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: req.PasswordHash,
		FullName:     strings.TrimSpace(req.FullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.patients[p.ID] = p
	return p, nil
}

// GetByID retrieves a patient by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

// GetByEmail retrieves a patient by email.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.patients {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

// SubmitOnboarding records questionnaire answers.
func (r *InMemoryRepository) SubmitOnboarding(ctx context.Context, id string, answers *OnboardingAnswers) error {
	if err := answers.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.OnboardingAnswers = *answers
	p.OnboardingCompleted = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateProfile updates name and avatar.
func (r *InMemoryRepository) UpdateProfile(ctx context.Context, id, fullName, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	if fullName = strings.TrimSpace(fullName); fullName != "" {
		p.FullName = fullName
	}
	if avatarURL = strings.TrimSpace(avatarURL); avatarURL != "" {
		p.AvatarURL = avatarURL
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdatePasswordHash replaces the stored credential.
func (r *InMemoryRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return ErrMissingPasswordHash
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.PasswordHash = passwordHash
	p.UpdatedAt = time.Now().UTC()
	return nil
}

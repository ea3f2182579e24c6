package appointments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines the persistence interface for appointments. Update and
// Delete report the number of rows touched; a zero count means the id did
// not exist or belongs to another patient, and callers decide how loudly to
// treat that.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) error
	ListUpcoming(ctx context.Context, patientID string) ([]Appointment, error)
	Update(ctx context.Context, a *Appointment) (int64, error)
	Delete(ctx context.Context, id, patientID string) (int64, error)
}

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Insert persists a new appointment, assigning its id.
func (r *PostgresRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO appointments (id, patient_id, provider, appointment_date, appointment_time, appointment_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		a.ID, a.PatientID, a.Provider, a.Date, a.Time, string(a.Category), a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

// ListUpcoming returns the patient's appointments from today onward,
// ordered by date then time.
func (r *PostgresRepository) ListUpcoming(ctx context.Context, patientID string) ([]Appointment, error) {
	query := `
		SELECT id, patient_id, provider,
		       to_char(appointment_date, 'YYYY-MM-DD'),
		       to_char(appointment_time, 'HH24:MI'),
		       appointment_type, notes, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1 AND appointment_date >= CURRENT_DATE
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		var a Appointment
		var category string
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.Provider, &a.Date, &a.Time,
			&category, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		a.Category = Category(category)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows failed: %w", err)
	}
	return out, nil
}

// Update mutates an appointment in place, filtered on id and owner.
func (r *PostgresRepository) Update(ctx context.Context, a *Appointment) (int64, error) {
	query := `
		UPDATE appointments
		SET provider = $3, appointment_date = $4, appointment_time = $5,
		    appointment_type = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		a.ID, a.PatientID, a.Provider, a.Date, a.Time, string(a.Category), a.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("appointments: update failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes an appointment, filtered on id and owner.
func (r *PostgresRepository) Delete(ctx context.Context, id, patientID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM appointments WHERE id = $1 AND patient_id = $2`,
		id, patientID,
	)
	if err != nil {
		return 0, fmt.Errorf("appointments: delete failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

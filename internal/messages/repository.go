package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines persistence for the provider directory and patient
// messages.
type Repository interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	ProviderByLastName(ctx context.Context, lastName string) (*Provider, error)
	Send(ctx context.Context, m *Message) error
	ListUnread(ctx context.Context, patientID string) ([]Message, error)
	MarkRead(ctx context.Context, id, patientID string) error
}

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores providers and messages in the relational
// database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("messages: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// ListProviders returns the provider directory.
func (r *PostgresRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, first_name, last_name, specialty FROM providers ORDER BY last_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("messages: list providers failed: %w", err)
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty); err != nil {
			return nil, fmt.Errorf("messages: scan provider failed: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: provider rows failed: %w", err)
	}
	return out, nil
}

// ProviderByLastName looks up a provider by last name, case-insensitive.
func (r *PostgresRepository) ProviderByLastName(ctx context.Context, lastName string) (*Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, specialty FROM providers WHERE LOWER(last_name) = LOWER($1)`,
		lastName,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("messages: provider lookup failed: %w", err)
	}
	return &p, nil
}

// Send persists a new message, assigning its id.
func (r *PostgresRepository) Send(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO messages (id, patient_id, provider_id, subject, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sent_at
	`
	if err := r.pool.QueryRow(ctx, query,
		m.ID, m.PatientID, m.ProviderID, m.Subject, m.Body,
	).Scan(&m.SentAt); err != nil {
		return fmt.Errorf("messages: insert failed: %w", err)
	}
	return nil
}

// ListUnread returns the patient's unread messages, newest first.
func (r *PostgresRepository) ListUnread(ctx context.Context, patientID string) ([]Message, error) {
	query := `
		SELECT id, patient_id, provider_id, subject, body, read, sent_at
		FROM messages
		WHERE patient_id = $1 AND read = FALSE
		ORDER BY sent_at DESC
	`
	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("messages: list unread failed: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PatientID, &m.ProviderID, &m.Subject, &m.Body, &m.Read, &m.SentAt); err != nil {
			return nil, fmt.Errorf("messages: scan failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: rows failed: %w", err)
	}
	return out, nil
}

// MarkRead flags a message as read, filtered on id and owner.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, patientID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE id = $1 AND patient_id = $2`,
		id, patientID,
	)
	if err != nil {
		return fmt.Errorf("messages: mark read failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenhealth/patient-portal/internal/observability/metrics"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.appointments")

// PatientVerifier confirms the acting identity has a patient record before
// any booking mutation.
type PatientVerifier interface {
	GetByID(ctx context.Context, id string) (*patients.Patient, error)
}

// Service owns booking rules: temporal validity, identity verification,
// ownership scoping and change notification.
type Service struct {
	repo     Repository
	verifier PatientVerifier
	feed     Feed
	logger   *logging.Logger
	metrics  *metrics.PortalMetrics
	now      func() time.Time

	// DefaultProvider fills requests that omit the provider.
	DefaultProvider string
}

// NewService constructs an appointments service.
func NewService(repo Repository, verifier PatientVerifier, feed Feed, logger *logging.Logger, m *metrics.PortalMetrics) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if verifier == nil {
		panic("appointments: patient verifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		verifier: verifier,
		feed:     feed,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// List returns the patient's upcoming appointments ordered by date then
// time. An empty slice means no upcoming appointments.
func (s *Service) List(ctx context.Context, patientID string) ([]Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.list")
	defer span.End()
	span.SetAttributes(attribute.String("portal.patient_id", patientID))

	out, err := s.repo.ListUpcoming(ctx, patientID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("list", "error")
		return nil, err
	}
	s.metrics.ObserveAppointmentOp("list", "ok")
	return out, nil
}

// Create books a new appointment for the patient.
func (s *Service) Create(ctx context.Context, patientID string, req *Request) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("portal.patient_id", patientID))

	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = s.DefaultProvider
	}
	if err := req.Validate(s.now()); err != nil {
		s.metrics.ObserveAppointmentOp("create", "invalid")
		return nil, err
	}
	if err := s.verifyPatient(ctx, patientID); err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("create", "unverified")
		return nil, err
	}

	a := &Appointment{
		PatientID: patientID,
		Provider:  req.Provider,
		Date:      req.Date,
		Time:      req.Time,
		Category:  req.Category,
		Notes:     req.Notes,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("create", "error")
		return nil, err
	}

	s.publish(ctx, patientID, ChangeEvent{Op: "insert", AppointmentID: a.ID, OccurredAt: s.now().UTC()})
	s.logger.Info("appointment created", "patient_id", patientID, "appointment_id", a.ID, "date", a.Date, "time", a.Time)
	s.metrics.ObserveAppointmentOp("create", "ok")
	return a, nil
}

// Update modifies an existing appointment in place. An id that does not
// exist or belongs to another patient touches zero rows and is treated as a
// quiet no-op, mirroring the store-side ownership filter.
func (s *Service) Update(ctx context.Context, patientID, id string, req *Request) error {
	ctx, span := tracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.patient_id", patientID),
		attribute.String("portal.appointment_id", id),
	)

	if id == "" {
		s.metrics.ObserveAppointmentOp("update", "invalid")
		return fmt.Errorf("appointments: %w", errors.New("id is required"))
	}
	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = s.DefaultProvider
	}
	if err := req.Validate(s.now()); err != nil {
		s.metrics.ObserveAppointmentOp("update", "invalid")
		return err
	}
	if err := s.verifyPatient(ctx, patientID); err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("update", "unverified")
		return err
	}

	a := &Appointment{
		ID:        id,
		PatientID: patientID,
		Provider:  req.Provider,
		Date:      req.Date,
		Time:      req.Time,
		Category:  req.Category,
		Notes:     req.Notes,
	}
	rows, err := s.repo.Update(ctx, a)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("update", "error")
		return err
	}
	if rows == 0 {
		s.logger.Warn("update touched zero rows", "patient_id", patientID, "appointment_id", id)
		s.metrics.ObserveAppointmentOp("update", "noop")
		return nil
	}

	s.publish(ctx, patientID, ChangeEvent{Op: "update", AppointmentID: id, OccurredAt: s.now().UTC()})
	s.metrics.ObserveAppointmentOp("update", "ok")
	return nil
}

// Cancel deletes the appointment. Same quiet no-op semantics as Update for
// non-owned ids.
func (s *Service) Cancel(ctx context.Context, patientID, id string) error {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.patient_id", patientID),
		attribute.String("portal.appointment_id", id),
	)

	rows, err := s.repo.Delete(ctx, id, patientID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAppointmentOp("cancel", "error")
		return err
	}
	if rows == 0 {
		s.logger.Warn("cancel touched zero rows", "patient_id", patientID, "appointment_id", id)
		s.metrics.ObserveAppointmentOp("cancel", "noop")
		return nil
	}

	s.publish(ctx, patientID, ChangeEvent{Op: "delete", AppointmentID: id, OccurredAt: s.now().UTC()})
	s.logger.Info("appointment cancelled", "patient_id", patientID, "appointment_id", id)
	s.metrics.ObserveAppointmentOp("cancel", "ok")
	return nil
}

func (s *Service) verifyPatient(ctx context.Context, patientID string) error {
	if _, err := s.verifier.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			return ErrIdentityUnverified
		}
		return fmt.Errorf("appointments: verify patient: %w", err)
	}
	return nil
}

// publish is best-effort: a failed notification never rolls back the
// mutation, subscribers will converge on the next event or fetch.
func (s *Service) publish(ctx context.Context, patientID string, event ChangeEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, patientID, event); err != nil {
		s.logger.Warn("change feed publish failed", "error", err, "patient_id", patientID, "op", event.Op)
		return
	}
	s.metrics.ObserveFeedEvent()
}

package consultation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/domain/scheduling"
	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/auth"
	"github.com/medagenda/medagenda/internal/platform/crypto"
	"github.com/medagenda/medagenda/internal/platform/db"
	"github.com/medagenda/medagenda/internal/platform/messaging"
)

// AppointmentScheduler is the slice of the scheduling engine the
// consultation engine drives: loading appointments and cascading status
// changes through the transition table.
type AppointmentScheduler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to scheduling.Status, actor uuid.UUID) (*scheduling.Appointment, error)
}

// PatientDirectory resolves patient names for the history view.
type PatientDirectory interface {
	GetName(ctx context.Context, id uuid.UUID) (string, error)
}

type Service struct {
	repo         Repository
	appointments AppointmentScheduler
	patients     PatientDirectory
	crypto       *crypto.Service
	tx           db.TxRunner
	events       messaging.Publisher
	logger       zerolog.Logger
}

func NewService(repo Repository, appointments AppointmentScheduler, patients PatientDirectory,
	cryptoSvc *crypto.Service, tx db.TxRunner, events messaging.Publisher, logger zerolog.Logger) *Service {
	if events == nil {
		events = messaging.NewNoopPublisher()
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		patients:     patients,
		crypto:       cryptoSvc,
		tx:           tx,
		events:       events,
		logger:       logger,
	}
}

// runTx executes fn through the transaction runner so that a cascading
// appointment status change and the consultation write commit or roll
// back together. Without a runner fn executes as-is.
func (s *Service) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

// CreateInput carries a new consultation. Sensitive fields are optional.
type CreateInput struct {
	AppointmentID   uuid.UUID
	Notes           *string
	Diagnosis       *string
	TreatmentPlan   *string
	AttentionPoints *string
	Status          *Status
}

// UpdateInput carries a partial consultation update. Provided sensitive
// fields are re-encrypted, replacing the previous ciphertext and IV.
type UpdateInput struct {
	Notes           *string
	Diagnosis       *string
	TreatmentPlan   *string
	AttentionPoints *string
	Status          *Status
}

func (in UpdateInput) hasFieldEdits() bool {
	return in.Notes != nil || in.Diagnosis != nil || in.TreatmentPlan != nil || in.AttentionPoints != nil
}

// encryptField encrypts a sensitive value under the author's derived key.
// Nil in, nil out.
func (s *Service) encryptField(value *string, authorID uuid.UUID) (*EncryptedField, error) {
	if value == nil {
		return nil, nil
	}
	fc, err := s.crypto.Encrypt(*value, authorID.String())
	if err != nil {
		return nil, fmt.Errorf("encrypt consultation field: %w", err)
	}
	return &EncryptedField{CipherText: fc.CipherText, IV: fc.IV}, nil
}

func (s *Service) decryptField(f *EncryptedField, authorID uuid.UUID) (*string, error) {
	if f == nil {
		return nil, nil
	}
	plain, err := s.crypto.Decrypt(crypto.FieldCipher{CipherText: f.CipherText, IV: f.IV}, authorID.String())
	if err != nil {
		return nil, fmt.Errorf("decrypt consultation field: %w", err)
	}
	return &plain, nil
}

// toView maps a consultation to its response shape. Sensitive fields are
// decrypted only for the authoring professional; everyone else sees null.
// This is a data-shaping rule, not an error.
func (s *Service) toView(c *Consultation, requester auth.Principal) (*View, error) {
	v := &View{
		ID:             c.ID,
		AppointmentID:  c.AppointmentID,
		ProfessionalID: c.ProfessionalID,
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if requester.ID != c.ProfessionalID {
		return v, nil
	}

	var err error
	if v.Notes, err = s.decryptField(c.Notes, c.ProfessionalID); err != nil {
		return nil, err
	}
	if v.Diagnosis, err = s.decryptField(c.Diagnosis, c.ProfessionalID); err != nil {
		return nil, err
	}
	if v.TreatmentPlan, err = s.decryptField(c.TreatmentPlan, c.ProfessionalID); err != nil {
		return nil, err
	}
	if v.AttentionPoints, err = s.decryptField(c.AttentionPoints, c.ProfessionalID); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput, principal auth.Principal) (*View, error) {
	appt, err := s.appointments.GetByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByAppointment(ctx, in.AppointmentID); err == nil && existing != nil {
		return nil, apperr.Validationf("a consultation already exists for this appointment")
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}

	if !appt.Status.Active() {
		return nil, apperr.Validationf(
			"a consultation can only be created for a SCHEDULED or IN_PROGRESS appointment, appointment is %s",
			appt.Status)
	}

	status := StatusInProgress
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validationf("invalid status: %s", *in.Status)
		}
		status = *in.Status
	}

	c := &Consultation{
		AppointmentID:  in.AppointmentID,
		ProfessionalID: principal.ID,
		Status:         status,
	}
	if c.Notes, err = s.encryptField(in.Notes, principal.ID); err != nil {
		return nil, err
	}
	if c.Diagnosis, err = s.encryptField(in.Diagnosis, principal.ID); err != nil {
		return nil, err
	}
	if c.TreatmentPlan, err = s.encryptField(in.TreatmentPlan, principal.ID); err != nil {
		return nil, err
	}
	if c.AttentionPoints, err = s.encryptField(in.AttentionPoints, principal.ID); err != nil {
		return nil, err
	}

	if err := s.runTx(ctx, func(ctx context.Context) error {
		// Starting a consultation pulls the appointment into IN_PROGRESS.
		if appt.Status == scheduling.StatusScheduled {
			if _, err := s.appointments.UpdateStatus(ctx, appt.ID, scheduling.StatusInProgress, principal.ID); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}

		if status == StatusCompleted {
			if _, err := s.appointments.UpdateStatus(ctx, appt.ID, scheduling.StatusCompleted, principal.ID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventConsultationCreated, c, appt.PatientID, principal.ID)
	return s.toView(c, principal)
}

// ListAll returns consultations visible to the requester. Professionals see
// only their own records; secretarial and admin roles see everything, with
// sensitive fields masked.
func (s *Service) ListAll(ctx context.Context, principal auth.Principal) ([]*View, error) {
	var (
		consultations []*Consultation
		err           error
	)
	if principal.IsProfessional() {
		consultations, err = s.repo.ListByAuthor(ctx, principal.ID)
	} else {
		consultations, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	views := make([]*View, 0, len(consultations))
	for _, c := range consultations {
		v, err := s.toView(c, principal)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID, principal auth.Principal) (*View, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Single-record fetch hard-denies non-author professionals, unlike the
	// soft masking applied to lists.
	if principal.IsProfessional() && principal.ID != c.ProfessionalID {
		return nil, apperr.Forbiddenf("only the authoring professional may access this consultation")
	}
	return s.toView(c, principal)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, principal auth.Principal) ([]*View, error) {
	consultations, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	views := make([]*View, 0, len(consultations))
	for _, wa := range consultations {
		v, err := s.toView(&wa.Consultation, principal)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, principal auth.Principal) (*View, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.ID != c.ProfessionalID {
		return nil, apperr.Forbiddenf("only the authoring professional may modify this consultation")
	}
	if c.Status == StatusCompleted && in.hasFieldEdits() {
		return nil, apperr.Validationf("a completed consultation cannot be edited")
	}

	if in.Notes != nil {
		if c.Notes, err = s.encryptField(in.Notes, c.ProfessionalID); err != nil {
			return nil, err
		}
	}
	if in.Diagnosis != nil {
		if c.Diagnosis, err = s.encryptField(in.Diagnosis, c.ProfessionalID); err != nil {
			return nil, err
		}
	}
	if in.TreatmentPlan != nil {
		if c.TreatmentPlan, err = s.encryptField(in.TreatmentPlan, c.ProfessionalID); err != nil {
			return nil, err
		}
	}
	if in.AttentionPoints != nil {
		if c.AttentionPoints, err = s.encryptField(in.AttentionPoints, c.ProfessionalID); err != nil {
			return nil, err
		}
	}

	completed := false
	if in.Status != nil && *in.Status != c.Status {
		if !in.Status.Valid() {
			return nil, apperr.Validationf("invalid status: %s", *in.Status)
		}
		if c.Status == StatusCompleted {
			return nil, apperr.Validationf("a completed consultation cannot be reopened")
		}
		c.Status = *in.Status
		completed = c.Status == StatusCompleted
	}

	var patientID uuid.UUID
	if err := s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		if !completed {
			return nil
		}

		// Completing the consultation completes its appointment.
		appt, err := s.appointments.GetByID(ctx, c.AppointmentID)
		if err != nil {
			return err
		}
		if appt.Status != scheduling.StatusCompleted {
			if _, err := s.appointments.UpdateStatus(ctx, c.AppointmentID, scheduling.StatusCompleted, principal.ID); err != nil {
				return err
			}
		}
		patientID = appt.PatientID
		return nil
	}); err != nil {
		return nil, err
	}

	if completed {
		s.publish(ctx, messaging.EventConsultationCompleted, c, patientID, principal.ID)
	}

	return s.toView(c, principal)
}

func (s *Service) Remove(ctx context.Context, id uuid.UUID, principal auth.Principal) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if principal.ID != c.ProfessionalID {
		return apperr.Forbiddenf("only the authoring professional may delete this consultation")
	}
	if c.Status == StatusCompleted {
		return apperr.Validationf("a completed consultation cannot be deleted")
	}

	appt, err := s.appointments.GetByID(ctx, c.AppointmentID)
	if err != nil {
		return err
	}

	if err := s.runTx(ctx, func(ctx context.Context) error {
		// Deleting an open consultation hands its appointment back to
		// the schedule.
		if appt.Status == scheduling.StatusInProgress {
			if _, err := s.appointments.UpdateStatus(ctx, c.AppointmentID, scheduling.StatusScheduled, principal.ID); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	}); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventConsultationDeleted, c, appt.PatientID, principal.ID)
	return nil
}

// Conclude completes a consultation and, through the cascade in Update, its
// appointment.
func (s *Service) Conclude(ctx context.Context, id uuid.UUID, principal auth.Principal) (*View, error) {
	completed := StatusCompleted
	return s.Update(ctx, id, UpdateInput{Status: &completed}, principal)
}

// PatientHistory assembles a patient's consultation record, oldest
// appointment first, each entry dated for display.
func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, principal auth.Principal) (*History, error) {
	consultations, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(consultations) == 0 {
		return nil, apperr.NotFoundf("no consultations found for this patient")
	}

	name, err := s.patients.GetName(ctx, patientID)
	if err != nil {
		return nil, err
	}

	sort.Slice(consultations, func(i, j int) bool {
		if !consultations[i].AppointmentDate.Equal(consultations[j].AppointmentDate) {
			return consultations[i].AppointmentDate.Before(consultations[j].AppointmentDate)
		}
		return consultations[i].AppointmentTime < consultations[j].AppointmentTime
	})

	history := &History{
		PatientID:   patientID,
		PatientName: name,
		Entries:     make([]HistoryEntry, 0, len(consultations)),
	}
	for _, wa := range consultations {
		v, err := s.toView(&wa.Consultation, principal)
		if err != nil {
			return nil, err
		}
		history.Entries = append(history.Entries, HistoryEntry{
			Date:         wa.AppointmentDate.Format("02/01/2006"),
			Consultation: v,
		})
	}
	return history, nil
}

type consultationEvent struct {
	ConsultationID uuid.UUID `json:"consultation_id"`
	AppointmentID  uuid.UUID `json:"appointment_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Status         Status    `json:"status"`
	ActorID        uuid.UUID `json:"actor_id"`
}

func (s *Service) publish(ctx context.Context, key string, c *Consultation, patientID, actor uuid.UUID) {
	evt := consultationEvent{
		ConsultationID: c.ID,
		AppointmentID:  c.AppointmentID,
		PatientID:      patientID,
		ProfessionalID: c.ProfessionalID,
		Status:         c.Status,
		ActorID:        actor,
	}
	if err := s.events.Publish(ctx, key, evt); err != nil {
		s.logger.Error().Err(err).Str("event", key).Msg("publish consultation event")
	}
}

package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/db"
	"github.com/medagenda/medagenda/internal/platform/messaging"
)

// PatientLookup verifies patient references against the patient registry.
type PatientLookup interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo     Repository
	patients PatientLookup
	tx       db.TxRunner
	events   messaging.Publisher
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientLookup, tx db.TxRunner, events messaging.Publisher, logger zerolog.Logger) *Service {
	if events == nil {
		events = messaging.NewNoopPublisher()
	}
	return &Service{repo: repo, patients: patients, tx: tx, events: events, logger: logger}
}

// runTx executes fn through the transaction runner so the booking
// conflict check and the write see one consistent snapshot. Without a
// runner fn executes as-is.
func (s *Service) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

// dayOf strips the time-of-day component for date-only comparisons.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Validationf("patient_id is required")
	}
	if err := s.patients.Exists(ctx, a.PatientID); err != nil {
		return err
	}

	a.Date = dayOf(a.Date)
	if a.Date.Before(dayOf(time.Now())) {
		return apperr.Validationf("date must not be in the past")
	}
	if err := validateTimeWindow(a.Time); err != nil {
		return err
	}

	if err := s.runTx(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.FindBookedByDateTime(ctx, a.Date, a.Time, uuid.Nil); err == nil && existing != nil {
			return apperr.Conflictf("an appointment already exists at %s %s",
				a.Date.Format("2006-01-02"), a.Time)
		} else if err != nil && !apperr.IsNotFound(err) {
			return err
		}

		a.Status = StatusScheduled
		return s.repo.Create(ctx, a)
	}); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventAppointmentCreated, a, a.CreatedByID)
	return nil
}

func (s *Service) ListAll(ctx context.Context) ([]*Appointment, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]*Appointment, error) {
	return s.repo.ListByDate(ctx, dayOf(date))
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	if err := s.patients.Exists(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, actor uuid.UUID) (*Appointment, error) {
	var (
		a             *Appointment
		statusChanged bool
	)
	if err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCompleted {
			return apperr.Validationf("a completed appointment cannot be modified")
		}

		if in.PatientID != nil && *in.PatientID != a.PatientID {
			if err := s.patients.Exists(ctx, *in.PatientID); err != nil {
				return err
			}
			a.PatientID = *in.PatientID
		}

		newDate := a.Date
		newTime := a.Time
		if in.Date != nil {
			newDate = dayOf(*in.Date)
		}
		if in.Time != nil {
			newTime = *in.Time
		}
		slotChanged := !newDate.Equal(a.Date) || newTime != a.Time
		if slotChanged {
			if newDate.Before(dayOf(time.Now())) {
				return apperr.Validationf("date must not be in the past")
			}
			if err := validateTimeWindow(newTime); err != nil {
				return err
			}
			if existing, err := s.repo.FindBookedByDateTime(ctx, newDate, newTime, a.ID); err == nil && existing != nil {
				return apperr.Conflictf("an appointment already exists at %s %s",
					newDate.Format("2006-01-02"), newTime)
			} else if err != nil && !apperr.IsNotFound(err) {
				return err
			}
			a.Date = newDate
			a.Time = newTime
		}

		if in.Observations != nil {
			a.Observations = in.Observations
		}

		if in.Status != nil && *in.Status != a.Status {
			if !in.Status.Valid() {
				return apperr.Validationf("invalid status: %s", *in.Status)
			}
			if !CanTransition(a.Status, *in.Status) {
				return apperr.Validationf("cannot change status from %s to %s", a.Status, *in.Status)
			}
			a.Status = *in.Status
			statusChanged = true
		}

		return s.repo.Update(ctx, a)
	}); err != nil {
		return nil, err
	}

	if statusChanged {
		s.publish(ctx, messaging.EventAppointmentStatusChanged, a, actor)
	}
	return a, nil
}

// UpdateStatus moves an appointment through its lifecycle. Legality is
// decided by the transition table, so terminal states stay terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, actor uuid.UUID) (*Appointment, error) {
	if !to.Valid() {
		return nil, apperr.Validationf("invalid status: %s", to)
	}
	return s.Update(ctx, id, UpdateInput{Status: &to}, actor)
}

func (s *Service) Remove(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCompleted {
		return apperr.Validationf("a completed appointment cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventAppointmentDeleted, a, actor)
	return nil
}

// AvailableSlots returns the canonical slot sequence for the given day minus
// the times held by SCHEDULED and IN_PROGRESS appointments.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	occupied, err := s.repo.ActiveTimesByDate(ctx, dayOf(date))
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(occupied))
	for _, t := range occupied {
		taken[t] = true
	}

	// Never nil: a fully booked day serializes as an empty list.
	available := make([]string, 0, len(CanonicalSlots()))
	for _, slot := range CanonicalSlots() {
		if !taken[slot] {
			available = append(available, slot)
		}
	}
	return available, nil
}

type appointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        Status    `json:"status"`
	ActorID       uuid.UUID `json:"actor_id"`
}

// publish emits a lifecycle event. Failures are logged and never surface to
// the caller.
func (s *Service) publish(ctx context.Context, key string, a *Appointment, actor uuid.UUID) {
	evt := appointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		Date:          a.Date.Format("2006-01-02"),
		Time:          a.Time,
		Status:        a.Status,
		ActorID:       actor,
	}
	if err := s.events.Publish(ctx, key, evt); err != nil {
		s.logger.Error().Err(err).Str("event", key).Msg("publish appointment event")
	}
}

package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListAll returns every appointment ordered by date then time ascending.
	ListAll(ctx context.Context) ([]*Appointment, error)
	// ListByDate returns the day's appointments ordered by time ascending.
	ListByDate(ctx context.Context, date time.Time) ([]*Appointment, error)
	// ListByPatient returns a patient's appointments, most recent first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	// ActiveTimesByDate returns the times of SCHEDULED and IN_PROGRESS
	// appointments on the given day.
	ActiveTimesByDate(ctx context.Context, date time.Time) ([]string, error)
	// FindBookedByDateTime returns the non-canceled appointment holding
	// (date, time), if any. excludeID is skipped so updates do not conflict
	// with themselves; pass uuid.Nil to match any appointment.
	FindBookedByDateTime(ctx context.Context, date time.Time, timeOfDay string, excludeID uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

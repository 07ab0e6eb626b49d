package consultation

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists consultations.
type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error)
	// ListAll returns every consultation, most recently created first.
	ListAll(ctx context.Context) ([]*Consultation, error)
	// ListByAuthor returns a professional's consultations, most recent first.
	ListByAuthor(ctx context.Context, professionalID uuid.UUID) ([]*Consultation, error)
	// ListByPatient joins through the appointment to find a patient's
	// consultations, most recently created first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*WithAppointment, error)
	Update(ctx context.Context, c *Consultation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

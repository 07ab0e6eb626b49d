package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a booked clinic slot for a patient. Date carries only the
// calendar day; Time is the slot's time of day as "HH:MM".
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	Observations *string   `json:"observations,omitempty"`
	Status       Status    `json:"status"`
	CreatedByID  uuid.UUID `json:"created_by_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpdateInput carries a partial appointment update. Nil fields are left
// unchanged.
type UpdateInput struct {
	PatientID    *uuid.UUID
	Date         *time.Time
	Time         *string
	Observations *string
	Status       *Status
}

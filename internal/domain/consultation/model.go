package consultation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the consultation lifecycle state.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// EncryptedField is a sensitive clinical field as stored: ciphertext plus
// the nonce used to produce it.
type EncryptedField struct {
	CipherText string
	IV         string
}

// Consultation is the stored clinical record tied 1:1 to an appointment.
// Sensitive fields are encrypted under the authoring professional's derived
// key; only that professional can read them back.
type Consultation struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	ProfessionalID  uuid.UUID
	Notes           *EncryptedField
	Diagnosis       *EncryptedField
	TreatmentPlan   *EncryptedField
	AttentionPoints *EncryptedField
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WithAppointment pairs a consultation with its appointment's slot, used
// when listing by patient and building the history view.
type WithAppointment struct {
	Consultation
	AppointmentDate time.Time
	AppointmentTime string
	PatientID       uuid.UUID
}

// View is the response shape of a consultation. Sensitive fields hold
// plaintext only when the requester authored the record; for everyone else
// they are null.
type View struct {
	ID              uuid.UUID `json:"id"`
	AppointmentID   uuid.UUID `json:"appointment_id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	Notes           *string   `json:"notes"`
	Diagnosis       *string   `json:"diagnosis"`
	TreatmentPlan   *string   `json:"treatment_plan"`
	AttentionPoints *string   `json:"attention_points"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HistoryEntry is one item of a patient's consultation history.
type HistoryEntry struct {
	Date         string `json:"date"`
	Consultation *View  `json:"consultation"`
}

// History is the assembled consultation history for a patient, ascending by
// appointment date.
type History struct {
	PatientID   uuid.UUID      `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	Entries     []HistoryEntry `json:"history"`
}

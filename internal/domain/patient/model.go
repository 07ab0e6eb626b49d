package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a person registered with the clinic. Phone and email are
// stored encrypted at rest; the struct always carries plaintext.
type Patient struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Document   string    `json:"document"`
	BirthDate  time.Time `json:"birth_date"`
	Gender     *string   `json:"gender,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Address    *string   `json:"address,omitempty"`
	City       *string   `json:"city,omitempty"`
	State      *string   `json:"state,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

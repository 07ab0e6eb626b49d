package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FullName) == "" {
		return apperr.Validationf("full_name is required")
	}
	if strings.TrimSpace(p.Document) == "" {
		return apperr.Validationf("document is required")
	}
	if p.BirthDate.IsZero() {
		return apperr.Validationf("birth_date is required")
	}
	if p.BirthDate.After(time.Now()) {
		return apperr.Validationf("birth_date must not be in the future")
	}

	if existing, err := s.repo.GetByDocument(ctx, p.Document); err == nil && existing != nil {
		return apperr.Conflictf("a patient with document %s already exists", p.Document)
	} else if err != nil && !apperr.IsNotFound(err) {
		return err
	}

	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, nameFilter, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, updated *Patient) (*Patient, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(updated.FullName) == "" {
		return nil, apperr.Validationf("full_name is required")
	}
	if strings.TrimSpace(updated.Document) == "" {
		return nil, apperr.Validationf("document is required")
	}
	if updated.BirthDate.IsZero() {
		return nil, apperr.Validationf("birth_date is required")
	}

	if updated.Document != current.Document {
		if existing, err := s.repo.GetByDocument(ctx, updated.Document); err == nil && existing != nil {
			return nil, apperr.Conflictf("a patient with document %s already exists", updated.Document)
		} else if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
	}

	current.FullName = updated.FullName
	current.Document = updated.Document
	current.BirthDate = updated.BirthDate
	current.Gender = updated.Gender
	current.Phone = updated.Phone
	current.Email = updated.Email
	current.Address = updated.Address
	current.City = updated.City
	current.State = updated.State
	current.PostalCode = updated.PostalCode

	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

// Exists verifies that an active patient with the given id is registered.
// Used by the scheduling engine to validate patient references.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

// GetName returns the patient's full name. Used by the consultation engine
// when assembling the patient history view.
func (s *Service) GetName(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.FullName, nil
}

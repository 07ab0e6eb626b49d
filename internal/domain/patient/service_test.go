package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.Document == p.Document {
			return apperr.Conflictf("a patient with document %s already exists", p.Document)
		}
	}
	p.ID = uuid.New()
	p.Active = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFoundf("patient not found")
	}
	return p, nil
}

func (m *mockRepo) GetByDocument(_ context.Context, document string) (*Patient, error) {
	for _, p := range m.patients {
		if p.Document == document {
			return p, nil
		}
	}
	return nil, apperr.NotFoundf("patient not found")
}

func (m *mockRepo) List(_ context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if !p.Active {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(p.FullName), strings.ToLower(nameFilter)) {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFoundf("patient not found")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok {
		return apperr.NotFoundf("patient not found")
	}
	p.Active = false
	return nil
}

func validPatient() *Patient {
	return &Patient{
		FullName:  "Maria Souza",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreatePatient(t *testing.T) {
	svc := NewService(newMockRepo())

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if !p.Active {
		t.Error("expected new patient to be active")
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []struct {
		name   string
		mutate func(*Patient)
	}{
		{"missing name", func(p *Patient) { p.FullName = "  " }},
		{"missing document", func(p *Patient) { p.Document = "" }},
		{"missing birth date", func(p *Patient) { p.BirthDate = time.Time{} }},
		{"future birth date", func(p *Patient) { p.BirthDate = time.Now().AddDate(1, 0, 0) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPatient()
			tc.mutate(p)
			err := svc.Create(context.Background(), p)
			if !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreatePatient_DuplicateDocument(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Create(context.Background(), validPatient()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	dup := validPatient()
	dup.FullName = "Another Person"
	err := svc.Create(context.Background(), dup)
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Get(context.Background(), uuid.New())
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestUpdatePatient(t *testing.T) {
	svc := NewService(newMockRepo())

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	phone := "+55 11 99999-0000"
	upd := validPatient()
	upd.FullName = "Maria Souza Lima"
	upd.Phone = &phone

	result, err := svc.Update(context.Background(), p.ID, upd)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if result.FullName != "Maria Souza Lima" {
		t.Errorf("expected updated name, got %s", result.FullName)
	}
	if result.Phone == nil || *result.Phone != phone {
		t.Error("expected updated phone")
	}
}

func TestUpdatePatient_DocumentConflict(t *testing.T) {
	svc := NewService(newMockRepo())

	first := validPatient()
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	second := validPatient()
	second.Document = "987.654.321-00"
	if err := svc.Create(context.Background(), second); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	upd := validPatient()
	upd.Document = first.Document
	_, err := svc.Update(context.Background(), second.ID, upd)
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestDeactivatePatient(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := svc.Deactivate(context.Background(), p.ID); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	if err := svc.Exists(context.Background(), p.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected deactivated patient to fail existence check, got %v", err)
	}
}

func TestPatientExistsAndName(t *testing.T) {
	svc := NewService(newMockRepo())

	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Exists(context.Background(), p.ID); err != nil {
		t.Errorf("Exists() error: %v", err)
	}

	name, err := svc.GetName(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetName() error: %v", err)
	}
	if name != "Maria Souza" {
		t.Errorf("expected patient name, got %s", name)
	}

	if err := svc.Exists(context.Background(), uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unknown patient, got %v", err)
	}
}

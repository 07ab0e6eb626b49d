package scheduling

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	appointments map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	stored := *a
	m.appointments[a.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, apperr.NotFoundf("appointment not found")
	}
	copy := *a
	return &copy, nil
}

func (m *mockRepo) ListAll(_ context.Context) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

func (m *mockRepo) ListByDate(_ context.Context, date time.Time) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		if a.Date.Equal(date) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Time > result[j].Time
	})
	return result, nil
}

func (m *mockRepo) ActiveTimesByDate(_ context.Context, date time.Time) ([]string, error) {
	var times []string
	for _, a := range m.appointments {
		if a.Date.Equal(date) && a.Status.Active() {
			times = append(times, a.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func (m *mockRepo) FindBookedByDateTime(_ context.Context, date time.Time, timeOfDay string, excludeID uuid.UUID) (*Appointment, error) {
	for _, a := range m.appointments {
		if a.ID != excludeID && a.Date.Equal(date) && a.Time == timeOfDay && a.Status != StatusCanceled {
			copy := *a
			return &copy, nil
		}
	}
	return nil, apperr.NotFoundf("appointment not found")
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appointments[a.ID]; !ok {
		return apperr.NotFoundf("appointment not found")
	}
	a.UpdatedAt = time.Now()
	stored := *a
	m.appointments[a.ID] = &stored
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appointments[id]; !ok {
		return apperr.NotFoundf("appointment not found")
	}
	delete(m.appointments, id)
	return nil
}

// -- Mock Patient Lookup --

type mockPatients struct {
	known map[uuid.UUID]bool
}

func (m *mockPatients) Exists(_ context.Context, id uuid.UUID) error {
	if !m.known[id] {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

// -- Capturing Publisher --

type capturePublisher struct {
	events []string
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.events = append(p.events, routingKey)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// -- Fixtures --

func newTestService() (*Service, *mockRepo, uuid.UUID, *capturePublisher) {
	repo := newMockRepo()
	patientID := uuid.New()
	patients := &mockPatients{known: map[uuid.UUID]bool{patientID: true}}
	pub := &capturePublisher{}
	svc := NewService(repo, patients, nil, pub, zerolog.Nop())
	return svc, repo, patientID, pub
}

func futureDate() time.Time {
	return dayOf(time.Now().AddDate(0, 0, 7))
}

func createAppointment(t *testing.T, svc *Service, patientID uuid.UUID, date time.Time, timeOfDay string) *Appointment {
	t.Helper()
	a := &Appointment{
		PatientID:   patientID,
		Date:        date,
		Time:        timeOfDay,
		CreatedByID: uuid.New(),
	}
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return a
}

// -- Tests --

func TestCreateAppointment(t *testing.T) {
	svc, _, patientID, pub := newTestService()

	a := createAppointment(t, svc, patientID, futureDate(), "09:00")

	if a.Status != StatusScheduled {
		t.Errorf("expected status SCHEDULED, got %s", a.Status)
	}
	if a.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if len(pub.events) != 1 || pub.events[0] != "appointment.created" {
		t.Errorf("expected appointment.created event, got %v", pub.events)
	}
}

func TestCreateAppointment_UnknownPatient(t *testing.T) {
	svc, _, _, _ := newTestService()

	a := &Appointment{PatientID: uuid.New(), Date: futureDate(), Time: "09:00"}
	err := svc.Create(context.Background(), a)
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestCreateAppointment_PastDate(t *testing.T) {
	svc, _, patientID, _ := newTestService()

	a := &Appointment{
		PatientID: patientID,
		Date:      time.Now().AddDate(0, 0, -1),
		Time:      "09:00",
	}
	err := svc.Create(context.Background(), a)
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error for past date, got %v", err)
	}
}

func TestCreateAppointment_TodaySucceeds(t *testing.T) {
	svc, _, patientID, _ := newTestService()

	a := &Appointment{PatientID: patientID, Date: time.Now(), Time: "09:00"}
	if err := svc.Create(context.Background(), a); err != nil {
		t.Errorf("expected today's date to be accepted, got %v", err)
	}
}

func TestCreateAppointment_OutsideWindow(t *testing.T) {
	svc, _, patientID, _ := newTestService()

	for _, badTime := range []string{"07:59", "17:01", "17:30"} {
		a := &Appointment{PatientID: patientID, Date: futureDate(), Time: badTime}
		err := svc.Create(context.Background(), a)
		if !apperr.IsValidation(err) {
			t.Errorf("expected validation error for %s, got %v", badTime, err)
		}
	}

	for _, goodTime := range []string{"08:00", "17:00"} {
		a := &Appointment{PatientID: patientID, Date: futureDate(), Time: goodTime}
		if err := svc.Create(context.Background(), a); err != nil {
			t.Errorf("expected %s to be accepted, got %v", goodTime, err)
		}
	}
}

func TestCreateAppointment_DoubleBooking(t *testing.T) {
	svc, _, patientID, _ := newTestService()
	date := futureDate()

	first := createAppointment(t, svc, patientID, date, "10:00")

	second := &Appointment{PatientID: patientID, Date: date, Time: "10:00"}
	err := svc.Create(context.Background(), second)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// Canceling the first frees the slot for a new booking.
	if _, err := svc.UpdateStatus(context.Background(), first.ID, StatusCanceled, uuid.New()); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if err := svc.Create(context.Background(), second); err != nil {
		t.Errorf("expected slot to be free after cancellation, got %v", err)
	}
}

func TestUpdateAppointment_CompletedIsImmutable(t *testing.T) {
	svc, repo, patientID, _ := newTestService()

	a := createAppointment(t, svc, patientID, futureDate(), "09:00")
	repo.appointments[a.ID].Status = StatusCompleted

	obs := "late arrival"
	if _, err := svc.Update(context.Background(), a.ID, UpdateInput{Observations: &obs}, uuid.New()); !apperr.IsValidation(err) {
		t.Errorf("expected validation error updating completed appointment, got %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusScheduled, uuid.New()); !apperr.IsValidation(err) {
		t.Errorf("expected validation error rolling back completed appointment, got %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusCanceled, uuid.New()); !apperr.IsValidation(err) {
		t.Errorf("expected validation error canceling completed appointment, got %v", err)
	}

	if err := svc.Remove(context.Background(), a.ID, uuid.New()); !apperr.IsValidation(err) {
		t.Errorf("expected validation error deleting completed appointment, got %v", err)
	}
}

func TestUpdateAppointment_Reschedule(t *testing.T) {
	svc, _, patientID, _ := newTestService()
	date := futureDate()

	a := createAppointment(t, svc, patientID, date, "09:00")
	createAppointment(t, svc, patientID, date, "10:00")

	// Moving onto an occupied slot conflicts.
	taken := "10:00"
	if _, err := svc.Update(context.Background(), a.ID, UpdateInput{Time: &taken}, uuid.New()); !apperr.IsConflict(err) {
		t.Errorf("expected conflict moving onto occupied slot, got %v", err)
	}

	// Re-saving the same slot does not conflict with itself.
	same := "09:00"
	obs := "bring previous exams"
	updated, err := svc.Update(context.Background(), a.ID, UpdateInput{Time: &same, Observations: &obs}, uuid.New())
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Observations == nil || *updated.Observations != obs {
		t.Error("expected observations to be updated")
	}

	free := "11:00"
	updated, err = svc.Update(context.Background(), a.ID, UpdateInput{Time: &free}, uuid.New())
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Time != "11:00" {
		t.Errorf("expected time 11:00, got %s", updated.Time)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	svc, _, patientID, pub := newTestService()

	a := createAppointment(t, svc, patientID, futureDate(), "09:00")

	updated, err := svc.UpdateStatus(context.Background(), a.ID, StatusInProgress, uuid.New())
	if err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, Status("UNKNOWN"), uuid.New()); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}

	found := false
	for _, e := range pub.events {
		if e == "appointment.status_changed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected appointment.status_changed event, got %v", pub.events)
	}
}

func TestRemoveAppointment(t *testing.T) {
	svc, _, patientID, pub := newTestService()

	a := createAppointment(t, svc, patientID, futureDate(), "09:00")
	if err := svc.Remove(context.Background(), a.ID, uuid.New()); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	if _, err := svc.GetByID(context.Background(), a.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := svc.Remove(context.Background(), a.ID, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found deleting twice, got %v", err)
	}

	found := false
	for _, e := range pub.events {
		if e == "appointment.deleted" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected appointment.deleted event, got %v", pub.events)
	}
}

func TestAvailableSlots(t *testing.T) {
	svc, _, patientID, _ := newTestService()
	date := futureDate()

	createAppointment(t, svc, patientID, date, "10:00")

	slots, err := svc.AvailableSlots(context.Background(), date)
	if err != nil {
		t.Fatalf("AvailableSlots() error: %v", err)
	}
	if len(slots) != 18 {
		t.Fatalf("expected 18 available slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s == "10:00" {
			t.Error("expected 10:00 to be occupied")
		}
	}
}

func TestAvailableSlots_FullyBookedDay(t *testing.T) {
	svc, _, patientID, _ := newTestService()
	date := futureDate()

	for _, slot := range CanonicalSlots() {
		createAppointment(t, svc, patientID, date, slot)
	}

	slots, err := svc.AvailableSlots(context.Background(), date)
	if err != nil {
		t.Fatalf("AvailableSlots() error: %v", err)
	}
	if slots == nil {
		t.Fatal("expected empty slice for a fully booked day, got nil")
	}
	if len(slots) != 0 {
		t.Errorf("expected no available slots, got %v", slots)
	}
}

func TestAvailableSlots_CanceledFreesSlot(t *testing.T) {
	svc, _, patientID, _ := newTestService()
	date := futureDate()

	a := createAppointment(t, svc, patientID, date, "10:00")
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusCanceled, uuid.New()); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), date)
	if err != nil {
		t.Fatalf("AvailableSlots() error: %v", err)
	}
	if len(slots) != 19 {
		t.Errorf("expected full 19-slot day after cancellation, got %d", len(slots))
	}
}

func TestListByPatient_UnknownPatient(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.ListByPatient(context.Background(), uuid.New())
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestListAll_Ordering(t *testing.T) {
	svc, _, patientID, _ := newTestService()

	later := futureDate().AddDate(0, 0, 1)
	createAppointment(t, svc, patientID, later, "08:00")
	createAppointment(t, svc, patientID, futureDate(), "14:00")
	createAppointment(t, svc, patientID, futureDate(), "09:00")

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(all))
	}
	if all[0].Time != "09:00" || all[1].Time != "14:00" || all[2].Time != "08:00" {
		t.Errorf("unexpected ordering: %s, %s, %s", all[0].Time, all[1].Time, all[2].Time)
	}
}

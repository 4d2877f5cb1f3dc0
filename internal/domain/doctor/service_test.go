package doctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
)

type mockRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockRepo() *mockRepo {
	return &mockRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, nil
}

func (m *mockRepo) Update(_ context.Context, d *Doctor) error {
	m.doctors[d.ID] = d
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.doctors[id]; !ok {
		return apperr.NotFound("doctor", id.String())
	}
	delete(m.doctors, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		if specialization == "" || d.Specialization == specialization {
			result = append(result, d)
		}
	}
	return result, len(result), nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

func validDoctor() *Doctor {
	return &Doctor{
		FirstName:      "Meera",
		LastName:       "Iyer",
		Specialization: "Cardiology",
		Availability: []DayAvailability{
			{Day: "Monday", TimeSlots: []TimeWindow{{StartTime: "09:00", EndTime: "12:00", MaxPatients: 8}}},
			{Day: "Wednesday", TimeSlots: []TimeWindow{{StartTime: "14:00", EndTime: "17:30"}}},
		},
	}
}

func TestService_CreateDoctor(t *testing.T) {
	svc := newTestService()
	d := validDoctor()
	if err := svc.CreateDoctor(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if !d.Active {
		t.Error("expected new doctor to be active")
	}
}

func TestService_CreateDoctor_Validation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name   string
		mutate func(d *Doctor)
	}{
		{"missing specialization", func(d *Doctor) { d.Specialization = "" }},
		{"bad day", func(d *Doctor) { d.Availability[0].Day = "Funday" }},
		{"lowercase day", func(d *Doctor) { d.Availability[0].Day = "monday" }},
		{"bad clock", func(d *Doctor) { d.Availability[0].TimeSlots[0].StartTime = "9am" }},
		{"end before start", func(d *Doctor) { d.Availability[0].TimeSlots[0].EndTime = "08:00" }},
		{"equal bounds", func(d *Doctor) { d.Availability[0].TimeSlots[0].EndTime = "09:00" }},
		{"duplicate day", func(d *Doctor) { d.Availability[1].Day = "Monday" }},
		{"bad email", func(d *Doctor) { d.Email = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoctor()
			tt.mutate(d)
			if err := svc.CreateDoctor(context.Background(), d); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_UpdateAvailability(t *testing.T) {
	svc := newTestService()
	d := validDoctor()
	svc.CreateDoctor(context.Background(), d)

	updated, err := svc.UpdateAvailability(context.Background(), d.ID, []DayAvailability{
		{Day: "Friday", TimeSlots: []TimeWindow{{StartTime: "08:00", EndTime: "10:00"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Availability) != 1 || updated.Availability[0].Day != "Friday" {
		t.Errorf("expected availability replaced, got %+v", updated.Availability)
	}

	_, err = svc.UpdateAvailability(context.Background(), uuid.New(), nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDoctor_WindowsFor(t *testing.T) {
	d := validDoctor()
	monday := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	windows, ok := d.WindowsFor(monday)
	if !ok || len(windows) != 1 || windows[0].StartTime != "09:00" {
		t.Fatalf("expected Monday window, got %v %v", windows, ok)
	}
	if _, ok := d.WindowsFor(monday.AddDate(0, 0, 1)); ok {
		t.Error("expected no availability on Tuesday")
	}
}

func TestTimeWindow_Minutes(t *testing.T) {
	start, end, err := TimeWindow{StartTime: "09:30", EndTime: "11:00"}.Minutes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 570 || end != 660 {
		t.Errorf("got %d-%d", start, end)
	}
}

package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/domain/doctor"
	"github.com/kanishkgandecha/medilink/internal/domain/patient"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListAppointments(ctx context.Context, f Filter) ([]*Appointment, int, error)
	// CountByStatus tallies a doctor's appointments per status.
	CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error)
}

// PatientReader is the slice of the patient store the scheduler needs.
type PatientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// DoctorReader is the slice of the doctor store the scheduler needs.
type DoctorReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

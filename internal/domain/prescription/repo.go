package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/domain/doctor"
	"github.com/kanishkgandecha/medilink/internal/domain/patient"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	List(ctx context.Context, f Filter) ([]*Prescription, int, error)
	// ListByPatient returns the patient's prescriptions, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// PatientReader is the slice of the patient store the checker needs.
type PatientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DoctorReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

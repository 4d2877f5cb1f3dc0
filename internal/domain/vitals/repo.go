package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/domain/patient"
)

type Repository interface {
	Create(ctx context.Context, r *Reading) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reading, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, readingType string, since time.Time) ([]*Reading, error)
	Latest(ctx context.Context, patientID uuid.UUID, readingType string) (*Reading, error)
	ListAbnormal(ctx context.Context, f Filter) ([]*Reading, error)
	Acknowledge(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Reading, error)
	// ListDevices returns every device bound to a patient or seen in a
	// reading, ordered by device id. Status is left to the caller.
	ListDevices(ctx context.Context) ([]*Device, error)
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
}

// PatientReader resolves the patient a reading belongs to.
type PatientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*patient.Patient, error)
}

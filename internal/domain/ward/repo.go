package ward

import (
	"context"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/domain/patient"
)

// Repository loads wards together with their occupants.
type Repository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	// Update saves ward attributes. Bed counters follow total_beds and the
	// stored occupants, never the caller's copy.
	Update(ctx context.Context, w *Ward) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]*Ward, error)
	// ListActive returns active wards ordered by ward number.
	ListActive(ctx context.Context) ([]*Ward, error)
	// ListActiveWithBeds returns active wards with at least one free bed,
	// ordered by ward number.
	ListActiveWithBeds(ctx context.Context) ([]*Ward, error)
	// AdmitOccupant claims a bed only if one is free and records o. An empty
	// o.BedLabel is filled by NextBedLabel with the occupied beds after the
	// claim. A ward without a free bed yields ErrWardFull.
	AdmitOccupant(ctx context.Context, wardID uuid.UUID, o *Occupant) error
	// RemoveOccupant frees the bed held by patientID.
	RemoveOccupant(ctx context.Context, wardID, patientID uuid.UUID) error
}

// PatientStore is the slice of the patient store the allocator needs.
type PatientStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*patient.Patient, error)
	SetAssignedWard(ctx context.Context, id uuid.UUID, wardID *uuid.UUID) error
}

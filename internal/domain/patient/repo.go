package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByIDs returns the patients that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	// SetAssignedWard records the ward a patient occupies; nil clears it.
	SetAssignedWard(ctx context.Context, id uuid.UUID, wardID *uuid.UUID) error
	// SetMedicalHistory replaces the stored history entries.
	SetMedicalHistory(ctx context.Context, id uuid.UUID, history []HistoryEntry) error
}

package ward

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

type Service struct {
	repo      Repository
	patients  PatientStore
	allocator *Allocator
	logger    zerolog.Logger
}

func NewService(repo Repository, patients PatientStore, allocator *Allocator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, allocator: allocator, logger: logger}
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	w.WardNumber = strings.TrimSpace(w.WardNumber)
	w.Occupants = nil
	w.normalize()
	if err := w.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	w.Recount()
	return s.repo.Create(ctx, w)
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListWards(ctx context.Context, f Filter) ([]*Ward, error) {
	return s.repo.List(ctx, f)
}

// ListAvailable returns active wards with free beds, most free beds first.
func (s *Service) ListAvailable(ctx context.Context) ([]*Ward, error) {
	wards, err := s.repo.ListActiveWithBeds(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(wards, func(i, j int) bool {
		return wards[i].AvailableBeds > wards[j].AvailableBeds
	})
	return wards, nil
}

// UpdateWard replaces ward attributes. Occupants are managed through
// admission and discharge only.
func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	existing, err := s.repo.GetByID(ctx, w.ID)
	if err != nil {
		return err
	}
	w.normalize()
	if err := w.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	if w.TotalBeds < len(existing.Occupants) {
		return apperr.Invalidf("total beds cannot be fewer than the %d occupied beds", len(existing.Occupants))
	}
	w.Occupants = existing.Occupants
	w.Recount()
	return s.repo.Update(ctx, w)
}

func (s *Service) DeleteWard(ctx context.Context, id uuid.UUID) error {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if len(w.Occupants) > 0 {
		return apperr.Conflict("cannot delete a ward with patients")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) AllocateWard(ctx context.Context, patientID uuid.UUID) (*Allocation, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Invalidf("patient_id is required")
	}
	return s.allocator.AllocateWard(ctx, patientID)
}

// AssignToWard admits a patient to the named ward.
func (s *Service) AssignToWard(ctx context.Context, wardID uuid.UUID, req AssignRequest) (*Allocation, error) {
	req.BedLabel = strings.TrimSpace(req.BedLabel)
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	p, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if req.BedLabel != "" {
		w, err := s.repo.GetByID(ctx, wardID)
		if err != nil {
			return nil, err
		}
		for _, o := range w.Occupants {
			if o.BedLabel == req.BedLabel {
				return nil, apperr.Conflict("bed " + req.BedLabel + " is occupied")
			}
		}
	}
	if req.ExpectedDischargeDate == "" {
		return s.allocator.Assign(ctx, wardID, p, req.BedLabel, nil)
	}
	due, err := dateutil.ParseDate(req.ExpectedDischargeDate)
	if err != nil {
		return nil, apperr.Invalidf("expected_discharge_date: %v", err)
	}
	return s.allocator.Assign(ctx, wardID, p, req.BedLabel, &due)
}

func (s *Service) Discharge(ctx context.Context, wardID, patientID uuid.UUID) (*Ward, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Invalidf("patient_id is required")
	}
	return s.allocator.Discharge(ctx, wardID, patientID)
}

func (s *Service) SuggestWardTransfers(ctx context.Context) ([]TransferSuggestion, error) {
	return s.allocator.SuggestWardTransfers(ctx)
}

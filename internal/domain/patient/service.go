package patient

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Allergies = cleanAllergies(p.Allergies)
	if err := p.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	// Ward assignment only happens through ward admission.
	p.AssignedWardID = nil
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPatientByDevice(ctx context.Context, deviceID string) (*Patient, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, apperr.Invalidf("device_id is required")
	}
	return s.repo.GetByDeviceID(ctx, deviceID)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Allergies = cleanAllergies(p.Allergies)
	if err := p.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	p.AssignedWardID = existing.AssignedWardID
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.AssignedWardID != nil {
		return apperr.Conflict("patient is admitted to a ward; discharge before deleting")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(search), limit, offset)
}

// History returns the conditions, medications and allergies of a patient.
func (s *Service) History(ctx context.Context, id uuid.UUID) (*History, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.normalize()
	return &History{
		MedicalHistory:     p.MedicalHistory,
		CurrentMedications: p.CurrentMedications,
		Allergies:          p.Allergies,
	}, nil
}

// AddHistory appends a condition and returns the full history.
func (s *Service) AddHistory(ctx context.Context, id uuid.UUID, entry HistoryEntry) ([]HistoryEntry, error) {
	entry.Condition = strings.TrimSpace(entry.Condition)
	if err := entry.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history := append(append([]HistoryEntry{}, p.MedicalHistory...), entry)
	if err := s.repo.SetMedicalHistory(ctx, id, history); err != nil {
		return nil, err
	}
	return history, nil
}

// UpdateHistory patches the entry at idx and returns the full history.
func (s *Service) UpdateHistory(ctx context.Context, id uuid.UUID, idx int, u HistoryUpdate) ([]HistoryEntry, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(p.MedicalHistory) {
		return nil, apperr.NotFound("medical history entry", strconv.Itoa(idx))
	}
	history := append([]HistoryEntry{}, p.MedicalHistory...)
	history[idx] = u.Apply(history[idx])
	if err := history[idx].Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := s.repo.SetMedicalHistory(ctx, id, history); err != nil {
		return nil, err
	}
	return history, nil
}

func cleanAllergies(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

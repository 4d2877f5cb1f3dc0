package doctor

import (
	"context"
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

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := d.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	d.Active = true
	return s.repo.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateDoctor replaces the doctor record, availability included.
func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if _, err := s.repo.GetByID(ctx, d.ID); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	return s.repo.Update(ctx, d)
}

// UpdateAvailability replaces only the weekly availability.
func (s *Service) UpdateAvailability(ctx context.Context, id uuid.UUID, availability []DayAvailability) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Availability = availability
	if err := d.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(specialization), limit, offset)
}

package prescription

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

type Service struct {
	repo     Repository
	patients PatientReader
	doctors  DoctorReader
	checker  *Checker
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientReader, doctors DoctorReader, checker *Checker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, doctors: doctors, checker: checker, logger: logger}
}

// ValidatePrescription screens a draft without saving it.
func (s *Service) ValidatePrescription(ctx context.Context, req ValidateRequest) (*Report, error) {
	trimNames(req.Medications)
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	p, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	return s.checker.ValidatePrescription(ctx, medicationNames(req.Medications), p)
}

// CreatePrescription screens and saves a prescription. Warnings are stored
// with it and never prevent the write.
func (s *Service) CreatePrescription(ctx context.Context, req CreateRequest) (*Prescription, *Report, error) {
	trimNames(req.Medications)
	if err := req.Validate(); err != nil {
		return nil, nil, apperr.Invalid(err)
	}
	p, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.doctors.GetByID(ctx, req.DoctorID); err != nil {
		return nil, nil, err
	}

	rx := &Prescription{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		Medications:   req.Medications,
		Diagnosis:     req.Diagnosis,
		LabTests:      req.LabTests,
		Notes:         req.Notes,
		Status:        StatusActive,
	}
	for i := range rx.LabTests {
		if rx.LabTests[i].Status == "" {
			rx.LabTests[i].Status = LabPending
		}
	}
	if req.ValidUntil != "" {
		until, err := dateutil.ParseDate(req.ValidUntil)
		if err != nil {
			return nil, nil, apperr.Invalidf("valid_until: %v", err)
		}
		rx.ValidUntil = &until
	}

	report, err := s.checker.ValidatePrescription(ctx, medicationNames(req.Medications), p)
	if err != nil {
		return nil, nil, err
	}
	rx.Warnings = report.Flatten()

	if err := s.repo.Create(ctx, rx); err != nil {
		return nil, nil, err
	}
	if report.HasSevere() {
		s.logger.Warn().
			Str("prescription_id", rx.ID.String()).
			Str("patient_id", rx.PatientID.String()).
			Int("warnings", len(rx.Warnings)).
			Msg("prescription saved with severe warnings")
	}
	return rx, report, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, f Filter) ([]*Prescription, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// UpdateStatus moves an active prescription to completed or cancelled.
// Finished prescriptions cannot change again.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req StatusUpdate) (*Prescription, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	rx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rx.Status == req.Status {
		return rx, nil
	}
	if rx.Status != StatusActive {
		return nil, apperr.Conflict("prescription is already " + rx.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, err
	}
	rx.Status = req.Status
	return rx, nil
}

func trimNames(items []Item) {
	for i := range items {
		items[i].MedicationName = strings.TrimSpace(items[i].MedicationName)
	}
}

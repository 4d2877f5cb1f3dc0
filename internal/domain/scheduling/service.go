package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

const minutesPerDay = 24 * 60

type Service struct {
	appointments AppointmentRepository
	patients     PatientReader
	doctors      DoctorReader
	scheduler    *Scheduler
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appointments AppointmentRepository, patients PatientReader, doctors DoctorReader, scheduler *Scheduler, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		scheduler:    scheduler,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateAppointment books an appointment. Duration, priority and no-show
// risk are computed once at booking time.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	date, _ := dateutil.ParseDate(req.AppointmentDate)

	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.GetByID(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	duration, err := s.scheduler.PredictDuration(ctx, req.Type, req.PatientID, req.DoctorID)
	if err != nil {
		return nil, err
	}

	var slot TimeSlot
	if req.TimeSlot == nil {
		found, err := s.scheduler.FindOptimalSlot(ctx, req.DoctorID, date, duration)
		recordSlotSearch(err)
		if err != nil {
			return nil, err
		}
		slot = *found
	} else {
		slot = *req.TimeSlot
		if slot.EndTime == "" {
			start, _ := dateutil.ParseClock(slot.StartTime)
			if start+duration >= minutesPerDay {
				return nil, apperr.Invalidf("time_slot: appointment would run past midnight")
			}
			slot.EndTime = dateutil.FormatClock(start + duration)
		}
	}

	if err := s.checkDoubleBooking(ctx, req.DoctorID, date, slot, uuid.Nil); err != nil {
		return nil, err
	}

	priority, err := s.scheduler.CalculatePriority(ctx, req.Type, req.Symptoms, req.PatientID)
	if err != nil {
		return nil, err
	}
	noShow, err := s.scheduler.PredictNoShow(ctx, req.PatientID, date)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		AppointmentDate:   date,
		TimeSlot:          slot,
		Type:              req.Type,
		Status:            StatusScheduled,
		Reason:            strings.TrimSpace(req.Reason),
		Symptoms:          req.Symptoms,
		Notes:             req.Notes,
		PredictedDuration: duration,
		Priority:          priority,
		NoShowProbability: noShow,
	}
	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	metrics.RecordAppointmentBooked(a.Type)
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("date", date.Format(dateutil.DateLayout)).
		Str("start", slot.StartTime).
		Int("priority", priority).
		Msg("appointment booked")
	return a, nil
}

// checkDoubleBooking rejects a second active appointment for the doctor at
// the same start time on the same day.
func (s *Service) checkDoubleBooking(ctx context.Context, doctorID uuid.UUID, date time.Time, slot TimeSlot, self uuid.UUID) error {
	existing, _, err := s.appointments.ListAppointments(ctx, Filter{
		DoctorID: &doctorID,
		Date:     &date,
		Statuses: ActiveStatuses,
	})
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.ID != self && a.TimeSlot.StartTime == slot.StartTime {
			return apperr.Conflict("doctor already has an appointment at " + slot.StartTime)
		}
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	return s.appointments.ListAppointments(ctx, f)
}

// UpdateAppointment applies status, slot and note changes. Moving to
// completed stamps CompletedAt.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.TimeSlot != nil && *req.TimeSlot != a.TimeSlot {
		if !a.IsActive() {
			return nil, apperr.Conflict("cannot reschedule a " + a.Status + " appointment")
		}
		slot := *req.TimeSlot
		if slot.EndTime == "" {
			start, _ := dateutil.ParseClock(slot.StartTime)
			slot.EndTime = dateutil.FormatClock(min(start+a.PredictedDuration, minutesPerDay-1))
		}
		if err := s.checkDoubleBooking(ctx, a.DoctorID, a.AppointmentDate, slot, a.ID); err != nil {
			return nil, err
		}
		a.TimeSlot = slot
	}
	if req.Status != "" && req.Status != a.Status {
		a.Status = req.Status
		if a.Status == StatusCompleted && a.CompletedAt == nil {
			now := s.now()
			a.CompletedAt = &now
		}
	}
	if req.Notes != nil {
		a.Notes = *req.Notes
	}
	if req.Reason != nil {
		a.Reason = strings.TrimSpace(*req.Reason)
	}

	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled || a.Status == StatusCompleted {
		return nil, apperr.Conflict("appointment is already " + a.Status)
	}
	a.Status = StatusCancelled
	a.CancelReason = strings.TrimSpace(reason)
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// FindOptimalSlot validates a slot request and searches the doctor's day.
func (s *Service) FindOptimalSlot(ctx context.Context, req SlotRequest) (*TimeSlot, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	date, _ := dateutil.ParseDate(req.Date)
	slot, err := s.scheduler.FindOptimalSlot(ctx, req.DoctorID, date, req.Duration)
	recordSlotSearch(err)
	return slot, err
}

// DoctorSchedule returns the doctor's day in suggested consultation order.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.scheduler.OptimizeSchedule(ctx, doctorID, date)
}

func (s *Service) NoShowRisk(ctx context.Context, patientID uuid.UUID, date time.Time) (float64, error) {
	return s.scheduler.PredictNoShow(ctx, patientID, date)
}

// DoctorStatistics counts the doctor's appointments by outcome.
func (s *Service) DoctorStatistics(ctx context.Context, doctorID uuid.UUID) (*DoctorStats, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	counts, err := s.appointments.CountByStatus(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	stats := &DoctorStats{
		DoctorID:  doctorID,
		Completed: counts[StatusCompleted],
		Cancelled: counts[StatusCancelled],
		NoShow:    counts[StatusNoShow],
	}
	for _, n := range counts {
		stats.TotalAppointments += n
	}
	for _, status := range ActiveStatuses {
		stats.Upcoming += counts[status]
	}
	return stats, nil
}

func recordSlotSearch(err error) {
	switch {
	case err == nil:
		metrics.RecordSlotSearch("found")
	case errors.Is(err, ErrNoAvailability):
		metrics.RecordSlotSearch("no_availability")
	case errors.Is(err, ErrNoAvailableSlot):
		metrics.RecordSlotSearch("no_slot")
	}
}

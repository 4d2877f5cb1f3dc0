package scheduling

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/telemetry"
	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

var (
	// ErrNoAvailability means the doctor does not work on the requested weekday.
	ErrNoAvailability = errors.New("doctor has no availability on this day")
	// ErrNoAvailableSlot means every window on the day is fully booked.
	ErrNoAvailableSlot = errors.New("no available slot found")

	errInvalidDuration = apperr.Invalidf("duration must be between 1 and %d minutes", maxDurationMinutes)
)

const (
	slotStepMinutes     = 15
	maxDurationMinutes  = 720
	durationHistorySize = 5
	defaultDuration     = 30

	baseNoShow      = 0.15
	advanceNoShow   = 0.10
	weekendNoShow   = 0.05
	maxNoShow       = 0.9
	advanceDays     = 30
	maxPriority     = 5
	defaultPriority = 3
	urgentPriority  = 4
	chronicLimit    = 2
)

var baseDurations = map[string]int{
	TypeConsultation: 30,
	TypeFollowUp:     20,
	TypeSurgery:      120,
	TypeEmergency:    45,
}

var urgentKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"severe bleeding",
	"unconscious",
	"stroke",
	"heart attack",
}

// Scheduler predicts durations and urgency and searches doctor calendars.
type Scheduler struct {
	appointments AppointmentRepository
	patients     PatientReader
	doctors      DoctorReader
	loc          *time.Location
	logger       zerolog.Logger
	now          func() time.Time
}

// NewScheduler builds a scheduler whose slot clock times are read in loc.
// A nil loc means UTC.
func NewScheduler(appointments AppointmentRepository, patients PatientReader, doctors DoctorReader, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
	}
}

// BaseDuration returns the standard length of an appointment type.
func BaseDuration(apptType string) int {
	if d, ok := baseDurations[apptType]; ok {
		return d
	}
	return defaultDuration
}

// PredictDuration blends the type's base length with the average realized
// length of the patient's five most recent completed appointments.
func (s *Scheduler) PredictDuration(ctx context.Context, apptType string, patientID, doctorID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling.PredictDuration",
		attribute.String("appointment.type", apptType),
		attribute.String("doctor.id", doctorID.String()))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if _, err = s.patients.GetByID(ctx, patientID); err != nil {
		return 0, err
	}
	if _, err = s.doctors.GetByID(ctx, doctorID); err != nil {
		return 0, err
	}

	base := BaseDuration(apptType)
	history, _, err := s.appointments.ListAppointments(ctx, Filter{
		PatientID:   &patientID,
		Statuses:    []string{StatusCompleted},
		NewestFirst: true,
		Limit:       durationHistorySize,
	})
	if err != nil {
		return 0, err
	}

	var total float64
	var n int
	for _, a := range history {
		minutes, ok := realizedMinutes(a, s.loc)
		if !ok {
			continue
		}
		total += minutes
		n++
	}
	if n == 0 {
		return base, nil
	}
	avg := total / float64(n)
	return int(math.Round((float64(base) + avg) / 2)), nil
}

// realizedMinutes is completion time minus scheduled start, clamped to
// [0, maxDurationMinutes]. UpdatedAt stands in for a missing CompletedAt.
func realizedMinutes(a *Appointment, loc *time.Location) (float64, bool) {
	start, err := a.ScheduledStart(loc)
	if err != nil {
		return 0, false
	}
	end := a.UpdatedAt
	if a.CompletedAt != nil {
		end = *a.CompletedAt
	}
	minutes := end.Sub(start).Minutes()
	return math.Max(0, math.Min(minutes, maxDurationMinutes)), true
}

// CalculatePriority scores urgency from 1 to 5.
func (s *Scheduler) CalculatePriority(ctx context.Context, apptType string, symptoms []string, patientID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling.CalculatePriority",
		attribute.String("appointment.type", apptType))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return 0, err
	}

	priority := defaultPriority
	if apptType == TypeEmergency {
		priority = maxPriority
	} else if hasUrgentSymptom(symptoms) {
		priority = urgentPriority
	}
	if p.ChronicConditions() > chronicLimit {
		priority = min(priority+1, maxPriority)
	}
	return priority, nil
}

func hasUrgentSymptom(symptoms []string) bool {
	for _, s := range symptoms {
		lower := strings.ToLower(s)
		for _, kw := range urgentKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

type interval struct{ start, end int }

// FindOptimalSlot returns the earliest free slot of duration minutes on
// date, scanning the doctor's windows in declared order at 15 minute steps.
func (s *Scheduler) FindOptimalSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, duration int) (*TimeSlot, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling.FindOptimalSlot",
		attribute.String("doctor.id", doctorID.String()),
		attribute.String("date", date.Format(dateutil.DateLayout)),
		attribute.Int("duration", duration))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if duration <= 0 || duration > maxDurationMinutes {
		err = errInvalidDuration
		return nil, err
	}

	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day := dateutil.StartOfDay(date)
	windows, ok := d.WindowsFor(day)
	if !ok {
		err = ErrNoAvailability
		return nil, err
	}

	booked, err := s.bookedIntervals(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	for _, w := range windows {
		wStart, wEnd, werr := w.Minutes()
		if werr != nil {
			s.logger.Warn().Err(werr).Str("doctor_id", doctorID.String()).Msg("skipping malformed availability window")
			continue
		}
		for candidate := wStart; candidate+duration <= wEnd; candidate += slotStepMinutes {
			if overlapsAny(candidate, candidate+duration, booked) {
				continue
			}
			slot := &TimeSlot{
				StartTime: dateutil.FormatClock(candidate),
				EndTime:   dateutil.FormatClock(candidate + duration),
			}
			s.logger.Debug().
				Str("doctor_id", doctorID.String()).
				Str("date", day.Format(dateutil.DateLayout)).
				Str("start", slot.StartTime).
				Msg("slot found")
			return slot, nil
		}
	}
	err = ErrNoAvailableSlot
	return nil, err
}

func (s *Scheduler) bookedIntervals(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]interval, error) {
	existing, _, err := s.appointments.ListAppointments(ctx, Filter{
		DoctorID: &doctorID,
		Date:     &day,
		Statuses: ActiveStatuses,
	})
	if err != nil {
		return nil, err
	}
	booked := make([]interval, 0, len(existing))
	for _, a := range existing {
		start, err := dateutil.ParseClock(a.TimeSlot.StartTime)
		if err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("ignoring appointment with malformed start time")
			continue
		}
		end, err := dateutil.ParseClock(a.TimeSlot.EndTime)
		if err != nil || end <= start {
			end = start + max(a.PredictedDuration, BaseDuration(a.Type))
		}
		booked = append(booked, interval{start: start, end: end})
	}
	return booked, nil
}

func overlapsAny(start, end int, booked []interval) bool {
	for _, b := range booked {
		if start < b.end && b.start < end {
			return true
		}
	}
	return false
}

// PredictNoShow estimates the probability the patient misses an appointment
// on appointmentDate.
func (s *Scheduler) PredictNoShow(ctx context.Context, patientID uuid.UUID, appointmentDate time.Time) (float64, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling.PredictNoShow")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if _, err = s.patients.GetByID(ctx, patientID); err != nil {
		return 0, err
	}

	history, _, err := s.appointments.ListAppointments(ctx, Filter{
		PatientID:     &patientID,
		CreatedBefore: &appointmentDate,
	})
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return baseNoShow, nil
	}

	noShows := 0
	for _, a := range history {
		if a.Status == StatusNoShow {
			noShows++
		}
	}
	p := float64(noShows) / float64(len(history))
	if appointmentDate.Sub(s.now()) > advanceDays*24*time.Hour {
		p += advanceNoShow
	}
	if wd := appointmentDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		p += weekendNoShow
	}
	return math.Min(p, maxNoShow), nil
}

// OptimizeSchedule orders a doctor's scheduled and confirmed appointments
// for the day by priority, then shortest predicted duration. Nothing is
// persisted.
func (s *Scheduler) OptimizeSchedule(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling.OptimizeSchedule",
		attribute.String("doctor.id", doctorID.String()))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	day := dateutil.StartOfDay(date)
	appts, _, err := s.appointments.ListAppointments(ctx, Filter{
		DoctorID: &doctorID,
		Date:     &day,
		Statuses: []string{StatusScheduled, StatusConfirmed},
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Priority != appts[j].Priority {
			return appts[i].Priority > appts[j].Priority
		}
		return appts[i].PredictedDuration < appts[j].PredictedDuration
	})
	return appts, nil
}

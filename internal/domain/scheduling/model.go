package scheduling

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

const (
	TypeConsultation = "consultation"
	TypeFollowUp     = "follow-up"
	TypeSurgery      = "surgery"
	TypeEmergency    = "emergency"
)

const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no-show"
)

var validStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusNoShow:     true,
}

// ActiveStatuses occupy a doctor's time.
var ActiveStatuses = []string{StatusScheduled, StatusConfirmed, StatusInProgress}

// Appointment maps to the appointments table. AppointmentDate is a calendar
// day at UTC midnight; the time slot is clinic clock time on that day.
type Appointment struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID          uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentDate   time.Time  `db:"appointment_date" json:"appointment_date"`
	TimeSlot          TimeSlot   `json:"time_slot"`
	Type              string     `db:"type" json:"type"`
	Status            string     `db:"status" json:"status"`
	Reason            string     `db:"reason" json:"reason,omitempty"`
	Symptoms          []string   `db:"symptoms" json:"symptoms"`
	Notes             string     `db:"notes" json:"notes,omitempty"`
	PredictedDuration int        `db:"predicted_duration" json:"predicted_duration"`
	Priority          int        `db:"priority" json:"priority"`
	NoShowProbability float64    `db:"no_show_probability" json:"no_show_probability"`
	CancelReason      string     `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// TimeSlot is a [start, end) interval in "HH:MM".
type TimeSlot struct {
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// Minutes returns the slot bounds as minutes after midnight.
func (s TimeSlot) Minutes() (start, end int, err error) {
	if start, err = dateutil.ParseClock(s.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = dateutil.ParseClock(s.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (s TimeSlot) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.StartTime, validation.Required, validation.By(clockRule)),
		validation.Field(&s.EndTime, validation.By(clockRule)),
	)
	if err != nil || s.EndTime == "" {
		return err
	}
	start, end, _ := s.Minutes()
	if start >= end {
		return validation.Errors{"end_time": validation.NewError("validation_slot_order", "must be after start_time")}
	}
	return nil
}

// ScheduledStart is the instant the slot starts, reading the appointment day
// and slot clock in loc. A nil loc means UTC.
func (a *Appointment) ScheduledStart(loc *time.Location) (time.Time, error) {
	start, err := dateutil.ParseClock(a.TimeSlot.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := a.AppointmentDate.UTC().Date()
	return time.Date(y, m, d, start/60, start%60, 0, 0, loc), nil
}

// IsActive reports whether the appointment still blocks the doctor's time.
func (a *Appointment) IsActive() bool {
	for _, s := range ActiveStatuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// CreateRequest is the payload for booking an appointment. When TimeSlot is
// omitted the first free slot of the predicted duration is chosen.
type CreateRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	AppointmentDate string    `json:"appointment_date"`
	TimeSlot        *TimeSlot `json:"time_slot,omitempty"`
	Type            string    `json:"type"`
	Reason          string    `json:"reason,omitempty"`
	Symptoms        []string  `json:"symptoms,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.DoctorID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.AppointmentDate, validation.Required, validation.By(dateRule)),
		validation.Field(&r.TimeSlot),
		validation.Field(&r.Type, validation.Required,
			validation.In(TypeConsultation, TypeFollowUp, TypeSurgery, TypeEmergency)),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

// UpdateRequest changes mutable appointment fields. Empty fields are kept.
type UpdateRequest struct {
	Status   string    `json:"status,omitempty"`
	TimeSlot *TimeSlot `json:"time_slot,omitempty"`
	Notes    *string   `json:"notes,omitempty"`
	Reason   *string   `json:"reason,omitempty"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.By(func(v interface{}) error {
			if s, _ := v.(string); s != "" && !validStatuses[s] {
				return validation.NewError("validation_status", "invalid appointment status")
			}
			return nil
		})),
		validation.Field(&r.TimeSlot),
	)
}

// Filter selects appointments. Zero-valued fields are ignored.
type Filter struct {
	PatientID     *uuid.UUID
	DoctorID      *uuid.UUID
	Statuses      []string
	Date          *time.Time
	From          *time.Time
	To            *time.Time
	CreatedBefore *time.Time
	NewestFirst   bool
	Limit         int
	Offset        int
}

// DoctorStats summarizes a doctor's appointment outcomes.
type DoctorStats struct {
	DoctorID          uuid.UUID `json:"doctor_id"`
	TotalAppointments int       `json:"total_appointments"`
	Completed         int       `json:"completed"`
	Cancelled         int       `json:"cancelled"`
	NoShow            int       `json:"no_show"`
	Upcoming          int       `json:"upcoming"`
}

// SlotRequest is the payload for an optimal-slot search.
type SlotRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Duration int       `json:"duration"`
}

func (r SlotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DoctorID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.Date, validation.Required, validation.By(dateRule)),
		validation.Field(&r.Duration, validation.Required, validation.Min(1), validation.Max(maxDurationMinutes)),
	)
}

func clockRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := dateutil.ParseClock(s)
	return err
}

func dateRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := dateutil.ParseDate(s)
	return err
}

func notNilUUID(value interface{}) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

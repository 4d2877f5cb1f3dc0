package doctor

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/pkg/dateutil"
)

var weekdays = []interface{}{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Doctor maps to the doctors table.
type Doctor struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	FirstName      string            `db:"first_name" json:"first_name"`
	LastName       string            `db:"last_name" json:"last_name"`
	Specialization string            `db:"specialization" json:"specialization"`
	Department     string            `db:"department" json:"department,omitempty"`
	Email          string            `db:"email" json:"email,omitempty"`
	Phone          string            `db:"phone" json:"phone,omitempty"`
	LicenseNumber  string            `db:"license_number" json:"license_number,omitempty"`
	Active         bool              `db:"active" json:"active"`
	Availability   []DayAvailability `db:"availability" json:"availability"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// DayAvailability lists the consulting windows for one weekday.
type DayAvailability struct {
	Day       string       `json:"day"`
	TimeSlots []TimeWindow `json:"time_slots"`
}

// TimeWindow is a consulting window in local "HH:MM" clock time.
type TimeWindow struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MaxPatients int    `json:"max_patients,omitempty"`
}

func (w TimeWindow) Validate() error {
	err := validation.ValidateStruct(&w,
		validation.Field(&w.StartTime, validation.Required, validation.By(clockRule)),
		validation.Field(&w.EndTime, validation.Required, validation.By(clockRule)),
		validation.Field(&w.MaxPatients, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	start, end, _ := w.Minutes()
	if start >= end {
		return validation.Errors{"end_time": fmt.Errorf("must be after start_time")}
	}
	return nil
}

// Minutes returns the window bounds as minutes after midnight.
func (w TimeWindow) Minutes() (start, end int, err error) {
	if start, err = dateutil.ParseClock(w.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = dateutil.ParseClock(w.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (d DayAvailability) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Day, validation.Required, validation.In(weekdays...)),
		validation.Field(&d.TimeSlots),
	)
}

func (d Doctor) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.Specialization, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.Email, is.EmailFormat),
		validation.Field(&d.Availability, validation.By(uniqueDays)),
	)
}

// FullName joins first and last name.
func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// WindowsFor returns the windows declared for the weekday of date, in
// declared order. ok is false when the day has no availability entry.
func (d *Doctor) WindowsFor(date time.Time) (windows []TimeWindow, ok bool) {
	day := date.Weekday().String()
	for _, a := range d.Availability {
		if a.Day == day {
			return a.TimeSlots, true
		}
	}
	return nil, false
}

func clockRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := dateutil.ParseClock(s)
	return err
}

func uniqueDays(value interface{}) error {
	days, _ := value.([]DayAvailability)
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		if seen[d.Day] {
			return fmt.Errorf("day %s listed more than once", d.Day)
		}
		seen[d.Day] = true
	}
	return nil
}

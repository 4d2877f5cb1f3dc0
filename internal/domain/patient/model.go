package patient

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

const (
	HistoryActive   = "active"
	HistoryResolved = "resolved"
	HistoryChronic  = "chronic"
)

var bloodGroups = []interface{}{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

const daysPerYear = 365.25

// Patient maps to the patients table.
type Patient struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	FirstName          string         `db:"first_name" json:"first_name"`
	LastName           string         `db:"last_name" json:"last_name"`
	DateOfBirth        time.Time      `db:"date_of_birth" json:"date_of_birth"`
	Gender             string         `db:"gender" json:"gender"`
	BloodGroup         string         `db:"blood_group" json:"blood_group,omitempty"`
	Phone              string         `db:"phone" json:"phone,omitempty"`
	Email              string         `db:"email" json:"email,omitempty"`
	Address            string         `db:"address" json:"address,omitempty"`
	Allergies          []string       `db:"allergies" json:"allergies"`
	CurrentMedications []Medication   `db:"current_medications" json:"current_medications"`
	MedicalHistory     []HistoryEntry `db:"medical_history" json:"medical_history"`
	AssignedWardID     *uuid.UUID     `db:"assigned_ward_id" json:"assigned_ward_id,omitempty"`
	DeviceID           string         `db:"device_id" json:"device_id,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Medication is a drug the patient is currently taking.
type Medication struct {
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

// HistoryEntry is one diagnosed condition.
type HistoryEntry struct {
	Condition     string     `json:"condition"`
	DiagnosedDate *time.Time `json:"diagnosed_date,omitempty"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
}

// HistoryUpdate patches one history entry. Empty fields are kept.
type HistoryUpdate struct {
	Condition     string     `json:"condition"`
	DiagnosedDate *time.Time `json:"diagnosed_date"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes"`
}

// Apply returns h with the non-empty fields of u.
func (u HistoryUpdate) Apply(h HistoryEntry) HistoryEntry {
	if c := strings.TrimSpace(u.Condition); c != "" {
		h.Condition = c
	}
	if u.DiagnosedDate != nil {
		h.DiagnosedDate = u.DiagnosedDate
	}
	if u.Status != "" {
		h.Status = u.Status
	}
	if u.Notes != "" {
		h.Notes = u.Notes
	}
	return h
}

// History is the clinical background of a patient.
type History struct {
	MedicalHistory     []HistoryEntry `json:"medical_history"`
	CurrentMedications []Medication   `json:"current_medications"`
	Allergies          []string       `json:"allergies"`
}

func (m Medication) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
	)
}

func (h HistoryEntry) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Condition, validation.Required, validation.Length(1, 200)),
		validation.Field(&h.Status, validation.Required, validation.In(HistoryActive, HistoryResolved, HistoryChronic)),
		validation.Field(&h.Notes, validation.Length(0, 1000)),
	)
}

func (p Patient) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.DateOfBirth, validation.Required, validation.Max(time.Now()).Error("must not be in the future")),
		validation.Field(&p.Gender, validation.Required, validation.In(GenderMale, GenderFemale, GenderOther)),
		validation.Field(&p.BloodGroup, validation.In(bloodGroups...)),
		validation.Field(&p.Email, is.EmailFormat),
		validation.Field(&p.Phone, validation.Length(0, 30)),
		validation.Field(&p.CurrentMedications),
		validation.Field(&p.MedicalHistory),
	)
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age returns whole years elapsed since birth, counting a year as 365.25 days.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth.IsZero() || now.Before(p.DateOfBirth) {
		return 0
	}
	days := now.Sub(p.DateOfBirth).Hours() / 24
	return int(days / daysPerYear)
}

// ChronicConditions counts history entries with status chronic.
func (p *Patient) ChronicConditions() int {
	n := 0
	for _, h := range p.MedicalHistory {
		if h.Status == HistoryChronic {
			n++
		}
	}
	return n
}

// MedicationNames lists the names of current medications.
func (p *Patient) MedicationNames() []string {
	names := make([]string, 0, len(p.CurrentMedications))
	for _, m := range p.CurrentMedications {
		names = append(names, m.Name)
	}
	return names
}

func (p *Patient) normalize() {
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.CurrentMedications == nil {
		p.CurrentMedications = []Medication{}
	}
	if p.MedicalHistory == nil {
		p.MedicalHistory = []HistoryEntry{}
	}
}

package prescription

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeveritySevere   = "severe"
)

// Warning kinds, one per check.
const (
	KindInteraction  = "interaction"
	KindAllergy      = "allergy"
	KindDosage       = "dosage"
	KindAvailability = "availability"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	LabPending   = "pending"
	LabCompleted = "completed"
)

// Prescription maps to the prescriptions table. Medications, lab tests and
// warnings are stored as JSONB.
type Prescription struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Medications   []Item     `db:"medications" json:"medications"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis"`
	LabTests      []LabTest  `db:"lab_tests" json:"lab_tests"`
	Warnings      []Warning  `db:"warnings" json:"warnings"`
	Notes         string     `db:"notes" json:"notes,omitempty"`
	ValidUntil    *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Item is one prescribed medication.
type Item struct {
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	Frequency      string     `json:"frequency"`
	Duration       string     `json:"duration"`
	Instructions   string     `json:"instructions,omitempty"`
	InventoryID    *uuid.UUID `json:"inventory_id,omitempty"`
}

func (i Item) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.MedicationName, validation.Required, validation.Length(1, 200)),
		validation.Field(&i.Dosage, validation.Required),
		validation.Field(&i.Frequency, validation.Required),
		validation.Field(&i.Duration, validation.Required),
	)
}

type LabTest struct {
	TestName string `json:"test_name"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status"`
}

func (l LabTest) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.TestName, validation.Required),
		validation.Field(&l.Status, validation.In(LabPending, LabCompleted)),
	)
}

// Warning is an advisory finding. Warnings never block a write on their own.
type Warning struct {
	Kind                string   `json:"kind"`
	Severity            string   `json:"severity"`
	Description         string   `json:"description"`
	Effect              string   `json:"effect,omitempty"`
	AffectedMedications []string `json:"affected_medications,omitempty"`
	Action              string   `json:"action,omitempty"`
	Recommendation      string   `json:"recommendation,omitempty"`
	CurrentQuantity     *int     `json:"current_quantity,omitempty"`
}

// Report groups warnings by the check that produced them.
type Report struct {
	Interactions []Warning `json:"interactions"`
	Allergies    []Warning `json:"allergies"`
	Dosage       []Warning `json:"dosage"`
	Availability []Warning `json:"availability"`
}

func newReport() *Report {
	return &Report{
		Interactions: []Warning{},
		Allergies:    []Warning{},
		Dosage:       []Warning{},
		Availability: []Warning{},
	}
}

// Flatten lists every warning in check order.
func (r *Report) Flatten() []Warning {
	all := make([]Warning, 0, len(r.Interactions)+len(r.Allergies)+len(r.Dosage)+len(r.Availability))
	all = append(all, r.Interactions...)
	all = append(all, r.Allergies...)
	all = append(all, r.Dosage...)
	all = append(all, r.Availability...)
	return all
}

// HasSevere reports whether any warning is severe. Callers decide whether
// to block on it.
func (r *Report) HasSevere() bool {
	for _, w := range r.Flatten() {
		if w.Severity == SeveritySevere {
			return true
		}
	}
	return false
}

// CreateRequest is the payload for writing a prescription.
type CreateRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Medications   []Item     `json:"medications"`
	Diagnosis     string     `json:"diagnosis"`
	LabTests      []LabTest  `json:"lab_tests"`
	Notes         string     `json:"notes"`
	ValidUntil    string     `json:"valid_until"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.By(notNilUUID)),
		validation.Field(&r.DoctorID, validation.By(notNilUUID)),
		validation.Field(&r.Medications, validation.Required),
		validation.Field(&r.Diagnosis, validation.Required),
		validation.Field(&r.LabTests),
	)
}

// ValidateRequest runs the safety checks without persisting anything.
type ValidateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	Medications []Item    `json:"medications"`
}

func (r ValidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.By(notNilUUID)),
		validation.Field(&r.Medications, validation.Required, validation.By(namedItems), validation.Skip),
	)
}

type StatusUpdate struct {
	Status string `json:"status"`
}

func (s StatusUpdate) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Status, validation.Required, validation.In(StatusActive, StatusCompleted, StatusCancelled)),
	)
}

// Filter narrows prescription listings.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}

func medicationNames(items []Item) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.MedicationName
	}
	return names
}

// namedItems only requires medication names; dosage details are optional
// when checking a draft.
func namedItems(value interface{}) error {
	items, _ := value.([]Item)
	for _, it := range items {
		if it.MedicationName == "" {
			return validation.NewError("validation_required", "medication_name cannot be blank")
		}
	}
	return nil
}

func notNilUUID(value interface{}) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

func (p *Prescription) normalize() {
	if p.Medications == nil {
		p.Medications = []Item{}
	}
	if p.LabTests == nil {
		p.LabTests = []LabTest{}
	}
	if p.Warnings == nil {
		p.Warnings = []Warning{}
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
}

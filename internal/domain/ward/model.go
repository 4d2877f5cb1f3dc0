package ward

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
)

const (
	TypeGeneral   = "general"
	TypePrivate   = "private"
	TypeICU       = "ICU"
	TypePediatric = "pediatric"
	TypeMaternity = "maternity"
	TypeIsolation = "isolation"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderMixed  = "mixed"
)

const (
	StatusActive      = "active"
	StatusMaintenance = "maintenance"
	StatusClosed      = "closed"
)

// FacilityICU marks a ward equipped for patients on heavy medication regimes.
const FacilityICU = "ICU equipment"

var (
	// ErrNoCompatibleWard means no active ward with a free bed can take the patient.
	ErrNoCompatibleWard = apperr.NotFound("compatible ward", "")
	// ErrWardFull means the last free bed was claimed by a concurrent admission.
	ErrWardFull = apperr.Conflict("ward has no available beds")
)

var wardTypes = []interface{}{TypeGeneral, TypePrivate, TypeICU, TypePediatric, TypeMaternity, TypeIsolation}

// Ward maps to the wards table. Occupants live in ward_occupants.
type Ward struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	WardNumber       string     `db:"ward_number" json:"ward_number"`
	Type             string     `db:"ward_type" json:"ward_type"`
	Floor            int        `db:"floor" json:"floor"`
	Building         string     `db:"building" json:"building,omitempty"`
	Specialization   string     `db:"specialization" json:"specialization,omitempty"`
	TotalBeds        int        `db:"total_beds" json:"total_beds"`
	OccupiedBeds     int        `db:"occupied_beds" json:"occupied_beds"`
	AvailableBeds    int        `db:"available_beds" json:"available_beds"`
	GenderPreference string     `db:"gender_preference" json:"gender_preference"`
	Facilities       []string   `db:"facilities" json:"facilities"`
	Status           string     `db:"status" json:"status"`
	Occupants        []Occupant `db:"-" json:"occupants"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Occupant is a patient holding a bed in a ward.
type Occupant struct {
	PatientID             uuid.UUID  `json:"patient_id"`
	BedLabel              string     `json:"bed_label"`
	AdmissionDate         time.Time  `json:"admission_date"`
	ExpectedDischargeDate *time.Time `json:"expected_discharge_date,omitempty"`
}

func (w Ward) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.WardNumber, validation.Required, validation.Length(1, 32)),
		validation.Field(&w.Type, validation.Required, validation.In(wardTypes...)),
		validation.Field(&w.Floor, validation.Min(0)),
		validation.Field(&w.TotalBeds, validation.Required, validation.Min(1)),
		validation.Field(&w.GenderPreference, validation.In(GenderMale, GenderFemale, GenderMixed)),
		validation.Field(&w.Status, validation.In(StatusActive, StatusMaintenance, StatusClosed)),
	)
}

// Recount derives the bed counters from the occupant list. Every mutation
// of Occupants is followed by a Recount.
func (w *Ward) Recount() {
	w.OccupiedBeds = len(w.Occupants)
	w.AvailableBeds = w.TotalBeds - w.OccupiedBeds
}

// OccupancyRate is occupied beds over total beds, 0 for a ward without beds.
func (w *Ward) OccupancyRate() float64 {
	if w.TotalBeds <= 0 {
		return 0
	}
	return float64(w.OccupiedBeds) / float64(w.TotalBeds)
}

func (w *Ward) HasFacility(name string) bool {
	for _, f := range w.Facilities {
		if f == name {
			return true
		}
	}
	return false
}

// Occupant returns the bed held by patientID, if any.
func (w *Ward) Occupant(patientID uuid.UUID) (*Occupant, bool) {
	for i := range w.Occupants {
		if w.Occupants[i].PatientID == patientID {
			return &w.Occupants[i], true
		}
	}
	return nil, false
}

// NextBedLabel names the bed for an admission that brings the ward to
// occupied beds. B{occupied} is used when free, otherwise the lowest free B{n}.
func NextBedLabel(occupied int, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, l := range taken {
		used[l] = true
	}
	label := fmt.Sprintf("B%d", occupied)
	for n := 1; used[label]; n++ {
		label = fmt.Sprintf("B%d", n)
	}
	return label
}

func (w *Ward) normalize() {
	if w.Facilities == nil {
		w.Facilities = []string{}
	}
	if w.Occupants == nil {
		w.Occupants = []Occupant{}
	}
	if w.GenderPreference == "" {
		w.GenderPreference = GenderMixed
	}
	if w.Status == "" {
		w.Status = StatusActive
	}
}

// Filter narrows ward listings.
type Filter struct {
	Type   string
	Status string
	Floor  *int
}

// AssignRequest admits a named patient to a specific ward.
type AssignRequest struct {
	PatientID             uuid.UUID `json:"patient_id"`
	BedLabel              string    `json:"bed_label"`
	ExpectedDischargeDate string    `json:"expected_discharge_date"`
}

func (r AssignRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.By(notNilUUID)),
		validation.Field(&r.BedLabel, validation.Length(0, 16)),
	)
}

// AllocateRequest asks the engine to pick the best ward for a patient.
type AllocateRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

// DischargeRequest frees the bed held by a patient.
type DischargeRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

// Allocation is the outcome of admitting a patient.
type Allocation struct {
	Ward     *Ward  `json:"ward"`
	BedLabel string `json:"bed_label"`
	Score    int    `json:"score"`
}

// TransferSuggestion proposes moving an occupant to a better-scoring ward.
type TransferSuggestion struct {
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	FromWardID     uuid.UUID `json:"from_ward_id"`
	FromWard       string    `json:"current_ward"`
	ToWardID       uuid.UUID `json:"to_ward_id"`
	ToWard         string    `json:"suggested_ward"`
	CurrentScore   int       `json:"current_score"`
	SuggestedScore int       `json:"suggested_score"`
	Improvement    int       `json:"improvement_score"`
	Reasons        []string  `json:"reasons"`
}

func notNilUUID(value interface{}) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

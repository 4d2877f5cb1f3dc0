package vitals

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	TypeHeartRate       = "heartRate"
	TypeBloodPressure   = "bloodPressure"
	TypeTemperature     = "temperature"
	TypeOxygenLevel     = "oxygenLevel"
	TypeRespiratoryRate = "respiratoryRate"
)

const (
	// PatientAlertLimit caps the per-patient alert history.
	PatientAlertLimit = 50
	// ActiveAlertWindow is how far back the ward-wide alert feed looks.
	ActiveAlertWindow = 24 * time.Hour
	defaultTimeRange  = 24 * time.Hour
	// DeviceOnlineWindow is how recent a device's last reading must be for
	// it to count as connected.
	DeviceOnlineWindow = 5 * time.Minute
)

const (
	DeviceConnected    = "connected"
	DeviceDisconnected = "disconnected"
	DeviceNoData       = "no_data"
)

var types = []interface{}{TypeHeartRate, TypeBloodPressure, TypeTemperature, TypeOxygenLevel, TypeRespiratoryRate}

// Range is an inclusive normal band. Blood pressure bands apply to systolic.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) Validate() error {
	if r.Min > r.Max {
		return validation.NewError("validation_range_order", "min must not exceed max")
	}
	return nil
}

type defaults struct {
	Range Range
	Unit  string
}

var defaultsByType = map[string]defaults{
	TypeHeartRate:       {Range{60, 100}, "bpm"},
	TypeTemperature:     {Range{36.1, 37.2}, "°C"},
	TypeOxygenLevel:     {Range{95, 100}, "%"},
	TypeRespiratoryRate: {Range{12, 20}, "/min"},
	TypeBloodPressure:   {Range{90, 120}, "mmHg"},
}

// DefaultRange returns the normal band used when a reading carries none.
func DefaultRange(readingType string) (Range, bool) {
	d, ok := defaultsByType[readingType]
	return d.Range, ok
}

// Reading is one vital-sign measurement, pushed by a device or entered by staff.
type Reading struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DeviceID       string     `db:"device_id" json:"device_id"`
	Type           string     `db:"reading_type" json:"reading_type"`
	Value          float64    `db:"value" json:"value"`
	Systolic       *float64   `db:"systolic" json:"systolic,omitempty"`
	Diastolic      *float64   `db:"diastolic" json:"diastolic,omitempty"`
	Unit           string     `db:"unit" json:"unit"`
	Timestamp      time.Time  `db:"recorded_at" json:"timestamp"`
	NormalRange    Range      `db:"normal_range" json:"normal_range"`
	IsAbnormal     bool       `db:"is_abnormal" json:"is_abnormal"`
	Acknowledged   bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Measured is the value compared against the normal range: systolic for
// blood pressure, Value otherwise.
func (r *Reading) Measured() float64 {
	if r.Type == TypeBloodPressure && r.Systolic != nil {
		return *r.Systolic
	}
	return r.Value
}

// Evaluate fills a missing range and unit from the per-type defaults and
// sets IsAbnormal.
func (r *Reading) Evaluate() {
	d := defaultsByType[r.Type]
	if r.NormalRange == (Range{}) {
		r.NormalRange = d.Range
	}
	if r.Unit == "" {
		r.Unit = d.Unit
	}
	r.IsAbnormal = !r.NormalRange.Contains(r.Measured())
}

// CreateRequest is a manual reading entry.
type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	DeviceID    string    `json:"device_id"`
	Type        string    `json:"reading_type"`
	Value       float64   `json:"value"`
	Systolic    *float64  `json:"systolic"`
	Diastolic   *float64  `json:"diastolic"`
	Unit        string    `json:"unit"`
	NormalRange *Range    `json:"normal_range"`
	Timestamp   string    `json:"timestamp"`
	Notes       string    `json:"notes"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.By(notNilUUID)),
		validation.Field(&r.DeviceID, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Type, validation.Required, validation.In(types...)),
		validation.Field(&r.Systolic, validation.When(r.Type == TypeBloodPressure, validation.Required)),
		validation.Field(&r.Diastolic, validation.When(r.Type == TypeBloodPressure, validation.Required)),
		validation.Field(&r.Timestamp, validation.Date(time.RFC3339)),
		validation.Field(&r.NormalRange),
	)
}

// DeviceReading is the payload a bedside device pushes. The patient is
// resolved from the device binding.
type DeviceReading struct {
	DeviceID  string   `json:"device_id"`
	Type      string   `json:"reading_type"`
	Value     float64  `json:"value"`
	Systolic  *float64 `json:"systolic"`
	Diastolic *float64 `json:"diastolic"`
	Unit      string   `json:"unit"`
	Timestamp string   `json:"timestamp"`
}

// AckRequest acknowledges an alert.
type AckRequest struct {
	Notes string `json:"notes"`
}

// Filter narrows reading queries.
type Filter struct {
	PatientID *uuid.UUID
	Type      string
	Since     *time.Time
	Abnormal  bool
	Limit     int
}

// Device is a bedside monitor known from a patient binding or the readings
// it has pushed.
type Device struct {
	DeviceID      string     `json:"device_id"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	LastReadingAt *time.Time `json:"last_reading_at,omitempty"`
	ReadingCount  int        `json:"reading_count"`
	Status        string     `json:"status"`
}

// SetStatus derives Status from the last reading time.
func (d *Device) SetStatus(now time.Time) {
	switch {
	case d.LastReadingAt == nil:
		d.Status = DeviceNoData
	case now.Sub(*d.LastReadingAt) <= DeviceOnlineWindow:
		d.Status = DeviceConnected
	default:
		d.Status = DeviceDisconnected
	}
}

// ParseTimeRange maps the query shorthand to a lookback window. Unknown or
// empty values fall back to 24h.
func ParseTimeRange(s string) time.Duration {
	switch s {
	case "1h":
		return time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	default:
		return defaultTimeRange
	}
}

func notNilUUID(value interface{}) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

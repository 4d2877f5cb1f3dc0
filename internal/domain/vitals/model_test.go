package vitals

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func TestReading_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		reading  Reading
		abnormal bool
		unit     string
	}{
		{"heart rate normal", Reading{Type: TypeHeartRate, Value: 72}, false, "bpm"},
		{"heart rate high", Reading{Type: TypeHeartRate, Value: 130}, true, "bpm"},
		{"heart rate at upper bound", Reading{Type: TypeHeartRate, Value: 100}, false, "bpm"},
		{"temperature fever", Reading{Type: TypeTemperature, Value: 38.4}, true, "°C"},
		{"oxygen low", Reading{Type: TypeOxygenLevel, Value: 91}, true, "%"},
		{"respiratory normal", Reading{Type: TypeRespiratoryRate, Value: 16}, false, "/min"},
		{"blood pressure systolic high", Reading{Type: TypeBloodPressure, Value: 80, Systolic: f64(145), Diastolic: f64(80)}, true, "mmHg"},
		{"blood pressure uses systolic", Reading{Type: TypeBloodPressure, Value: 60, Systolic: f64(115), Diastolic: f64(60)}, false, "mmHg"},
		{"explicit range", Reading{Type: TypeHeartRate, Value: 110, NormalRange: Range{50, 120}}, false, "bpm"},
		{"explicit unit kept", Reading{Type: TypeTemperature, Value: 98.6, Unit: "°F", NormalRange: Range{97, 99}}, false, "°F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.reading
			r.Evaluate()
			assert.Equal(t, tt.abnormal, r.IsAbnormal)
			assert.Equal(t, tt.unit, r.Unit)
			assert.NotEqual(t, Range{}, r.NormalRange)
		})
	}
}

func TestDefaultRange(t *testing.T) {
	r, ok := DefaultRange(TypeOxygenLevel)
	assert.True(t, ok)
	assert.Equal(t, Range{95, 100}, r)

	_, ok = DefaultRange("glucose")
	assert.False(t, ok)
}

func TestParseTimeRange(t *testing.T) {
	assert.Equal(t, time.Hour, ParseTimeRange("1h"))
	assert.Equal(t, 24*time.Hour, ParseTimeRange("24h"))
	assert.Equal(t, 7*24*time.Hour, ParseTimeRange("7d"))
	assert.Equal(t, 30*24*time.Hour, ParseTimeRange("30d"))
	assert.Equal(t, 24*time.Hour, ParseTimeRange(""))
	assert.Equal(t, 24*time.Hour, ParseTimeRange("1y"))
}

func TestCreateRequest_Validate(t *testing.T) {
	base := CreateRequest{PatientID: uuid.New(), DeviceID: "dev-1", Type: TypeHeartRate, Value: 80}
	assert.NoError(t, base.Validate())

	bp := base
	bp.Type = TypeBloodPressure
	assert.Error(t, bp.Validate(), "blood pressure needs systolic and diastolic")
	bp.Systolic, bp.Diastolic = f64(120), f64(80)
	assert.NoError(t, bp.Validate())

	bad := base
	bad.Type = "glucose"
	assert.Error(t, bad.Validate())

	inverted := base
	inverted.NormalRange = &Range{Min: 100, Max: 60}
	assert.Error(t, inverted.Validate())

	ts := base
	ts.Timestamp = "yesterday"
	assert.Error(t, ts.Validate())
}

func TestDevice_SetStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}
	tests := []struct {
		name string
		last *time.Time
		want string
	}{
		{"never reported", nil, DeviceNoData},
		{"recent", at(time.Minute), DeviceConnected},
		{"window edge", at(DeviceOnlineWindow), DeviceConnected},
		{"stale", at(DeviceOnlineWindow + time.Second), DeviceDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Device{DeviceID: "m-1", LastReadingAt: tt.last}
			d.SetStatus(now)
			assert.Equal(t, tt.want, d.Status)
		})
	}
}

package vitals

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
	"github.com/kanishkgandecha/medilink/internal/platform/telemetry"
)

const defaultAckNote = "Alert acknowledged"

// Notifier delivers abnormal-reading alerts.
type Notifier interface {
	Notify(ctx context.Context, kind string, data map[string]string, payload interface{}) error
}

type Service struct {
	repo     Repository
	patients PatientReader
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientReader, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		notifier: notifier,
		logger:   logger.With().Str("component", "vitals").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordReading stores a manual reading and raises an alert when it falls
// outside its normal range.
func (s *Service) RecordReading(ctx context.Context, req CreateRequest) (*Reading, error) {
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if err := req.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}
	ts, err := s.timestamp(req.Timestamp)
	if err != nil {
		return nil, err
	}
	r := &Reading{
		PatientID: req.PatientID,
		DeviceID:  req.DeviceID,
		Type:      req.Type,
		Value:     req.Value,
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,
		Unit:      req.Unit,
		Timestamp: ts,
		Notes:     req.Notes,
	}
	if req.NormalRange != nil {
		r.NormalRange = *req.NormalRange
	}
	return s.store(ctx, r)
}

// IngestDevice stores a reading pushed by a device bound to a patient.
func (s *Service) IngestDevice(ctx context.Context, req DeviceReading) (*Reading, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, apperr.Invalidf("device_id: cannot be blank")
	}
	p, err := s.patients.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.RecordReading(ctx, CreateRequest{
		PatientID: p.ID,
		DeviceID:  deviceID,
		Type:      req.Type,
		Value:     req.Value,
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,
		Unit:      req.Unit,
		Timestamp: req.Timestamp,
	})
}

func (s *Service) store(ctx context.Context, r *Reading) (_ *Reading, err error) {
	ctx, span := telemetry.StartSpan(ctx, "vitals.RecordReading",
		attribute.String("reading.type", r.Type),
		attribute.String("patient.id", r.PatientID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if r.Type == TypeBloodPressure && r.Value == 0 && r.Systolic != nil {
		r.Value = *r.Systolic
	}
	r.Evaluate()
	if err = s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	if r.IsAbnormal {
		s.alert(ctx, r)
	}
	return r, nil
}

func (s *Service) alert(ctx context.Context, r *Reading) {
	metrics.RecordVitalAlert(r.Type)
	s.logger.Warn().
		Str("reading_id", r.ID.String()).
		Str("patient_id", r.PatientID.String()).
		Str("type", r.Type).
		Float64("value", r.Measured()).
		Msg("abnormal vital reading")
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"type":       r.Type,
		"patient_id": r.PatientID.String(),
		"value":      formatFloat(r.Measured()),
		"unit":       r.Unit,
		"min":        formatFloat(r.NormalRange.Min),
		"max":        formatFloat(r.NormalRange.Max),
		"device_id":  r.DeviceID,
		"timestamp":  r.Timestamp.Format(time.RFC3339),
	}
	if err := s.notifier.Notify(ctx, notification.KindVitalAlert, data, r); err != nil {
		s.logger.Warn().Err(err).Str("reading_id", r.ID.String()).Msg("vital alert notification failed")
	}
}

// ListReadings returns a patient's readings within the time range, newest first.
func (s *Service) ListReadings(ctx context.Context, patientID uuid.UUID, readingType, timeRange string) ([]*Reading, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	since := s.now().Add(-ParseTimeRange(timeRange))
	return s.repo.ListByPatient(ctx, patientID, readingType, since)
}

// LatestReading returns the most recent reading, optionally of one type.
func (s *Service) LatestReading(ctx context.Context, patientID uuid.UUID, readingType string) (*Reading, error) {
	return s.repo.Latest(ctx, patientID, readingType)
}

// PatientAlerts returns the most recent abnormal readings of a patient.
func (s *Service) PatientAlerts(ctx context.Context, patientID uuid.UUID) ([]*Reading, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListAbnormal(ctx, Filter{PatientID: &patientID, Limit: PatientAlertLimit})
}

// ActiveAlerts returns every abnormal reading of the last 24 hours.
func (s *Service) ActiveAlerts(ctx context.Context) ([]*Reading, error) {
	since := s.now().Add(-ActiveAlertWindow)
	return s.repo.ListAbnormal(ctx, Filter{Since: &since})
}

// Acknowledge marks an abnormal reading as handled.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, req AckRequest) (*Reading, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsAbnormal {
		return nil, apperr.NotFound("alert", id.String())
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = defaultAckNote
	}
	return s.repo.Acknowledge(ctx, id, notes, s.now())
}

// ListDevices returns known devices with their connection status.
func (s *Service) ListDevices(ctx context.Context) ([]*Device, error) {
	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, d := range devices {
		d.SetStatus(now)
	}
	return devices, nil
}

// DeviceStatus reports whether a device is still pushing readings.
func (s *Service) DeviceStatus(ctx context.Context, deviceID string) (*Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperr.Invalidf("device_id: cannot be blank")
	}
	d, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	d.SetStatus(s.now())
	return d, nil
}

func (s *Service) timestamp(v string) (time.Time, error) {
	if v == "" {
		return s.now(), nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Invalidf("timestamp: %v", err)
	}
	return ts.UTC(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

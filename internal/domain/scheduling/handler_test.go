package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func TestHandler_FindOptimalSlot(t *testing.T) {
	h, f, e := newTestHandler()

	body := `{"doctor_id":"` + f.doctor.ID.String() + `","date":"2026-03-09","duration":30}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/optimal-slot", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FindOptimalSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool     `json:"success"`
		Data    TimeSlot `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Data.StartTime != "09:00" || resp.Data.EndTime != "09:30" {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
}

func TestHandler_FindOptimalSlot_NoAvailability(t *testing.T) {
	h, f, e := newTestHandler()

	body := `{"doctor_id":"` + f.doctor.ID.String() + `","date":"2026-03-10","duration":30}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FindOptimalSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Errorf("expected success=false, got %v", resp["success"])
	}
}

func TestHandler_FindOptimalSlot_BadRequest(t *testing.T) {
	h, f, e := newTestHandler()

	body := `{"doctor_id":"` + f.doctor.ID.String() + `","date":"2026-03-09","duration":-5}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.FindOptimalSlot(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, f, e := newTestHandler()

	body := `{"patient_id":"` + f.patient.ID.String() + `","doctor_id":"` + f.doctor.ID.String() +
		`","appointment_date":"2026-03-09","type":"emergency","reason":"fall"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Priority != 5 || a.PredictedDuration != 45 {
		t.Errorf("unexpected scoring: priority=%d duration=%d", a.Priority, a.PredictedDuration)
	}
}

func TestHandler_DoctorSchedule(t *testing.T) {
	h, f, e := newTestHandler()
	f.book("09:00", "09:30")

	req := httptest.NewRequest(http.MethodGet, "/?date=2026-03-09", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctor.ID.String())

	if err := h.DoctorSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["count"].(float64) != 1 {
		t.Errorf("expected 1 appointment, got %v", resp["count"])
	}
}

func TestHandler_DoctorSchedule_BadDate(t *testing.T) {
	h, f, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/?date=tomorrow", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctor.ID.String())

	err := h.DoctorSchedule(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_NoShowRisk(t *testing.T) {
	h, f, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/?date=2026-03-09", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(f.patient.ID.String())

	if err := h.NoShowRisk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["probability"].(float64) != 0.15 {
		t.Errorf("expected 0.15, got %v", resp["probability"])
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetAppointment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_CancelAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book("09:00", "09:30")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"travel"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusCancelled || got.CancelReason != "travel" {
		t.Errorf("unexpected appointment: %+v", got)
	}
}

func TestHandler_DoctorStatistics(t *testing.T) {
	h, f, e := newTestHandler()
	f.book("09:00", "09:30").Status = StatusCompleted
	f.book("09:30", "10:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctor.ID.String())

	if err := h.DoctorStatistics(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Success bool        `json:"success"`
		Stats   DoctorStats `json:"stats"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Stats.TotalAppointments != 2 || resp.Stats.Completed != 1 || resp.Stats.Upcoming != 1 {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	err := h.DoctorStatistics(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

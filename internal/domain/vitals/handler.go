package vitals

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff, auth.RolePatient))
	readGroup.GET("/patients/:id/vitals", h.ListReadings)
	readGroup.GET("/patients/:id/vitals/latest", h.LatestReading)
	readGroup.GET("/patients/:id/alerts", h.PatientAlerts)

	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	clinical.POST("/vitals", h.RecordReading)
	clinical.POST("/vitals/device", h.IngestDevice)
	clinical.GET("/alerts", h.ActiveAlerts)
	clinical.POST("/alerts/:id/ack", h.Acknowledge)
	clinical.GET("/devices", h.ListDevices)
	clinical.GET("/devices/:id/status", h.DeviceStatus)
}

func (h *Handler) RecordReading(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.RecordReading(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) IngestDevice(c echo.Context) error {
	var req DeviceReading
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.IngestDevice(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReadings(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListReadings(c.Request().Context(), id, c.QueryParam("type"), c.QueryParam("timeRange"))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, listResponse(items))
}

func (h *Handler) LatestReading(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.LatestReading(c.Request().Context(), id, c.QueryParam("type"))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": r})
}

func (h *Handler) PatientAlerts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.PatientAlerts(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, listResponse(items))
}

func (h *Handler) ActiveAlerts(c echo.Context) error {
	items, err := h.svc.ActiveAlerts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listResponse(items))
}

func (h *Handler) Acknowledge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req AckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Acknowledge(c.Request().Context(), id, req)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": defaultAckNote, "data": r})
}

func (h *Handler) ListDevices(c echo.Context) error {
	devices, err := h.svc.ListDevices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if devices == nil {
		devices = []*Device{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": devices, "count": len(devices)})
}

func (h *Handler) DeviceStatus(c echo.Context) error {
	d, err := h.svc.DeviceStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": d})
}

func listResponse(items []*Reading) map[string]interface{} {
	if items == nil {
		items = []*Reading{}
	}
	return map[string]interface{}{"success": true, "data": items, "count": len(items)}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// Audit emits one structured "patient_data_access" log line for every
// request under /api/v1 naming who touched which resource and, when the
// path or query identifies one, which patient.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			rid, _ := c.Get("request_id").(string)
			ctx := req.Context()

			logger.Info().
				Str("type", "audit").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Str("resource", resourceFromPath(path)).
				Str("patient_id", patientIDFromRequest(c)).
				Str("action", actionFromMethod(req.Method)).
				Str("method", req.Method).
				Str("path", path).
				Str("remote_ip", c.RealIP()).
				Int("status", status).
				Msg("patient_data_access")

			return err
		}
	}
}

func actionFromMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath maps /api/v1/wards/123 to "wards".
func resourceFromPath(path string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, apiPrefix), "/")
	if first == "" {
		return "unknown"
	}
	return first
}

func patientIDFromRequest(c echo.Context) string {
	path := c.Request().URL.Path
	if rest, ok := strings.CutPrefix(path, apiPrefix+"patients/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	if id := c.QueryParam("patient_id"); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return ""
}

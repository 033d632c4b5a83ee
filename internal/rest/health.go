package rest

import (
	"context"
	"net/http"
	"time"

	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

// Check reports whether one backing service is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	version string
	checks  map[string]Check
}

func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := requestContext(c, 3*time.Second)
	defer cancel()

	status := HealthStatus{Status: "ok", Version: h.version, Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status.Checks[name] = err.Error()
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[name] = "ok"
	}

	body := jsonres.Success("", status)
	body.Success = code == http.StatusOK
	return c.JSON(code, body)
}

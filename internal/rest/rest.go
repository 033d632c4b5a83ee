package rest

import (
	"context"
	"strconv"
	"time"

	"garageBooking/business/auth"
	"garageBooking/domain"
	"garageBooking/internal/middleware"

	"github.com/labstack/echo/v4"
)

const defaultTimeout = 10 * time.Second

type Page struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), timeout)
}

func currentActor(c echo.Context) (domain.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	return actor, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return domain.NewValidationError("body", "invalid request body")
	}
	return nil
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return uint(id), nil
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c echo.Context, name string) (float64, bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, domain.NewValidationError(name, "must be a number")
	}
	return v, true, nil
}

func clientInfo(c echo.Context) auth.ClientInfo {
	return auth.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func pagination(c echo.Context) (int, int) {
	page, limit := queryInt(c, "page", 1), queryInt(c, "limit", 20)
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"garageBooking/business/garage"
	"garageBooking/domain"
	"garageBooking/pkg/logger"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type problem struct {
	status  int
	code    string
	message string
	details any
}

func classify(err error) problem {
	var (
		he      *echo.HTTPError
		ve      *domain.ValidationError
		partial *garage.PartialFailureError
	)

	switch {
	case errors.As(err, &he):
		return problem{status: he.Code, code: codeFor(he.Code), message: fmt.Sprint(he.Message)}
	case errors.As(err, &partial):
		return problem{
			status:  http.StatusInternalServerError,
			code:    "PARTIAL_FAILURE",
			message: partial.Completed + ", but " + partial.Failed + " failed",
			details: map[string]string{"completed": partial.Completed, "failed": partial.Failed},
		}
	case errors.As(err, &ve):
		return problem{status: http.StatusBadRequest, code: "VALIDATION_ERROR", message: ve.Error(), details: ve.Fields}
	case errors.Is(err, domain.ErrValidation):
		return problem{status: http.StatusBadRequest, code: "VALIDATION_ERROR", message: err.Error()}
	case errors.Is(err, domain.ErrAccountLocked):
		return problem{status: http.StatusLocked, code: "ACCOUNT_LOCKED", message: "Account temporarily locked"}
	case errors.Is(err, domain.ErrUnauthorized):
		return problem{status: http.StatusUnauthorized, code: "UNAUTHORIZED", message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return problem{status: http.StatusForbidden, code: "FORBIDDEN", message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return problem{status: http.StatusNotFound, code: "NOT_FOUND", message: err.Error()}
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		return problem{status: http.StatusConflict, code: "PAYMENT_NOT_COMPLETED", message: err.Error()}
	case errors.Is(err, domain.ErrStaleVersion):
		return problem{status: http.StatusConflict, code: "STALE_VERSION", message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		return problem{status: http.StatusConflict, code: "INVALID_TRANSITION", message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return problem{status: http.StatusConflict, code: "CONFLICT", message: err.Error()}
	case errors.Is(err, domain.ErrGateway):
		return problem{status: http.StatusInternalServerError, code: "PAYMENT_GATEWAY_ERROR", message: "Payment provider error"}
	}

	return problem{status: http.StatusInternalServerError, code: "INTERNAL_ERROR", message: "Internal server error"}
}

func codeFor(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// ErrorHandler renders every error returned by a handler or the router in
// the response envelope. With debug set the raw error is attached, and
// payment provider failures carry the provider's error as details.
func ErrorHandler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := classify(err)
		if p.status >= http.StatusInternalServerError {
			logger.Error("request failed", "error", err, "method", c.Request().Method, "route", c.Path(), "status", p.status)
		} else {
			logger.Debug("request rejected", "error", err, "method", c.Request().Method, "route", c.Path(), "status", p.status)
		}

		if debug && errors.Is(err, domain.ErrGateway) {
			p.details = err.Error()
		}

		body := jsonres.Error(p.code, p.message, p.details)
		if debug {
			body = body.WithDebug(map[string]string{"error": err.Error()})
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(p.status)
		} else {
			err = c.JSON(p.status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

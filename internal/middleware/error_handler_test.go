//go:build !integration

package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"garageBooking/business/garage"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", domain.NewValidationError("email", "invalid"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("%w: bad link", domain.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unauthorized", fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not found", fmt.Errorf("%w: garage 4", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"stale", domain.ErrStaleVersion, http.StatusConflict, "STALE_VERSION"},
		{"transition", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"locked", domain.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED"},
		{"gateway", fmt.Errorf("%w: timeout", domain.ErrGateway), http.StatusInternalServerError, "PAYMENT_GATEWAY_ERROR"},
		{"partial", &garage.PartialFailureError{Completed: "garage archived", Failed: "booking cascade", Err: errors.New("db")}, http.StatusInternalServerError, "PARTIAL_FAILURE"},
		{"echo", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := classify(tt.err)
			if p.status != tt.want || p.code != tt.code {
				t.Fatalf("classify = %d %s, want %d %s", p.status, p.code, tt.want, tt.code)
			}
		})
	}
}

func TestErrorHandler_DebugPayload(t *testing.T) {
	for _, debug := range []bool{true, false} {
		e := echo.New()
		e.HTTPErrorHandler = ErrorHandler(debug)
		e.GET("/fail", func(c echo.Context) error { return errors.New("database exploded") })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		var body jsonres.Body
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Success || body.Error == nil || body.Error.Message != "Internal server error" {
			t.Fatalf("body = %+v", body)
		}
		if (body.Debug != nil) != debug {
			t.Fatalf("debug=%v but payload = %v", debug, body.Debug)
		}
	}
}

func TestErrorHandler_GatewayDetails(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		details any
	}{
		{name: "development", debug: true, details: "payment provider error: chapa: 401 invalid secret key"},
		{name: "production", debug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = ErrorHandler(tt.debug)
			e.POST("/pay", func(c echo.Context) error {
				return fmt.Errorf("%w: chapa: 401 invalid secret key", domain.ErrGateway)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pay", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rec.Code)
			}
			var body jsonres.Body
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error == nil || body.Error.Code != "PAYMENT_GATEWAY_ERROR" || body.Error.Message != "Payment provider error" {
				t.Fatalf("body = %+v", body)
			}
			if body.Error.Details != tt.details {
				t.Fatalf("details = %v, want %v", body.Error.Details, tt.details)
			}
		})
	}
}

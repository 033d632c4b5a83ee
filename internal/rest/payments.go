package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/logger"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type (
	PaymentsHandler struct {
		paymentsService PaymentsService
		timeout         time.Duration
	}

	PaymentsService interface {
		Initiate(ctx context.Context, accountID uint, plan string) (domain.CheckoutSession, error)
		Reconcile(ctx context.Context, payload map[string]any, rawBody []byte, signature string) domain.ReconcileResult
		Verify(ctx context.Context, accountID uint, txRef string) (domain.PaymentSnapshot, error)
		Status(ctx context.Context, accountID uint) (domain.PaymentSnapshot, error)
	}

	InitiatePaymentRequest struct {
		Plan string `json:"plan"`
	}
)

const (
	SignatureHeader    = "x-chapa-signature"
	maxWebhookBodySize = 1 << 20
)

func NewPaymentsHandler(paymentsService PaymentsService) *PaymentsHandler {
	return &PaymentsHandler{
		paymentsService: paymentsService,
		timeout:         20 * time.Second,
	}
}

func (h *PaymentsHandler) Initiate(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req InitiatePaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	session, err := h.paymentsService.Initiate(ctx, actor.ID, strings.ToLower(strings.TrimSpace(req.Plan)))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Checkout created", session))
}

func (h *PaymentsHandler) Verify(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	txRef := strings.TrimSpace(c.Param("tx_ref"))
	if txRef == "" {
		return domain.NewValidationError("tx_ref", "transaction reference is required")
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	snapshot, err := h.paymentsService.Verify(ctx, actor.ID, txRef)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", snapshot))
}

func (h *PaymentsHandler) Status(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	snapshot, err := h.paymentsService.Status(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", snapshot))
}

// Callback is called by the provider. It always answers 200 so the provider
// does not retry; the outcome in the body and the audit log tell what happened.
func (h *PaymentsHandler) Callback(c echo.Context) error {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodySize))
	if err != nil {
		logger.Warn("failed to read payment webhook body", "error", err)
	}

	var payload map[string]any
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			logger.Warn("payment webhook body is not a JSON object", "error", err)
			payload = nil
		}
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result := h.paymentsService.Reconcile(ctx, payload, rawBody, c.Request().Header.Get(SignatureHeader))

	return c.JSON(http.StatusOK, jsonres.Success(string(result.Outcome), result))
}

package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"garageBooking/business/admin"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type (
	AdminService interface {
		ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]domain.GarageProfile, int64, error)
		GetApplication(ctx context.Context, accountID uint) (admin.ApplicationView, error)
		Decide(ctx context.Context, accountID uint, actor domain.Actor, action admin.Action, in admin.DecisionInput) (*domain.GarageProfile, error)
		VerifyDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error)
		RejectDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error)
		Stats(ctx context.Context) (admin.Stats, error)
	}

	WebhookAuditService interface {
		UnresolvedWebhooks(ctx context.Context, limit int64) ([]domain.WebhookEvent, error)
		ResolveWebhook(ctx context.Context, id string) error
	}

	AccountAdminService interface {
		ArchiveAccount(ctx context.Context, adminID, id uint) (domain.Account, error)
		RestoreAccount(ctx context.Context, id uint) (domain.Account, error)
	}

	AdminHandler struct {
		adminService    AdminService
		webhookService  WebhookAuditService
		accountsService AccountAdminService
		timeout         time.Duration
	}

	DocumentDecisionRequest struct {
		Notes string `json:"notes"`
	}
)

func NewAdminHandler(adminService AdminService, webhookService WebhookAuditService, accountsService AccountAdminService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		webhookService:  webhookService,
		accountsService: accountsService,
		timeout:         defaultTimeout,
	}
}

func (h *AdminHandler) ListApplications(c echo.Context) error {
	page, limit := pagination(c)
	filter := domain.ApplicationFilter{
		Verification: domain.VerificationStatus(c.QueryParam("verification")),
		Payment:      domain.PaymentStatus(c.QueryParam("payment")),
		Search:       c.QueryParam("search"),
		Page:         page,
		Limit:        limit,
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	profiles, total, err := h.adminService.ListApplications(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", Page{Items: profiles, Total: total, Page: page, Limit: limit}))
}

func (h *AdminHandler) GetApplication(c echo.Context) error {
	accountID, err := pathID(c, "accountId")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	view, err := h.adminService.GetApplication(ctx, accountID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", view))
}

// Decide returns the handler for one admin decision on an application.
func (h *AdminHandler) Decide(action admin.Action) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := currentActor(c)
		if err != nil {
			return err
		}
		accountID, err := pathID(c, "accountId")
		if err != nil {
			return err
		}

		var req admin.DecisionInput
		if c.Request().ContentLength != 0 {
			if err := bind(c, &req); err != nil {
				return err
			}
		}

		ctx, cancel := requestContext(c, h.timeout)
		defer cancel()

		profile, err := h.adminService.Decide(ctx, accountID, actor, action, req)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, jsonres.Success("Application updated", profile))
	}
}

func (h *AdminHandler) VerifyDocument(c echo.Context) error {
	return h.documentDecision(c, "Document verified", h.adminService.VerifyDocument)
}

func (h *AdminHandler) RejectDocument(c echo.Context) error {
	return h.documentDecision(c, "Document rejected", h.adminService.RejectDocument)
}

func (h *AdminHandler) documentDecision(c echo.Context, message string, decide func(context.Context, uint, domain.Actor, string, string) (*domain.GarageProfile, error)) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	accountID, err := pathID(c, "accountId")
	if err != nil {
		return err
	}

	var req DocumentDecisionRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	profile, err := decide(ctx, accountID, actor, c.Param("docId"), req.Notes)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success(message, profile))
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	stats, err := h.adminService.Stats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", stats))
}

func (h *AdminHandler) UnresolvedWebhooks(c echo.Context) error {
	limit, err := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	events, err := h.webhookService.UnresolvedWebhooks(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", events))
}

func (h *AdminHandler) ResolveWebhook(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.webhookService.ResolveWebhook(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Webhook event resolved", nil))
}

func (h *AdminHandler) ArchiveAccount(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	account, err := h.accountsService.ArchiveAccount(ctx, actor.ID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Account archived", account))
}

func (h *AdminHandler) RestoreAccount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	account, err := h.accountsService.RestoreAccount(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Account restored", account))
}

package rest

import (
	"context"
	"net/http"
	"time"

	"garageBooking/business/review"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type ReviewService interface {
	Create(ctx context.Context, actor domain.Actor, in review.CreateInput) (review.Result, error)
	ListByGarage(ctx context.Context, garageID uint, page, limit int) ([]domain.Review, int64, error)
	Get(ctx context.Context, id uint) (domain.Review, error)
	Update(ctx context.Context, actor domain.Actor, id uint, in review.UpdateInput) (review.Result, error)
	Delete(ctx context.Context, actor domain.Actor, id uint) (review.Result, error)
}

type ReviewHandler struct {
	reviewService ReviewService
	timeout       time.Duration
}

func NewReviewHandler(reviewService ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		timeout:       defaultTimeout,
	}
}

func (h *ReviewHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req review.CreateInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.reviewService.Create(ctx, actor, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Review created", result))
}

func (h *ReviewHandler) ListByGarage(c echo.Context) error {
	garageID, err := pathID(c, "garageId")
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	reviews, total, err := h.reviewService.ListByGarage(ctx, garageID, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", Page{Items: reviews, Total: total, Page: page, Limit: limit}))
}

func (h *ReviewHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	r, err := h.reviewService.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", r))
}

func (h *ReviewHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req review.UpdateInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.reviewService.Update(ctx, actor, id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Review updated", result))
}

func (h *ReviewHandler) Delete(c echo.Context) error {
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

	result, err := h.reviewService.Delete(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Review deleted", result))
}

package rest

import (
	"context"
	"net/http"
	"time"

	"garageBooking/business/booking"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type BookingService interface {
	Create(ctx context.Context, actor domain.Actor, in booking.CreateInput) (domain.Booking, error)
	MyBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error)
	GarageBookings(ctx context.Context, actor domain.Actor, garageID uint) ([]domain.Booking, error)
	Get(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id uint, in booking.StatusInput) (domain.Booking, error)
	SoftDelete(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error)
	Restore(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error)
	HardDelete(ctx context.Context, actor domain.Actor, id uint) error
}

type BookingHandler struct {
	bookingService BookingService
	timeout        time.Duration
}

func NewBookingHandler(bookingService BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		timeout:        defaultTimeout,
	}
}

func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req booking.CreateInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	b, err := h.bookingService.Create(ctx, actor, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Booking created", b))
}

func (h *BookingHandler) MyBookings(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	bookings, err := h.bookingService.MyBookings(ctx, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", bookings))
}

func (h *BookingHandler) GarageBookings(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	garageID, err := pathID(c, "garageId")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	bookings, err := h.bookingService.GarageBookings(ctx, actor, garageID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", bookings))
}

func (h *BookingHandler) Get(c echo.Context) error {
	return h.withBooking(c, "", http.StatusOK, func(ctx context.Context, actor domain.Actor, id uint) (any, error) {
		return h.bookingService.Get(ctx, actor, id)
	})
}

func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	var req booking.StatusInput
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.withBooking(c, "Booking updated", http.StatusOK, func(ctx context.Context, actor domain.Actor, id uint) (any, error) {
		return h.bookingService.UpdateStatus(ctx, actor, id, req)
	})
}

func (h *BookingHandler) SoftDelete(c echo.Context) error {
	return h.withBooking(c, "Booking archived", http.StatusOK, func(ctx context.Context, actor domain.Actor, id uint) (any, error) {
		return h.bookingService.SoftDelete(ctx, actor, id)
	})
}

func (h *BookingHandler) Restore(c echo.Context) error {
	return h.withBooking(c, "Booking restored", http.StatusOK, func(ctx context.Context, actor domain.Actor, id uint) (any, error) {
		return h.bookingService.Restore(ctx, actor, id)
	})
}

func (h *BookingHandler) HardDelete(c echo.Context) error {
	return h.withBooking(c, "Booking permanently deleted", http.StatusOK, func(ctx context.Context, actor domain.Actor, id uint) (any, error) {
		return nil, h.bookingService.HardDelete(ctx, actor, id)
	})
}

func (h *BookingHandler) withBooking(c echo.Context, message string, status int, call func(context.Context, domain.Actor, uint) (any, error)) error {
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

	data, err := call(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(status, jsonres.Success(message, data))
}

package rest

import (
	"context"
	"net/http"
	"time"

	"garageBooking/business/garage"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type GarageService interface {
	Create(ctx context.Context, actor domain.Actor, in garage.GarageInput) (domain.Garage, error)
	List(ctx context.Context, filter domain.GarageFilter) ([]domain.Garage, int64, error)
	ListMine(ctx context.Context, ownerID uint) ([]domain.Garage, error)
	Get(ctx context.Context, actor domain.Actor, id uint) (domain.Garage, error)
	Update(ctx context.Context, actor domain.Actor, id uint, in garage.GarageUpdateInput) (domain.Garage, error)
	SoftDelete(ctx context.Context, actor domain.Actor, id uint) (garage.ArchiveResult, error)
	Restore(ctx context.Context, actor domain.Actor, id uint) (domain.Garage, error)
	HardDelete(ctx context.Context, actor domain.Actor, id uint) error
	SearchLocation(ctx context.Context, lat, lng, radiusKm float64) ([]domain.Garage, error)
	AddService(ctx context.Context, actor domain.Actor, garageID uint, in garage.ServiceInput) (domain.GarageService, error)
	UpdateService(ctx context.Context, actor domain.Actor, garageID, serviceID uint, in garage.ServiceUpdateInput) (domain.GarageService, error)
	RemoveService(ctx context.Context, actor domain.Actor, garageID, serviceID uint) error
}

type GarageHandler struct {
	garageService GarageService
	timeout       time.Duration
}

func NewGarageHandler(garageService GarageService) *GarageHandler {
	return &GarageHandler{
		garageService: garageService,
		timeout:       defaultTimeout,
	}
}

func (h *GarageHandler) List(c echo.Context) error {
	page, limit := pagination(c)
	filter := domain.GarageFilter{
		City:   c.QueryParam("city"),
		Search: c.QueryParam("search"),
		Page:   page,
		Limit:  limit,
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	garages, total, err := h.garageService.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", Page{Items: garages, Total: total, Page: page, Limit: limit}))
}

func (h *GarageHandler) ListMine(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	garages, err := h.garageService.ListMine(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", garages))
}

func (h *GarageHandler) SearchLocation(c echo.Context) error {
	lat, okLat, err := queryFloat(c, "lat")
	if err != nil {
		return err
	}
	lng, okLng, err := queryFloat(c, "lng")
	if err != nil {
		return err
	}
	if !okLat || !okLng {
		return domain.NewValidationError("lat", "lat and lng are required")
	}
	radius, _, err := queryFloat(c, "radius")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	garages, err := h.garageService.SearchLocation(ctx, lat, lng, radius)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", garages))
}

// Get is public; the actor is only used to show archived garages to
// their managers.
func (h *GarageHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor, _ := currentActor(c)

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	g, err := h.garageService.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", g))
}

func (h *GarageHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req garage.GarageInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	g, err := h.garageService.Create(ctx, actor, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Garage created", g))
}

func (h *GarageHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req garage.GarageUpdateInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	g, err := h.garageService.Update(ctx, actor, id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Garage updated", g))
}

func (h *GarageHandler) SoftDelete(c echo.Context) error {
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

	result, err := h.garageService.SoftDelete(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Garage deleted", result))
}

func (h *GarageHandler) Restore(c echo.Context) error {
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

	g, err := h.garageService.Restore(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Garage restored", g))
}

func (h *GarageHandler) HardDelete(c echo.Context) error {
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

	if err := h.garageService.HardDelete(ctx, actor, id); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Garage permanently deleted", nil))
}

func (h *GarageHandler) AddService(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	garageID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req garage.ServiceInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	svc, err := h.garageService.AddService(ctx, actor, garageID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Service added", svc))
}

func (h *GarageHandler) ListServices(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor, _ := currentActor(c)

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	g, err := h.garageService.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", g.Services))
}

func (h *GarageHandler) UpdateService(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	garageID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	serviceID, err := pathID(c, "serviceId")
	if err != nil {
		return err
	}

	var req garage.ServiceUpdateInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	svc, err := h.garageService.UpdateService(ctx, actor, garageID, serviceID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Service updated", svc))
}

func (h *GarageHandler) RemoveService(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	garageID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	serviceID, err := pathID(c, "serviceId")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.garageService.RemoveService(ctx, actor, garageID, serviceID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Service removed", nil))
}

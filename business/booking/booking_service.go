package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// BookingRepository contract interface
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	FindByID(ctx context.Context, id uint) (domain.Booking, error)
	ListByCustomer(ctx context.Context, customerID uint) ([]domain.Booking, error)
	ListByGarage(ctx context.Context, garageID uint) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, id uint, from, to domain.BookingStatus, reason string) error
	SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error
	Delete(ctx context.Context, id uint) error
}

type GarageRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Garage, error)
	FindServicesByIDs(ctx context.Context, garageID uint, ids []uint) ([]domain.GarageService, error)
}

type bookingService struct {
	bookings BookingRepository
	garages  GarageRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewBookingService(bookings BookingRepository, garages GarageRepository, validate *validator.Validate) *bookingService {
	return &bookingService{
		bookings: bookings,
		garages:  garages,
		validate: validate,
		now:      time.Now,
	}
}

type CreateInput struct {
	GarageID      uint                 `json:"garage_id" validate:"required"`
	ServiceIDs    []uint               `json:"service_ids" validate:"required,min=1,max=20,dive,gt=0"`
	AppointmentAt time.Time            `json:"appointment_at" validate:"required"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card chapa"`
	Notes         string               `json:"notes" validate:"max=500"`
}

type StatusInput struct {
	Status domain.BookingStatus `json:"status" validate:"required,oneof=confirmed in_progress completed cancelled rejected"`
	Reason string               `json:"reason" validate:"max=500"`
}

// Create books active services of an active garage. Service names and prices
// are copied onto the booking.
func (s *bookingService) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Booking, error) {
	if actor.Role != domain.RoleCustomer {
		return domain.Booking{}, fmt.Errorf("%w: only customers can book", domain.ErrForbidden)
	}
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.Booking{}, err
	}
	if !in.AppointmentAt.After(s.now()) {
		return domain.Booking{}, domain.NewValidationError("appointment_at", "must be in the future")
	}

	garage, err := s.garages.FindByID(ctx, in.GarageID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !garage.Lifecycle.IsActive() {
		return domain.Booking{}, fmt.Errorf("%w: garage %d", domain.ErrNotFound, in.GarageID)
	}

	ids := uniqueIDs(in.ServiceIDs)
	services, err := s.garages.FindServicesByIDs(ctx, garage.ID, ids)
	if err != nil {
		return domain.Booking{}, err
	}
	byID := make(map[uint]domain.GarageService, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	booked := make([]domain.BookedService, 0, len(ids))
	var total int64
	var unavailable []string
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok || !svc.IsActive {
			unavailable = append(unavailable, fmt.Sprint(id))
			continue
		}
		booked = append(booked, domain.BookedService{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			Price:           svc.Price,
			DurationMinutes: svc.DurationMinutes,
		})
		total += svc.Price
	}
	if len(unavailable) > 0 {
		return domain.Booking{}, domain.NewValidationError("service_ids", "services not offered by this garage: "+strings.Join(unavailable, ", "))
	}

	method := in.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCash
	}

	booking := domain.Booking{
		CustomerID:    actor.ID,
		GarageID:      garage.ID,
		Services:      booked,
		TotalPrice:    total,
		AppointmentAt: in.AppointmentAt.UTC(),
		Status:        domain.BookingPending,
		Payment:       domain.BookingPayment{Method: method, Status: domain.PaymentPending},
		Notes:         in.Notes,
		Lifecycle:     domain.ActiveLifecycle(),
	}
	if err := s.bookings.Create(ctx, &booking); err != nil {
		logger.Error("failed to create booking", "error", err, "customer_id", actor.ID, "garage_id", garage.ID)
		return domain.Booking{}, err
	}

	logger.Info("booking created", "booking_id", booking.ID, "garage_id", garage.ID, "total", total)
	return booking, nil
}

func (s *bookingService) MyBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	return s.bookings.ListByCustomer(ctx, actor.ID)
}

// GarageBookings lists a garage's bookings for its owner or an admin.
func (s *bookingService) GarageBookings(ctx context.Context, actor domain.Actor, garageID uint) ([]domain.Booking, error) {
	garage, err := s.garages.FindByID(ctx, garageID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && garage.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: not the owner of garage %d", domain.ErrForbidden, garageID)
	}
	return s.bookings.ListByGarage(ctx, garageID)
}

func (s *bookingService) Get(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	party, err := s.party(ctx, actor, booking)
	if err != nil {
		return domain.Booking{}, err
	}
	if party == "" {
		return domain.Booking{}, domain.ErrForbidden
	}
	if !booking.Lifecycle.IsActive() && party != partyAdmin {
		return domain.Booking{}, fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
	}
	return booking, nil
}

const (
	partyCustomer = "customer"
	partyGarage   = "garage"
	partyAdmin    = "admin"
)

// party names the caller's relation to the booking, or "" for none.
func (s *bookingService) party(ctx context.Context, actor domain.Actor, b domain.Booking) (string, error) {
	switch {
	case actor.Role.IsAdmin():
		return partyAdmin, nil
	case actor.ID == b.CustomerID:
		return partyCustomer, nil
	case actor.Role == domain.RoleGarageOwner:
		garage, err := s.garages.FindByID(ctx, b.GarageID)
		if err != nil {
			return "", err
		}
		if garage.OwnerID == actor.ID {
			return partyGarage, nil
		}
	}
	return "", nil
}

// UpdateStatus moves a booking along pending → confirmed → in_progress →
// completed. Customers may only cancel.
func (s *bookingService) UpdateStatus(ctx context.Context, actor domain.Actor, id uint, in StatusInput) (domain.Booking, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.Booking{}, err
	}

	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	party, err := s.party(ctx, actor, booking)
	if err != nil {
		return domain.Booking{}, err
	}
	if party == "" {
		return domain.Booking{}, domain.ErrForbidden
	}
	if party == partyCustomer && in.Status != domain.BookingCancelled {
		return domain.Booking{}, fmt.Errorf("%w: customers can only cancel", domain.ErrForbidden)
	}
	if !booking.Lifecycle.IsActive() {
		return domain.Booking{}, fmt.Errorf("%w: booking %d is archived", domain.ErrConflict, id)
	}
	if !booking.Status.CanTransition(in.Status) {
		return domain.Booking{}, fmt.Errorf("%w: booking cannot move from %s to %s", domain.ErrInvalidTransition, booking.Status, in.Status)
	}

	if err := s.bookings.UpdateStatus(ctx, id, booking.Status, in.Status, in.Reason); err != nil {
		logger.Warn("booking status update failed", "error", err, "booking_id", id)
		return domain.Booking{}, err
	}

	logger.Info("booking status changed", "booking_id", id, "from", booking.Status, "to", in.Status, "by", actor.ID)
	booking.Status = in.Status
	if in.Status == domain.BookingCancelled || in.Status == domain.BookingRejected {
		booking.CancelledReason = in.Reason
	}
	booking.UpdatedAt = s.now()
	return booking, nil
}

func (s *bookingService) SoftDelete(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error) {
	return s.changeLifecycle(ctx, actor, id, func(l *domain.Lifecycle) error {
		return l.Archive(actor.ID, s.now())
	})
}

func (s *bookingService) Restore(ctx context.Context, actor domain.Actor, id uint) (domain.Booking, error) {
	return s.changeLifecycle(ctx, actor, id, func(l *domain.Lifecycle) error {
		return l.Restore()
	})
}

func (s *bookingService) changeLifecycle(ctx context.Context, actor domain.Actor, id uint, apply func(*domain.Lifecycle) error) (domain.Booking, error) {
	if !actor.Role.IsAdmin() {
		return domain.Booking{}, domain.ErrForbidden
	}
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := apply(&booking.Lifecycle); err != nil {
		return domain.Booking{}, err
	}
	if err := s.bookings.SaveLifecycle(ctx, id, booking.Lifecycle); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (s *bookingService) HardDelete(ctx context.Context, actor domain.Actor, id uint) error {
	if !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("booking deleted", "booking_id", id, "by", actor.ID)
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package garage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// GarageRepository contract interface
type GarageRepository interface {
	Create(ctx context.Context, garage *domain.Garage) error
	FindByID(ctx context.Context, id uint) (domain.Garage, error)
	List(ctx context.Context, filter domain.GarageFilter) ([]domain.Garage, int64, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]domain.Garage, error)
	FindInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]domain.Garage, error)
	Update(ctx context.Context, garage *domain.Garage) error
	SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error
	Delete(ctx context.Context, id uint) error
	CreateService(ctx context.Context, service *domain.GarageService) error
	FindService(ctx context.Context, garageID, serviceID uint) (domain.GarageService, error)
	UpdateService(ctx context.Context, service *domain.GarageService) error
	DeleteService(ctx context.Context, garageID, serviceID uint) error
}

type BookingRepository interface {
	CountOpenByGarage(ctx context.Context, garageID uint) (int64, error)
	CountByGarage(ctx context.Context, garageID uint) (int64, error)
	ArchiveByGarage(ctx context.Context, garageID, by uint, at time.Time) (int64, error)
}

type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error)
}

const (
	earthRadiusKm   = 6371
	DefaultRadiusKm = 10
	MaxRadiusKm     = 200
)

// PartialFailureError reports a multi-step write that stopped after its
// first step succeeded.
type PartialFailureError struct {
	Completed string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s, but %s failed: %v", e.Completed, e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

type garageService struct {
	garages  GarageRepository
	bookings BookingRepository
	profiles ProfileRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewGarageService(garages GarageRepository, bookings BookingRepository, profiles ProfileRepository, validate *validator.Validate) *garageService {
	return &garageService{
		garages:  garages,
		bookings: bookings,
		profiles: profiles,
		validate: validate,
		now:      time.Now,
	}
}

type GarageInput struct {
	OwnerID      uint    `json:"owner_id"`
	Name         string  `json:"name" validate:"required,min=2,max=150"`
	Description  string  `json:"description" validate:"max=2000"`
	Address      string  `json:"address" validate:"required"`
	City         string  `json:"city" validate:"required"`
	Phone        string  `json:"phone" validate:"omitempty,max=20"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	OpeningHours string  `json:"opening_hours" validate:"max=500"`
}

type GarageUpdateInput struct {
	Name         *string  `json:"name" validate:"omitempty,min=2,max=150"`
	Description  *string  `json:"description" validate:"omitempty,max=2000"`
	Address      *string  `json:"address" validate:"omitempty,min=1"`
	City         *string  `json:"city" validate:"omitempty,min=1"`
	Phone        *string  `json:"phone" validate:"omitempty,max=20"`
	Email        *string  `json:"email" validate:"omitempty,email"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	OpeningHours *string  `json:"opening_hours" validate:"omitempty,max=500"`
}

type ServiceInput struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Description     string `json:"description" validate:"max=1000"`
	Price           int64  `json:"price" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0,lte=1440"`
	IsActive        *bool  `json:"is_active"`
}

type ServiceUpdateInput struct {
	Name            *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	Price           *int64  `json:"price" validate:"omitempty,gte=0"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
	IsActive        *bool   `json:"is_active"`
}

// ArchiveResult describes a soft delete and its cascade onto bookings.
type ArchiveResult struct {
	Garage           domain.Garage `json:"garage"`
	ArchivedBookings int64         `json:"archived_bookings"`
}

func (s *garageService) Create(ctx context.Context, actor domain.Actor, in GarageInput) (domain.Garage, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.Garage{}, err
	}

	ownerID := actor.ID
	switch {
	case actor.Role.IsAdmin():
		if in.OwnerID == 0 {
			return domain.Garage{}, domain.NewValidationError("owner_id", "owner_id is required")
		}
		ownerID = in.OwnerID
	case actor.Role == domain.RoleGarageOwner:
		profile, err := s.profiles.GetByAccountID(ctx, actor.ID)
		if err != nil {
			return domain.Garage{}, err
		}
		if profile.Verification.Status != domain.VerificationApproved {
			return domain.Garage{}, fmt.Errorf("%w: garage owner is not approved", domain.ErrForbidden)
		}
	default:
		return domain.Garage{}, domain.ErrForbidden
	}

	garage := domain.Garage{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Address:      in.Address,
		City:         in.City,
		Phone:        in.Phone,
		Email:        in.Email,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		OpeningHours: in.OpeningHours,
		Lifecycle:    domain.ActiveLifecycle(),
	}
	if err := s.garages.Create(ctx, &garage); err != nil {
		logger.Error("failed to create garage", "error", err, "owner_id", ownerID)
		return domain.Garage{}, err
	}

	logger.Info("garage created", "garage_id", garage.ID, "owner_id", ownerID)
	return garage, nil
}

func (s *garageService) List(ctx context.Context, filter domain.GarageFilter) ([]domain.Garage, int64, error) {
	return s.garages.List(ctx, filter)
}

func (s *garageService) ListMine(ctx context.Context, ownerID uint) ([]domain.Garage, error) {
	return s.garages.ListByOwner(ctx, ownerID)
}

// Get hides archived garages from everyone except admins and their owner.
func (s *garageService) Get(ctx context.Context, actor domain.Actor, id uint) (domain.Garage, error) {
	garage, err := s.garages.FindByID(ctx, id)
	if err != nil {
		return domain.Garage{}, err
	}
	if !garage.Lifecycle.IsActive() && !canManage(actor, garage) {
		return domain.Garage{}, fmt.Errorf("%w: garage %d", domain.ErrNotFound, id)
	}
	if !canManage(actor, garage) {
		garage.Services = activeOnly(garage.Services)
	}
	return garage, nil
}

func (s *garageService) Update(ctx context.Context, actor domain.Actor, id uint, in GarageUpdateInput) (domain.Garage, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.Garage{}, err
	}

	garage, err := s.manageable(ctx, actor, id)
	if err != nil {
		return domain.Garage{}, err
	}

	setString(&garage.Name, in.Name)
	setString(&garage.Description, in.Description)
	setString(&garage.Address, in.Address)
	setString(&garage.City, in.City)
	setString(&garage.Phone, in.Phone)
	setString(&garage.Email, in.Email)
	setString(&garage.OpeningHours, in.OpeningHours)
	if in.Latitude != nil {
		garage.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		garage.Longitude = *in.Longitude
	}
	garage.UpdatedAt = s.now()

	if err := s.garages.Update(ctx, &garage); err != nil {
		logger.Error("failed to update garage", "error", err, "garage_id", id)
		return domain.Garage{}, err
	}
	return garage, nil
}

// SoftDelete archives a garage with no open bookings, then archives its
// remaining bookings. The two writes are separate; a failure of the second is
// returned as *PartialFailureError alongside the archived garage.
func (s *garageService) SoftDelete(ctx context.Context, actor domain.Actor, id uint) (ArchiveResult, error) {
	garage, err := s.manageable(ctx, actor, id)
	if err != nil {
		return ArchiveResult{}, err
	}

	open, err := s.bookings.CountOpenByGarage(ctx, id)
	if err != nil {
		return ArchiveResult{}, err
	}
	if open > 0 {
		return ArchiveResult{}, fmt.Errorf("%w: garage has %d open bookings", domain.ErrConflict, open)
	}

	now := s.now()
	if err := garage.Lifecycle.Archive(actor.ID, now); err != nil {
		return ArchiveResult{}, err
	}
	if err := s.garages.SaveLifecycle(ctx, id, garage.Lifecycle); err != nil {
		return ArchiveResult{}, err
	}

	result := ArchiveResult{Garage: garage}
	archived, err := s.bookings.ArchiveByGarage(ctx, id, actor.ID, now)
	if err != nil {
		logger.Error("garage archived but bookings were not", "error", err, "garage_id", id)
		return result, &PartialFailureError{Completed: "garage archived", Failed: "archiving its bookings", Err: err}
	}
	result.ArchivedBookings = archived

	logger.Info("garage archived", "garage_id", id, "archived_bookings", archived, "by", actor.ID)
	return result, nil
}

func (s *garageService) Restore(ctx context.Context, actor domain.Actor, id uint) (domain.Garage, error) {
	if !actor.Role.IsAdmin() {
		return domain.Garage{}, domain.ErrForbidden
	}
	garage, err := s.garages.FindByID(ctx, id)
	if err != nil {
		return domain.Garage{}, err
	}
	if err := garage.Lifecycle.Restore(); err != nil {
		return domain.Garage{}, err
	}
	if err := s.garages.SaveLifecycle(ctx, id, garage.Lifecycle); err != nil {
		return domain.Garage{}, err
	}
	return garage, nil
}

// HardDelete is refused while any booking still references the garage.
func (s *garageService) HardDelete(ctx context.Context, actor domain.Actor, id uint) error {
	if !actor.Role.IsAdmin() {
		return domain.ErrForbidden
	}
	if _, err := s.garages.FindByID(ctx, id); err != nil {
		return err
	}

	count, err := s.bookings.CountByGarage(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: garage is referenced by %d bookings", domain.ErrConflict, count)
	}

	if err := s.garages.Delete(ctx, id); err != nil {
		logger.Error("failed to delete garage", "error", err, "garage_id", id)
		return err
	}
	logger.Info("garage deleted", "garage_id", id, "by", actor.ID)
	return nil
}

// SearchLocation returns active garages within radiusKm, nearest first.
func (s *garageService) SearchLocation(ctx context.Context, lat, lng, radiusKm float64) ([]domain.Garage, error) {
	if lat < -90 || lat > 90 {
		return nil, domain.NewValidationError("lat", "must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return nil, domain.NewValidationError("lng", "must be between -180 and 180")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if radiusKm > MaxRadiusKm {
		return nil, domain.NewValidationError("radius", fmt.Sprintf("must be at most %d km", MaxRadiusKm))
	}

	minLat, maxLat, minLng, maxLng := boundingBox(lat, lng, radiusKm)
	candidates, err := s.garages.FindInBox(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, err
	}

	origin := point{lat: lat, lng: lng}
	var found []domain.Garage
	for _, g := range candidates {
		d := haversine(origin, point{lat: g.Latitude, lng: g.Longitude})
		if d > radiusKm {
			continue
		}
		g.DistanceKm = math.Round(d*100) / 100
		found = append(found, g)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].DistanceKm < found[j].DistanceKm
	})

	return found, nil
}

func (s *garageService) AddService(ctx context.Context, actor domain.Actor, garageID uint, in ServiceInput) (domain.GarageService, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.GarageService{}, err
	}
	if _, err := s.manageable(ctx, actor, garageID); err != nil {
		return domain.GarageService{}, err
	}

	service := domain.GarageService{
		GarageID:        garageID,
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		IsActive:        true,
	}
	if in.IsActive != nil {
		service.IsActive = *in.IsActive
	}
	if err := s.garages.CreateService(ctx, &service); err != nil {
		return domain.GarageService{}, err
	}
	return service, nil
}

func (s *garageService) UpdateService(ctx context.Context, actor domain.Actor, garageID, serviceID uint, in ServiceUpdateInput) (domain.GarageService, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.GarageService{}, err
	}
	if _, err := s.manageable(ctx, actor, garageID); err != nil {
		return domain.GarageService{}, err
	}

	service, err := s.garages.FindService(ctx, garageID, serviceID)
	if err != nil {
		return domain.GarageService{}, err
	}
	setString(&service.Name, in.Name)
	setString(&service.Description, in.Description)
	if in.Price != nil {
		service.Price = *in.Price
	}
	if in.DurationMinutes != nil {
		service.DurationMinutes = *in.DurationMinutes
	}
	if in.IsActive != nil {
		service.IsActive = *in.IsActive
	}
	service.UpdatedAt = s.now()

	if err := s.garages.UpdateService(ctx, &service); err != nil {
		return domain.GarageService{}, err
	}
	return service, nil
}

// RemoveService deletes the catalog entry. Bookings keep their snapshot.
func (s *garageService) RemoveService(ctx context.Context, actor domain.Actor, garageID, serviceID uint) error {
	if _, err := s.manageable(ctx, actor, garageID); err != nil {
		return err
	}
	return s.garages.DeleteService(ctx, garageID, serviceID)
}

func (s *garageService) manageable(ctx context.Context, actor domain.Actor, id uint) (domain.Garage, error) {
	garage, err := s.garages.FindByID(ctx, id)
	if err != nil {
		return domain.Garage{}, err
	}
	if !canManage(actor, garage) {
		if !garage.Lifecycle.IsActive() {
			return domain.Garage{}, fmt.Errorf("%w: garage %d", domain.ErrNotFound, id)
		}
		return domain.Garage{}, fmt.Errorf("%w: not the owner of garage %d", domain.ErrForbidden, id)
	}
	if !garage.Lifecycle.IsActive() && !actor.Role.IsAdmin() {
		return domain.Garage{}, fmt.Errorf("%w: garage %d is archived", domain.ErrConflict, id)
	}
	return garage, nil
}

func canManage(actor domain.Actor, g domain.Garage) bool {
	return actor.Role.IsAdmin() || (actor.ID != 0 && actor.ID == g.OwnerID)
}

func activeOnly(services []domain.GarageService) []domain.GarageService {
	out := services[:0:0]
	for _, svc := range services {
		if svc.IsActive {
			out = append(out, svc)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

type point struct {
	lat, lng float64
}

// haversine returns the great-circle distance in kilometers.
func haversine(p1, p2 point) float64 {
	lat1 := p1.lat * math.Pi / 180
	lat2 := p2.lat * math.Pi / 180
	dLat := (p2.lat - p1.lat) * math.Pi / 180
	dLon := (p2.lng - p1.lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// boundingBox over-approximates the search circle so the store can use plain
// range predicates.
func boundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / 111.0
	minLat = math.Max(lat-dLat, -90)
	maxLat = math.Min(lat+dLat, 90)

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 || minLat == -90 || maxLat == 90 {
		return minLat, maxLat, -180, 180
	}
	dLng := radiusKm / (111.0 * cosLat)
	if lng-dLng < -180 || lng+dLng > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, lng - dLng, lng + dLng
}

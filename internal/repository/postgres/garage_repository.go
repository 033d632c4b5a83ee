package postgres

import (
	"context"

	"garageBooking/domain"

	"gorm.io/gorm"
)

type GarageRepository struct {
	DB *gorm.DB
}

func NewGarageRepository(db *gorm.DB) *GarageRepository {
	return &GarageRepository{
		DB: db,
	}
}

func activeServices(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).Order("id")
}

func (r *GarageRepository) Create(ctx context.Context, garage *domain.Garage) error {
	return mapError(r.DB.WithContext(ctx).Create(garage).Error)
}

// FindByID returns the garage in any lifecycle state with all its services.
func (r *GarageRepository) FindByID(ctx context.Context, id uint) (domain.Garage, error) {
	var garage domain.Garage

	err := r.DB.WithContext(ctx).Preload("Services", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&garage, id).Error
	if err != nil {
		return domain.Garage{}, mapError(err)
	}

	return garage, nil
}

func (r *GarageRepository) List(ctx context.Context, filter domain.GarageFilter) ([]domain.Garage, int64, error) {
	q := r.DB.WithContext(ctx).Model(&domain.Garage{}).Where("lifecycle_state = ?", domain.LifecycleActive)
	if filter.City != "" {
		q = q.Where("city ILIKE ?", filter.City)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var garages []domain.Garage
	err := page(q, filter.Page, filter.Limit).
		Preload("Services", activeServices).
		Order("average_rating DESC, id").
		Find(&garages).Error
	if err != nil {
		return nil, 0, err
	}

	return garages, total, nil
}

func (r *GarageRepository) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Garage, error) {
	var garages []domain.Garage
	err := r.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&garages).Error
	return garages, err
}

// FindInBox returns active garages inside a lat/lng bounding box. Callers
// refine by great-circle distance.
func (r *GarageRepository) FindInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]domain.Garage, error) {
	var garages []domain.Garage

	err := r.DB.WithContext(ctx).
		Where("lifecycle_state = ?", domain.LifecycleActive).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Preload("Services", activeServices).
		Find(&garages).Error
	if err != nil {
		return nil, err
	}

	return garages, nil
}

func (r *GarageRepository) Update(ctx context.Context, garage *domain.Garage) error {
	result := r.DB.WithContext(ctx).Model(&domain.Garage{}).Where("id = ?", garage.ID).
		Select("name", "description", "address", "city", "phone", "email", "latitude", "longitude", "opening_hours", "updated_at").
		Updates(garage)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *GarageRepository) SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error {
	result := r.DB.WithContext(ctx).Model(&domain.Garage{}).Where("id = ?", id).Updates(map[string]any{
		"lifecycle_state": lifecycle.State,
		"archived_at":     lifecycle.ArchivedAt,
		"archived_by":     lifecycle.ArchivedBy,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Delete removes the garage and its services.
func (r *GarageRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("garage_id = ?", id).Delete(&domain.GarageService{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Garage{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *GarageRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Garage{}).Where("lifecycle_state = ?", domain.LifecycleActive).Count(&count).Error
	return count, err
}

func (r *GarageRepository) CreateService(ctx context.Context, service *domain.GarageService) error {
	return mapError(r.DB.WithContext(ctx).Create(service).Error)
}

func (r *GarageRepository) FindService(ctx context.Context, garageID, serviceID uint) (domain.GarageService, error) {
	var service domain.GarageService

	err := r.DB.WithContext(ctx).Where("garage_id = ? AND id = ?", garageID, serviceID).First(&service).Error
	if err != nil {
		return domain.GarageService{}, mapError(err)
	}

	return service, nil
}

func (r *GarageRepository) FindServicesByIDs(ctx context.Context, garageID uint, ids []uint) ([]domain.GarageService, error) {
	var services []domain.GarageService
	err := r.DB.WithContext(ctx).Where("garage_id = ? AND id IN ?", garageID, ids).Find(&services).Error
	return services, err
}

func (r *GarageRepository) UpdateService(ctx context.Context, service *domain.GarageService) error {
	result := r.DB.WithContext(ctx).Model(&domain.GarageService{}).
		Where("id = ? AND garage_id = ?", service.ID, service.GarageID).
		Select("name", "description", "price", "duration_minutes", "is_active", "updated_at").
		Updates(service)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *GarageRepository) DeleteService(ctx context.Context, garageID, serviceID uint) error {
	result := r.DB.WithContext(ctx).Where("garage_id = ? AND id = ?", garageID, serviceID).Delete(&domain.GarageService{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

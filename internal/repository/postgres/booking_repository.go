package postgres

import (
	"context"
	"time"

	"garageBooking/domain"

	"gorm.io/gorm"
)

type BookingRepository struct {
	DB *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{
		DB: db,
	}
}

var openBookingStatuses = []domain.BookingStatus{
	domain.BookingPending,
	domain.BookingConfirmed,
	domain.BookingInProgress,
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return mapError(r.DB.WithContext(ctx).Create(booking).Error)
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint) (domain.Booking, error) {
	var booking domain.Booking

	err := r.DB.WithContext(ctx).First(&booking, id).Error
	if err != nil {
		return domain.Booking{}, mapError(err)
	}

	return booking, nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID uint) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.DB.WithContext(ctx).
		Where("customer_id = ? AND lifecycle_state = ?", customerID, domain.LifecycleActive).
		Order("appointment_at DESC").
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) ListByGarage(ctx context.Context, garageID uint) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.DB.WithContext(ctx).
		Where("garage_id = ? AND lifecycle_state = ?", garageID, domain.LifecycleActive).
		Order("appointment_at").
		Find(&bookings).Error
	return bookings, err
}

// UpdateStatus moves a booking only if it is still in the expected status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.BookingStatus, reason string) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == domain.BookingCancelled || to == domain.BookingRejected {
		updates["cancelled_reason"] = reason
	}

	result := r.DB.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleVersion
	}

	return nil
}

func (r *BookingRepository) SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error {
	result := r.DB.WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id).Updates(map[string]any{
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

func (r *BookingRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB.WithContext(ctx).Delete(&domain.Booking{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *BookingRepository) CountOpenByGarage(ctx context.Context, garageID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Booking{}).
		Where("garage_id = ? AND lifecycle_state = ? AND status IN ?", garageID, domain.LifecycleActive, openBookingStatuses).
		Count(&count).Error
	return count, err
}

func (r *BookingRepository) CountByGarage(ctx context.Context, garageID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Booking{}).Where("garage_id = ?", garageID).Count(&count).Error
	return count, err
}

// ArchiveByGarage archives every non-completed booking of a garage and
// cancels the ones still open.
func (r *BookingRepository) ArchiveByGarage(ctx context.Context, garageID, by uint, at time.Time) (int64, error) {
	result := r.DB.WithContext(ctx).Model(&domain.Booking{}).
		Where("garage_id = ? AND lifecycle_state = ? AND status <> ?", garageID, domain.LifecycleActive, domain.BookingCompleted).
		Updates(map[string]any{
			"lifecycle_state":  domain.LifecycleArchived,
			"archived_at":      at,
			"archived_by":      by,
			"status":           gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END", openBookingStatuses, domain.BookingCancelled),
			"cancelled_reason": gorm.Expr("CASE WHEN status IN ? THEN ? ELSE cancelled_reason END", openBookingStatuses, "garage removed"),
		})
	return result.RowsAffected, result.Error
}

// HasCompleted reports whether the customer finished the given booking at the garage.
func (r *BookingRepository) HasCompleted(ctx context.Context, bookingID, customerID, garageID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ? AND customer_id = ? AND garage_id = ? AND status = ?", bookingID, customerID, garageID, domain.BookingCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *BookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		GroupKey string
		Count    int64
	}
	err := r.DB.WithContext(ctx).Model(&domain.Booking{}).
		Select("status as group_key, count(*) as count").
		Where("lifecycle_state = ?", domain.LifecycleActive).
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Count
	}
	return out, nil
}

package postgres

import (
	"context"
	"math"

	"garageBooking/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewRepository struct {
	DB *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{
		DB: db,
	}
}

// Create maps the one-active-review-per-garage index onto domain.ErrConflict.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	return mapError(r.DB.WithContext(ctx).Create(review).Error)
}

func (r *ReviewRepository) FindByID(ctx context.Context, id uint) (domain.Review, error) {
	var review domain.Review

	err := r.DB.WithContext(ctx).First(&review, id).Error
	if err != nil {
		return domain.Review{}, mapError(err)
	}

	return review, nil
}

func (r *ReviewRepository) ExistsActive(ctx context.Context, customerID, garageID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Review{}).
		Where("customer_id = ? AND garage_id = ? AND lifecycle_state = ?", customerID, garageID, domain.LifecycleActive).
		Count(&count).Error
	return count > 0, err
}

func (r *ReviewRepository) ListByGarage(ctx context.Context, garageID uint, p, limit int) ([]domain.Review, int64, error) {
	q := r.DB.WithContext(ctx).Model(&domain.Review{}).
		Where("garage_id = ? AND lifecycle_state = ?", garageID, domain.LifecycleActive)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []domain.Review
	if err := page(q, p, limit).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	result := r.DB.WithContext(ctx).Model(&domain.Review{}).Where("id = ?", review.ID).
		Select("rating", "comment", "updated_at").
		Updates(review)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *ReviewRepository) SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error {
	result := r.DB.WithContext(ctx).Model(&domain.Review{}).Where("id = ?", id).Updates(map[string]any{
		"lifecycle_state": lifecycle.State,
		"archived_at":     lifecycle.ArchivedAt,
		"archived_by":     lifecycle.ArchivedBy,
	})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// RecomputeRating recalculates a garage's rating rollup from its active
// reviews while holding the garage row lock, so concurrent review writes
// serialize on the rollup.
func (r *ReviewRepository) RecomputeRating(ctx context.Context, garageID uint) (domain.RatingRollup, error) {
	var rollup domain.RatingRollup

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var garage domain.Garage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&garage, garageID).Error; err != nil {
			return mapError(err)
		}

		var agg struct {
			Total   int64
			Average float64
		}
		err := tx.Model(&domain.Review{}).
			Select("count(*) as total, coalesce(avg(rating), 0) as average").
			Where("garage_id = ? AND lifecycle_state = ?", garageID, domain.LifecycleActive).
			Scan(&agg).Error
		if err != nil {
			return err
		}

		rollup = domain.RatingRollup{
			AverageRating: RoundRating(agg.Average),
			TotalReviews:  int(agg.Total),
		}
		return tx.Model(&domain.Garage{}).Where("id = ?", garageID).Updates(map[string]any{
			"average_rating": rollup.AverageRating,
			"total_reviews":  rollup.TotalReviews,
		}).Error
	})
	if err != nil {
		return domain.RatingRollup{}, err
	}

	return rollup, nil
}

func (r *ReviewRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Review{}).Where("lifecycle_state = ?", domain.LifecycleActive).Count(&count).Error
	return count, err
}

// RoundRating rounds to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

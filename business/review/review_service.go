package review

import (
	"context"
	"fmt"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/metrics"
	"garageBooking/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// ReviewRepository contract interface
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	FindByID(ctx context.Context, id uint) (domain.Review, error)
	ExistsActive(ctx context.Context, customerID, garageID uint) (bool, error)
	ListByGarage(ctx context.Context, garageID uint, page, limit int) ([]domain.Review, int64, error)
	Update(ctx context.Context, review *domain.Review) error
	SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error
	// RecomputeRating must serialize per garage.
	RecomputeRating(ctx context.Context, garageID uint) (domain.RatingRollup, error)
}

type GarageRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Garage, error)
}

type BookingRepository interface {
	HasCompleted(ctx context.Context, bookingID, customerID, garageID uint) (bool, error)
}

type reviewService struct {
	reviews  ReviewRepository
	garages  GarageRepository
	bookings BookingRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewReviewService(reviews ReviewRepository, garages GarageRepository, bookings BookingRepository, validate *validator.Validate) *reviewService {
	return &reviewService{
		reviews:  reviews,
		garages:  garages,
		bookings: bookings,
		validate: validate,
		now:      time.Now,
	}
}

type CreateInput struct {
	GarageID  uint   `json:"garage_id" validate:"required"`
	BookingID *uint  `json:"booking_id"`
	Rating    int    `json:"rating" validate:"gte=1,lte=5"`
	Comment   string `json:"comment" validate:"max=1000"`
}

type UpdateInput struct {
	Rating  *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// Result carries the garage rollup after the write.
type Result struct {
	Review domain.Review       `json:"review"`
	Rating domain.RatingRollup `json:"garage_rating"`
}

// Create allows one active review per customer and garage.
func (s *reviewService) Create(ctx context.Context, actor domain.Actor, in CreateInput) (Result, error) {
	if actor.Role != domain.RoleCustomer {
		return Result{}, fmt.Errorf("%w: only customers can review", domain.ErrForbidden)
	}
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return Result{}, err
	}

	garage, err := s.garages.FindByID(ctx, in.GarageID)
	if err != nil {
		return Result{}, err
	}
	if !garage.Lifecycle.IsActive() {
		return Result{}, fmt.Errorf("%w: garage %d", domain.ErrNotFound, in.GarageID)
	}

	exists, err := s.reviews.ExistsActive(ctx, actor.ID, garage.ID)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, fmt.Errorf("%w: garage already reviewed", domain.ErrConflict)
	}

	if in.BookingID != nil {
		done, err := s.bookings.HasCompleted(ctx, *in.BookingID, actor.ID, garage.ID)
		if err != nil {
			return Result{}, err
		}
		if !done {
			return Result{}, domain.NewValidationError("booking_id", "must be your completed booking at this garage")
		}
	}

	review := domain.Review{
		CustomerID: actor.ID,
		GarageID:   garage.ID,
		BookingID:  in.BookingID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		Lifecycle:  domain.ActiveLifecycle(),
	}
	if err := s.reviews.Create(ctx, &review); err != nil {
		return Result{}, err
	}

	rollup, err := s.recompute(ctx, garage.ID)
	if err != nil {
		return Result{Review: review}, err
	}
	return Result{Review: review, Rating: rollup}, nil
}

func (s *reviewService) ListByGarage(ctx context.Context, garageID uint, page, limit int) ([]domain.Review, int64, error) {
	if _, err := s.garages.FindByID(ctx, garageID); err != nil {
		return nil, 0, err
	}
	return s.reviews.ListByGarage(ctx, garageID, page, limit)
}

func (s *reviewService) Get(ctx context.Context, id uint) (domain.Review, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if !review.Lifecycle.IsActive() {
		return domain.Review{}, fmt.Errorf("%w: review %d", domain.ErrNotFound, id)
	}
	return review, nil
}

// Update lets the author edit. The rollup is refreshed only when the rating moves.
func (s *reviewService) Update(ctx context.Context, actor domain.Actor, id uint, in UpdateInput) (Result, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return Result{}, err
	}

	review, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if review.CustomerID != actor.ID {
		return Result{}, fmt.Errorf("%w: not the author of review %d", domain.ErrForbidden, id)
	}

	ratingChanged := in.Rating != nil && *in.Rating != review.Rating
	if in.Rating != nil {
		review.Rating = *in.Rating
	}
	if in.Comment != nil {
		review.Comment = *in.Comment
	}
	review.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, &review); err != nil {
		return Result{}, err
	}
	if !ratingChanged {
		return Result{Review: review}, nil
	}

	rollup, err := s.recompute(ctx, review.GarageID)
	if err != nil {
		return Result{Review: review}, err
	}
	return Result{Review: review, Rating: rollup}, nil
}

// Delete archives the review for its author or an admin.
func (s *reviewService) Delete(ctx context.Context, actor domain.Actor, id uint) (Result, error) {
	review, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if review.CustomerID != actor.ID && !actor.Role.IsAdmin() {
		return Result{}, fmt.Errorf("%w: not the author of review %d", domain.ErrForbidden, id)
	}

	if err := review.Lifecycle.Archive(actor.ID, s.now()); err != nil {
		return Result{}, err
	}
	if err := s.reviews.SaveLifecycle(ctx, id, review.Lifecycle); err != nil {
		return Result{}, err
	}

	rollup, err := s.recompute(ctx, review.GarageID)
	if err != nil {
		return Result{Review: review}, err
	}
	return Result{Review: review, Rating: rollup}, nil
}

func (s *reviewService) recompute(ctx context.Context, garageID uint) (domain.RatingRollup, error) {
	rollup, err := s.reviews.RecomputeRating(ctx, garageID)
	if err != nil {
		logger.Error("failed to recompute garage rating", "error", err, "garage_id", garageID)
		return domain.RatingRollup{}, fmt.Errorf("review saved, rating not updated: %w", err)
	}
	metrics.RatingRollups.Inc()
	logger.Debug("garage rating recomputed", "garage_id", garageID, "average", rollup.AverageRating, "total", rollup.TotalReviews)
	return rollup, nil
}

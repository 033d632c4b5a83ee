package postgres

import (
	"context"

	"garageBooking/domain"

	"gorm.io/gorm"
)

type PaymentAttemptRepository struct {
	DB *gorm.DB
}

func NewPaymentAttemptRepository(db *gorm.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{
		DB: db,
	}
}

// Create fails with ErrConflict when the reference was ever stored before.
func (r *PaymentAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return mapError(r.DB.WithContext(ctx).Create(attempt).Error)
}

func (r *PaymentAttemptRepository) GetByTxRef(ctx context.Context, txRef string) (domain.PaymentAttempt, error) {
	var attempt domain.PaymentAttempt

	err := r.DB.WithContext(ctx).Where("tx_ref = ?", txRef).First(&attempt).Error
	if err != nil {
		return domain.PaymentAttempt{}, mapError(err)
	}

	return attempt, nil
}

package postgres

import (
	"context"
	"time"

	"garageBooking/domain"

	"gorm.io/gorm"
)

type GarageProfileRepository struct {
	DB *gorm.DB
}

func NewGarageProfileRepository(db *gorm.DB) *GarageProfileRepository {
	return &GarageProfileRepository{
		DB: db,
	}
}

func (r *GarageProfileRepository) GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error) {
	var profile domain.GarageProfile

	err := r.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error
	if err != nil {
		return nil, mapError(err)
	}

	return &profile, nil
}

func (r *GarageProfileRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.GarageProfile, error) {
	var profile domain.GarageProfile

	err := r.DB.WithContext(ctx).Where("payment_tx_ref = ?", txRef).First(&profile).Error
	if err != nil {
		return nil, mapError(err)
	}

	return &profile, nil
}

func (r *GarageProfileRepository) TxRefExists(ctx context.Context, txRef string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.GarageProfile{}).Where("payment_tx_ref = ?", txRef).Count(&count).Error
	return count > 0, err
}

func (r *GarageProfileRepository) RegistrationNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.GarageProfile{}).Where("registration_number = ?", number).Count(&count).Error
	return count > 0, err
}

// SaveWithVersion writes the whole profile only if nobody else wrote it
// since it was read. On success profile.Version is incremented.
func (r *GarageProfileRepository) SaveWithVersion(ctx context.Context, profile *domain.GarageProfile) error {
	expected := profile.Version
	profile.Version = expected + 1

	result := r.DB.WithContext(ctx).Model(profile).
		Where("version = ?", expected).
		Select("*").Omit("id", "account_id", "created_at").
		Updates(profile)
	if result.Error != nil {
		profile.Version = expected
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		profile.Version = expected
		return domain.ErrStaleVersion
	}

	return nil
}

// ListExpirable returns checkouts started before processingBefore and paid
// subscriptions whose expiry is before paidBefore.
func (r *GarageProfileRepository) ListExpirable(ctx context.Context, processingBefore, paidBefore time.Time, limit int) ([]domain.GarageProfile, error) {
	var profiles []domain.GarageProfile

	err := r.DB.WithContext(ctx).
		Where("(payment_status = ? AND payment_initiated_at < ?) OR (payment_status = ? AND payment_expires_at < ?)",
			domain.PaymentProcessing, processingBefore, domain.PaymentPaid, paidBefore).
		Order("id").Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *GarageProfileRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.GarageProfile, int64, error) {
	q := r.DB.WithContext(ctx).Model(&domain.GarageProfile{})
	if filter.Verification != "" {
		q = q.Where("verification_status = ?", filter.Verification)
	}
	if filter.Payment != "" {
		q = q.Where("payment_status = ?", filter.Payment)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("business_name ILIKE ? OR registration_number ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var profiles []domain.GarageProfile
	err := page(q, filter.Page, filter.Limit).Order("updated_at DESC").Find(&profiles).Error
	if err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *GarageProfileRepository) CountByVerification(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "verification_status")
}

func (r *GarageProfileRepository) CountByPayment(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "payment_status")
}

func (r *GarageProfileRepository) countBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []struct {
		GroupKey string
		Count    int64
	}
	err := r.DB.WithContext(ctx).Model(&domain.GarageProfile{}).
		Select(column + " as group_key, count(*) as count").
		Group(column).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Count
	}
	return out, nil
}

package postgres

import (
	"context"
	"strings"
	"time"

	"garageBooking/domain"

	"gorm.io/gorm"
)

type AccountRepository struct {
	DB *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{
		DB: db,
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	account.Email = normalizeEmail(account.Email)
	return mapError(r.DB.WithContext(ctx).Omit("GarageProfile").Create(account).Error)
}

// CreateWithProfile stores a garage owner and its profile in one transaction.
func (r *AccountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.GarageProfile) error {
	account.Email = normalizeEmail(account.Email)
	return mapError(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("GarageProfile").Create(account).Error; err != nil {
			return err
		}
		profile.AccountID = account.ID
		return tx.Create(profile).Error
	}))
}

func (r *AccountRepository) FindByID(ctx context.Context, id uint) (domain.Account, error) {
	var account domain.Account

	err := r.DB.WithContext(ctx).First(&account, id).Error
	if err != nil {
		return domain.Account{}, mapError(err)
	}

	return account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	var account domain.Account

	err := r.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&account).Error
	if err != nil {
		return domain.Account{}, mapError(err)
	}

	return account, nil
}

func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Account{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) UpdateDetails(ctx context.Context, account *domain.Account) error {
	account.Email = normalizeEmail(account.Email)
	result := r.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", account.ID).
		Select("full_name", "email", "phone", "updated_at").
		Updates(account)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdatePassword also clears any login lockout.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	result := r.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(map[string]any{
		"password":              hash,
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"updated_at":            time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id uint, attempts int, lockedUntil *time.Time) error {
	return r.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_attempts": attempts,
		"locked_until":          lockedUntil,
	}).Error
}

func (r *AccountRepository) RecordLogin(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         at,
	}).Error
}

func (r *AccountRepository) SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error {
	result := r.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(map[string]any{
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

func (r *AccountRepository) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	var rows []struct {
		Role  domain.Role
		Count int64
	}
	err := r.DB.WithContext(ctx).Model(&domain.Account{}).
		Select("role, count(*) as count").
		Where("lifecycle_state = ?", domain.LifecycleActive).
		Group("role").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package postgres

import (
	"errors"
	"fmt"

	"garageBooking/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// mapError turns driver errors into domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func page(db *gorm.DB, p, limit int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if p <= 0 {
		p = 1
	}
	return db.Offset((p - 1) * limit).Limit(limit)
}

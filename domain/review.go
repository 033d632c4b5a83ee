package domain

import "time"

type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"column:customer_id;not null;uniqueIndex:idx_reviews_customer_garage_active,where:lifecycle_state = 'active'" json:"customer_id"`
	GarageID   uint      `gorm:"column:garage_id;not null;index;uniqueIndex:idx_reviews_customer_garage_active,where:lifecycle_state = 'active'" json:"garage_id"`
	BookingID  *uint     `gorm:"column:booking_id" json:"booking_id,omitempty"`
	Rating     int       `gorm:"column:rating;not null" json:"rating"`
	Comment    string    `gorm:"column:comment" json:"comment,omitempty"`
	Lifecycle  Lifecycle `gorm:"embedded" json:"lifecycle"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// RatingRollup is the denormalized summary kept on a Garage.
type RatingRollup struct {
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int     `json:"totalReviews"`
}

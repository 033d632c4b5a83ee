package domain

import "time"

type Garage struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OwnerID       uint            `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	Description   string          `gorm:"column:description" json:"description,omitempty"`
	Address       string          `gorm:"column:address;not null" json:"address"`
	City          string          `gorm:"column:city;index" json:"city"`
	Phone         string          `gorm:"column:phone" json:"phone,omitempty"`
	Email         string          `gorm:"column:email" json:"email,omitempty"`
	Latitude      float64         `gorm:"column:latitude;not null" json:"latitude"`
	Longitude     float64         `gorm:"column:longitude;not null" json:"longitude"`
	OpeningHours  string          `gorm:"column:opening_hours" json:"opening_hours,omitempty"`
	AverageRating float64         `gorm:"column:average_rating;not null;default:0" json:"averageRating"`
	TotalReviews  int             `gorm:"column:total_reviews;not null;default:0" json:"totalReviews"`
	Lifecycle     Lifecycle       `gorm:"embedded" json:"lifecycle"`
	Services      []GarageService `gorm:"foreignKey:GarageID" json:"services,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// DistanceKm is filled by proximity search only.
	DistanceKm float64 `gorm:"-" json:"distance_km,omitempty"`
}

func (Garage) TableName() string {
	return "garages"
}

type GarageService struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GarageID        uint      `gorm:"column:garage_id;not null;index" json:"garage_id"`
	Name            string    `gorm:"column:name;not null" json:"name"`
	Description     string    `gorm:"column:description" json:"description,omitempty"`
	Price           int64     `gorm:"column:price;not null" json:"price"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null" json:"duration_minutes"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (GarageService) TableName() string {
	return "garage_services"
}

type GarageFilter struct {
	City   string
	Search string
	Page   int
	Limit  int
}

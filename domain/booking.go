package domain

import (
	"time"

	"gorm.io/datatypes"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingRejected   BookingStatus = "rejected"
)

// Open reports whether the booking still blocks archiving its garage.
func (s BookingStatus) Open() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingInProgress
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingRejected, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled},
	BookingInProgress: {BookingCompleted},
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodChapa PaymentMethod = "chapa"
)

type BookedService struct {
	ServiceID       uint   `json:"service_id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

type BookingPayment struct {
	Method      PaymentMethod `gorm:"column:method;type:varchar(16)" json:"method"`
	Status      PaymentStatus `gorm:"column:status;type:varchar(20);default:pending" json:"status"`
	ProviderRef string        `gorm:"column:provider_ref" json:"provider_ref,omitempty"`
}

type Booking struct {
	ID              uint                               `gorm:"primaryKey" json:"id"`
	CustomerID      uint                               `gorm:"column:customer_id;not null;index" json:"customer_id"`
	GarageID        uint                               `gorm:"column:garage_id;not null;index" json:"garage_id"`
	Services        datatypes.JSONSlice[BookedService] `gorm:"column:services" json:"services"`
	TotalPrice      int64                              `gorm:"column:total_price;not null" json:"total_price"`
	AppointmentAt   time.Time                          `gorm:"column:appointment_at;not null" json:"appointment_at"`
	Status          BookingStatus                      `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	Payment         BookingPayment                     `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Notes           string                             `gorm:"column:notes" json:"notes,omitempty"`
	CancelledReason string                             `gorm:"column:cancelled_reason" json:"cancelled_reason,omitempty"`
	Lifecycle       Lifecycle                          `gorm:"embedded" json:"lifecycle"`
	CreatedAt       time.Time                          `json:"created_at"`
	UpdatedAt       time.Time                          `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

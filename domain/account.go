package domain

import (
	"time"
)

type Role string

const (
	RoleCustomer    Role = "customer"
	RoleGarageOwner Role = "garage_owner"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "super_admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type Account struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	FullName            string     `gorm:"column:full_name;not null" json:"full_name"`
	Email               string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Phone               string     `gorm:"column:phone" json:"phone,omitempty"`
	Password            string     `gorm:"column:password;not null" json:"-"`
	Role                Role       `gorm:"column:role;type:varchar(20);not null;default:customer" json:"role"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;not null;default:0" json:"-"`
	LockedUntil         *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt         *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	Lifecycle           Lifecycle  `gorm:"embedded" json:"lifecycle"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	GarageProfile *GarageProfile `gorm:"foreignKey:AccountID" json:"garage_profile,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Session is the server-side record of an issued token.
type Session struct {
	UserID    uint      `json:"user_id"`
	Role      Role      `json:"role"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role Role
}

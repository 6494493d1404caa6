package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleManager  = "manager"
)

// User represents a user in the system (customer, staff member or manager)
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Auth0ID     string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Username    string         `gorm:"uniqueIndex;not null" json:"username"`
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`
	Role        string         `gorm:"not null;default:'customer'" json:"role"` // "customer", "staff" or "manager"
	PhoneNumber *string        `json:"phone_number"`
	Address     *string        `json:"address"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsCustomer reports whether the user files complaints
func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}

// IsStaffMember reports whether the user handles complaints
func (u *User) IsStaffMember() bool {
	return u.Role == RoleStaff
}

// IsManager reports whether the user oversees staff and reporting
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

package models

import "time"

// User is a minimal platform identity. Authentication is local email+password;
// org-level rights come from Membership records, never from the user itself.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Name     string `gorm:"not null" json:"name"`
	Password string `gorm:"not null" json:"-"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Memberships []Membership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

package models

import (
	"time"
)

// User is a login account. Role is one of the auth role names.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash, never exposed in JSON
	Role      string    `gorm:"size:20;not null;default:'assistant'" json:"role"`
}

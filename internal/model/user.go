package model

import (
	"time"
)

// UserRole is the stored role of an account.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

// User is the minimal account row this service reads. Account creation
// and authentication live in the identity provider; this table is the
// role directory.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Email     string    `json:"email" gorm:"index;size:256"`
	Role      UserRole  `json:"role" gorm:"size:16"`
	CreatedAt time.Time `json:"created_at"`
}

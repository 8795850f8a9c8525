package domain

import (
	"strings"
	"time"
)

// UserStatus represents account lifecycle states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// User is the domain model for employee accounts.
type User struct {
	ID           string
	EmployeeID   string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Department   string
	Phone        string
	Status       UserStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidUserStatus reports whether the raw value is a known status.
func ValidUserStatus(raw string) (UserStatus, bool) {
	switch UserStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case UserStatusActive:
		return UserStatusActive, true
	case UserStatusInactive:
		return UserStatusInactive, true
	case UserStatusSuspended:
		return UserStatusSuspended, true
	default:
		return "", false
	}
}

// NormalizeEmployeeID canonicalizes an employee identifier.
func NormalizeEmployeeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeEmail canonicalizes an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

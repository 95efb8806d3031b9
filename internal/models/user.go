package models

import "time"

// Role distinguishes the two account variants the portal knows about.
type Role string

// Account roles.
const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// User is a portal account. When TempPasswordExpiresAt is non-nil and in the
// future, PasswordHash corresponds to a one-time temporary credential that
// must be burned on first successful login.
type User struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Username              string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email                 string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash          string     `gorm:"size:255;not null" json:"-"`
	Role                  Role       `gorm:"size:10;not null;default:STUDENT" json:"role"`
	FirstName             string     `gorm:"size:150" json:"first_name"`
	LastName              string     `gorm:"size:150" json:"last_name"`
	Phone                 string     `gorm:"size:15" json:"phone"`
	TempPasswordExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStudent reports whether the account carries the student role.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// FullName returns the display name, falling back to the username.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// HasActiveTempPassword reports whether the stored hash is a still-valid
// one-time credential at the given instant.
func (u User) HasActiveTempPassword(now time.Time) bool {
	return u.TempPasswordExpiresAt != nil && u.TempPasswordExpiresAt.After(now)
}

// HasExpiredTempPassword reports whether the stored hash is a temporary
// credential whose validity window has already elapsed.
func (u User) HasExpiredTempPassword(now time.Time) bool {
	return u.TempPasswordExpiresAt != nil && !u.TempPasswordExpiresAt.After(now)
}

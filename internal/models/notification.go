package models

import "time"

// Notification is an in-app message shown on a user's dashboard, e.g. when an
// admin deletes a student's document and asks for a re-upload.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Password reset audit results.
const (
	ResetResultSent          = "sent"
	ResetResultRateLimitUser = "rate_limit_user"
	ResetResultRateLimitIP   = "rate_limit_ip"
	ResetResultNoMatch       = "no_match"
)

// PasswordResetAuditLog is an append-only record of a forgot-password attempt.
// UserID stays nil when no account matched so responses never have to reveal
// account existence. Plaintext credentials are never stored.
type PasswordResetAuditLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	EmailAttempted bool      `gorm:"not null;default:false" json:"email_attempted"`
	EmailSuccess   bool      `gorm:"not null;default:false" json:"email_success"`
	SMSAttempted   bool      `gorm:"not null;default:false" json:"sms_attempted"`
	SMSSuccess     bool      `gorm:"not null;default:false" json:"sms_success"`
	IPAddress      string    `gorm:"size:45" json:"ip_address"`
	UserAgent      string    `gorm:"size:500" json:"user_agent"`
	Result         string    `gorm:"size:32;not null" json:"result"`
	RequestedAt    time.Time `gorm:"autoCreateTime" json:"requested_at"`
}

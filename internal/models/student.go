package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// VisaStatus tracks where a student sits in visa processing. Transitions are
// intentionally permissive: an admin may set any status from any other.
type VisaStatus string

// Visa processing statuses.
const (
	VisaStatusRegistered         VisaStatus = "REGISTERED"
	VisaStatusDocumentsSubmitted VisaStatus = "DOCUMENTS_SUBMITTED"
	VisaStatusUnderReview        VisaStatus = "UNDER_REVIEW"
	VisaStatusApproved           VisaStatus = "APPROVED"
	VisaStatusRejected           VisaStatus = "REJECTED"
)

// ValidVisaStatus reports whether the value is one of the known statuses.
func ValidVisaStatus(s VisaStatus) bool {
	switch s {
	case VisaStatusRegistered, VisaStatusDocumentsSubmitted, VisaStatusUnderReview, VisaStatusApproved, VisaStatusRejected:
		return true
	default:
		return false
	}
}

// StudentProfile holds visa-processing details for a student account. The
// profile exclusively owns its photo blob: the old blob is removed whenever
// the photo is replaced or the profile is deleted.
type StudentProfile struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PassportNumber *string    `gorm:"size:20;uniqueIndex" json:"passport_number"`
	Address        string     `gorm:"type:text" json:"address"`
	PhotoURL       string     `gorm:"size:512" json:"photo_url"`
	PhotoPublicID  string     `gorm:"size:255" json:"-"`
	VisaStatus     VisaStatus `gorm:"size:20;not null;default:REGISTERED" json:"visa_status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeSave normalizes an empty passport number to NULL so the unique index
// never collides on empty strings.
func (p *StudentProfile) BeforeSave(tx *gorm.DB) error {
	if p.PassportNumber != nil {
		trimmed := strings.TrimSpace(*p.PassportNumber)
		if trimmed == "" {
			p.PassportNumber = nil
		} else {
			p.PassportNumber = &trimmed
		}
	}
	return nil
}

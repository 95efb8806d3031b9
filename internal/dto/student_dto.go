package dto

import (
	"time"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// ProfileResponse is the API shape of a student profile.
type ProfileResponse struct {
	ID             uint      `json:"id"`
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	PassportNumber *string   `json:"passport_number"`
	Address        string    `json:"address"`
	PhotoURL       string    `json:"photo_url"`
	VisaStatus     string    `json:"visa_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewProfileResponse maps a model to its API shape.
func NewProfileResponse(p models.StudentProfile) ProfileResponse {
	return ProfileResponse{
		ID:             p.ID,
		UserID:         p.UserID,
		Username:       p.User.Username,
		FullName:       p.User.FullName(),
		Email:          p.User.Email,
		Phone:          p.User.Phone,
		PassportNumber: p.PassportNumber,
		Address:        p.Address,
		PhotoURL:       p.PhotoURL,
		VisaStatus:     string(p.VisaStatus),
		CreatedAt:      p.CreatedAt,
	}
}

// DashboardResponse aggregates everything the student dashboard shows.
type DashboardResponse struct {
	Profile             ProfileResponse        `json:"profile"`
	Documents           []DocumentResponse     `json:"documents"`
	TotalDocuments      int64                  `json:"total_documents"`
	DocumentCounts      map[string]int64       `json:"document_counts"`
	UnreadNotifications []NotificationResponse `json:"unread_notifications"`
	UnreadCount         int64                  `json:"unread_count"`
}

// ProfileUpdateRequest carries the editable profile fields. Nil fields are
// left unchanged; the photo travels as a separate multipart part.
type ProfileUpdateRequest struct {
	PassportNumber *string `json:"passport_number" validate:"omitempty,max=20"`
	Address        *string `json:"address" validate:"omitempty,max=2000"`
}

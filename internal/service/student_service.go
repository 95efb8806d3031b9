package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
)

// Profile flow errors surfaced to handlers.
var (
	ErrPassportTaken       = errors.New("this passport number is already registered")
	ErrPhotoTypeNotAllowed = errors.New("profile photo must be a jpg, jpeg or png image")
)

var photoExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ProfilePhotoInput carries an optional photo replacement.
type ProfilePhotoInput struct {
	FileName string
	File     io.ReadSeeker
}

// StudentService serves the student-facing dashboard and profile flows.
type StudentService interface {
	Dashboard(ctx context.Context, userID uint) (dto.DashboardResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest, photo *ProfilePhotoInput) (dto.ProfileResponse, error)
	ClearNotifications(ctx context.Context, userID uint) error
}

type studentService struct {
	profiles      repository.StudentProfileRepository
	documents     repository.DocumentRepository
	notifications repository.NotificationRepository
	storage       BlobStorage
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(
	profiles repository.StudentProfileRepository,
	documents repository.DocumentRepository,
	notifications repository.NotificationRepository,
	storage BlobStorage,
	validate *validator.Validate,
	logger zerolog.Logger,
) StudentService {
	return &studentService{
		profiles:      profiles,
		documents:     documents,
		notifications: notifications,
		storage:       storage,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "student_service").Logger(),
	}
}

// Dashboard aggregates the profile, documents and unread notifications into
// one response. The profile is created lazily on first visit.
func (s *studentService) Dashboard(ctx context.Context, userID uint) (dto.DashboardResponse, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	documents, err := s.documents.ListByStudent(ctx, userID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	typeCounts, err := s.documents.CountByTypeForStudent(ctx, userID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	counts := make(map[string]int64, len(typeCounts))
	for docType, count := range typeCounts {
		counts[string(docType)] = count
	}

	unread, err := s.notifications.ListUnreadByUser(ctx, userID, 10)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	unreadCount, err := s.notifications.CountUnreadByUser(ctx, userID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	return dto.DashboardResponse{
		Profile:             dto.NewProfileResponse(profile),
		Documents:           dto.NewDocumentResponseSlice(documents),
		TotalDocuments:      int64(len(documents)),
		DocumentCounts:      counts,
		UnreadNotifications: dto.NewNotificationResponseSlice(unread),
		UnreadCount:         unreadCount,
	}, nil
}

func (s *studentService) UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest, photo *ProfilePhotoInput) (dto.ProfileResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}

	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	if req.PassportNumber != nil {
		passport := strings.ToUpper(strings.TrimSpace(*req.PassportNumber))
		if passport == "" {
			profile.PassportNumber = nil
		} else {
			profile.PassportNumber = &passport
		}
	}
	if req.Address != nil {
		profile.Address = strings.TrimSpace(s.sanitizer.Sanitize(*req.Address))
	}

	oldPhotoPublicID := ""
	if photo != nil {
		ext := strings.ToLower(filepath.Ext(photo.FileName))
		if !photoExtensions[ext] {
			return dto.ProfileResponse{}, ErrPhotoTypeNotAllowed
		}

		asset, err := s.storage.Upload(ctx, photo.FileName, photo.File)
		if err != nil {
			return dto.ProfileResponse{}, fmt.Errorf("failed to store photo: %w", err)
		}

		oldPhotoPublicID = profile.PhotoPublicID
		profile.PhotoURL = asset.URL
		profile.PhotoPublicID = asset.PublicID
	}

	if err := s.profiles.Update(ctx, &profile); err != nil {
		if isUniqueViolation(err) {
			return dto.ProfileResponse{}, ErrPassportTaken
		}
		return dto.ProfileResponse{}, err
	}

	// The row now references the new photo; the old blob is released after.
	if oldPhotoPublicID != "" {
		if err := s.storage.Delete(ctx, oldPhotoPublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", oldPhotoPublicID).Msg("failed to remove replaced photo")
		}
	}

	s.logger.Info().Uint("user_id", userID).Msg("profile updated")
	return dto.NewProfileResponse(profile), nil
}

func (s *studentService) ClearNotifications(ctx context.Context, userID uint) error {
	return s.notifications.MarkAllRead(ctx, userID)
}

// isUniqueViolation matches both the GORM sentinel and driver-level unique
// constraint messages.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

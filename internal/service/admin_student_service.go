package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/internal/session"
)

// Admin workflow errors surfaced to handlers.
var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrVisaStatusInvalid = errors.New("unknown visa status")
	ErrNoPendingEdit     = errors.New("no staged edit found, it may have expired")
	ErrNoPendingDelete   = errors.New("no staged deletion found, it may have expired")
	ErrNothingToChange   = errors.New("the staged edit contains no changes")
)

// AdminStudentService serves the admin console: listing with analytics,
// drill-down, status updates, and the two-step edit and delete workflows.
// Students are addressed by their user id throughout.
type AdminStudentService interface {
	List(ctx context.Context, req dto.AdminStudentListRequest) (dto.AdminStudentListResponse, error)
	Detail(ctx context.Context, studentUserID uint) (dto.AdminStudentDetailResponse, error)
	UpdateStatus(ctx context.Context, studentUserID uint, req dto.VisaStatusUpdateRequest) (dto.ProfileResponse, error)

	StageEdit(ctx context.Context, adminID, studentUserID uint, req dto.AdminStudentEditRequest) (dto.PendingEditResponse, error)
	ConfirmEdit(ctx context.Context, studentUserID uint) (dto.ProfileResponse, error)
	CancelEdit(ctx context.Context, studentUserID uint) error

	StageDelete(ctx context.Context, studentUserID uint) error
	ConfirmDelete(ctx context.Context, studentUserID uint) error
	CancelDelete(ctx context.Context, studentUserID uint) error
}

type adminStudentService struct {
	users         repository.UserRepository
	profiles      repository.StudentProfileRepository
	documents     repository.DocumentRepository
	notifications repository.NotificationRepository
	sessions      *session.Store
	storage       BlobStorage
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewAdminStudentService constructs the admin student service.
func NewAdminStudentService(
	users repository.UserRepository,
	profiles repository.StudentProfileRepository,
	documents repository.DocumentRepository,
	notifications repository.NotificationRepository,
	sessions *session.Store,
	storage BlobStorage,
	validate *validator.Validate,
	logger zerolog.Logger,
) AdminStudentService {
	return &adminStudentService{
		users:         users,
		profiles:      profiles,
		documents:     documents,
		notifications: notifications,
		sessions:      sessions,
		storage:       storage,
		validator:     validate,
		logger:        logger.With().Str("component", "admin_student_service").Logger(),
	}
}

func (s *adminStudentService) List(ctx context.Context, req dto.AdminStudentListRequest) (dto.AdminStudentListResponse, error) {
	filter := repository.StudentFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Status != "" {
		status := models.VisaStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if !models.ValidVisaStatus(status) {
			return dto.AdminStudentListResponse{}, ErrVisaStatusInvalid
		}
		filter.Status = status
	}

	profiles, total, err := s.profiles.List(ctx, filter)
	if err != nil {
		return dto.AdminStudentListResponse{}, err
	}

	items := make([]dto.AdminStudentListItem, 0, len(profiles))
	for _, profile := range profiles {
		count, err := s.documents.CountByStudent(ctx, profile.UserID)
		if err != nil {
			return dto.AdminStudentListResponse{}, err
		}
		items = append(items, dto.AdminStudentListItem{
			ProfileResponse: dto.NewProfileResponse(profile),
			DocumentCount:   count,
		})
	}

	statusCounts, err := s.profiles.StatusCounts(ctx)
	if err != nil {
		return dto.AdminStudentListResponse{}, err
	}

	breakdown := make(map[string]int64, len(statusCounts))
	var totalStudents int64
	for status, count := range statusCounts {
		breakdown[string(status)] = count
		totalStudents += count
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return dto.AdminStudentListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
		StatusBreakdown: breakdown,
		TotalStudents:   totalStudents,
		ApprovedCount:   statusCounts[models.VisaStatusApproved],
		RejectedCount:   statusCounts[models.VisaStatusRejected],
		PendingCount: statusCounts[models.VisaStatusRegistered] +
			statusCounts[models.VisaStatusDocumentsSubmitted] +
			statusCounts[models.VisaStatusUnderReview],
	}, nil
}

func (s *adminStudentService) Detail(ctx context.Context, studentUserID uint) (dto.AdminStudentDetailResponse, error) {
	profile, err := s.loadStudent(ctx, studentUserID)
	if err != nil {
		return dto.AdminStudentDetailResponse{}, err
	}

	documents, err := s.documents.ListByStudent(ctx, studentUserID)
	if err != nil {
		return dto.AdminStudentDetailResponse{}, err
	}

	return dto.AdminStudentDetailResponse{
		Profile:   dto.NewProfileResponse(profile),
		Documents: dto.NewDocumentResponseSlice(documents),
	}, nil
}

func (s *adminStudentService) UpdateStatus(ctx context.Context, studentUserID uint, req dto.VisaStatusUpdateRequest) (dto.ProfileResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}

	status := models.VisaStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !models.ValidVisaStatus(status) {
		return dto.ProfileResponse{}, ErrVisaStatusInvalid
	}

	profile, err := s.loadStudent(ctx, studentUserID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	previous := profile.VisaStatus
	profile.VisaStatus = status
	if err := s.profiles.Update(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	if previous != status {
		notification := models.Notification{
			UserID:  studentUserID,
			Message: "Your visa application status changed to " + string(status) + ".",
		}
		if err := s.notifications.Create(ctx, &notification); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentUserID).Msg("failed to create status notification")
		}
	}

	s.logger.Info().
		Uint("student_id", studentUserID).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("visa status updated")

	return dto.NewProfileResponse(profile), nil
}

// StageEdit validates and parks the changes; nothing is written until the
// admin confirms.
func (s *adminStudentService) StageEdit(ctx context.Context, adminID, studentUserID uint, req dto.AdminStudentEditRequest) (dto.PendingEditResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.PendingEditResponse{}, err
	}
	if req.FirstName == nil && req.LastName == nil && req.Email == nil &&
		req.Phone == nil && req.PassportNumber == nil && req.Address == nil {
		return dto.PendingEditResponse{}, ErrNothingToChange
	}

	if _, err := s.loadStudent(ctx, studentUserID); err != nil {
		return dto.PendingEditResponse{}, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email

		current, err := s.users.GetByID(ctx, studentUserID)
		if err != nil {
			return dto.PendingEditResponse{}, err
		}
		if email != strings.ToLower(current.Email) {
			taken, err := s.users.ExistsByEmail(ctx, email)
			if err != nil {
				return dto.PendingEditResponse{}, err
			}
			if taken {
				return dto.PendingEditResponse{}, ErrEmailTaken
			}
		}
	}

	edit := session.PendingEdit{
		StudentID:      studentUserID,
		AdminID:        adminID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		PassportNumber: req.PassportNumber,
		Address:        req.Address,
	}
	if err := s.sessions.PutPendingEdit(ctx, edit); err != nil {
		return dto.PendingEditResponse{}, err
	}

	s.logger.Info().Uint("student_id", studentUserID).Uint("admin_id", adminID).Msg("student edit staged")

	return dto.PendingEditResponse{
		StudentID:      studentUserID,
		FirstName:      edit.FirstName,
		LastName:       edit.LastName,
		Email:          edit.Email,
		Phone:          edit.Phone,
		PassportNumber: edit.PassportNumber,
		Address:        edit.Address,
	}, nil
}

func (s *adminStudentService) ConfirmEdit(ctx context.Context, studentUserID uint) (dto.ProfileResponse, error) {
	edit, err := s.sessions.GetPendingEdit(ctx, studentUserID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return dto.ProfileResponse{}, ErrNoPendingEdit
		}
		return dto.ProfileResponse{}, err
	}

	user, err := s.users.GetByID(ctx, studentUserID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	if edit.FirstName != nil {
		user.FirstName = strings.TrimSpace(*edit.FirstName)
	}
	if edit.LastName != nil {
		user.LastName = strings.TrimSpace(*edit.LastName)
	}
	if edit.Email != nil {
		user.Email = *edit.Email
	}
	if edit.Phone != nil {
		user.Phone = strings.TrimSpace(*edit.Phone)
	}
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.ProfileResponse{}, err
	}

	profile, err := s.profiles.GetOrCreate(ctx, studentUserID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	if edit.PassportNumber != nil {
		passport := strings.ToUpper(strings.TrimSpace(*edit.PassportNumber))
		if passport == "" {
			profile.PassportNumber = nil
		} else {
			profile.PassportNumber = &passport
		}
	}
	if edit.Address != nil {
		profile.Address = strings.TrimSpace(*edit.Address)
	}
	if err := s.profiles.Update(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	if err := s.sessions.DeletePendingEdit(ctx, studentUserID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentUserID).Msg("failed to discard applied edit")
	}

	// Reload with the fresh user row for the response.
	profile, err = s.profiles.GetByUserID(ctx, studentUserID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	s.logger.Info().Uint("student_id", studentUserID).Uint("admin_id", edit.AdminID).Msg("student edit applied")
	return dto.NewProfileResponse(profile), nil
}

func (s *adminStudentService) CancelEdit(ctx context.Context, studentUserID uint) error {
	if _, err := s.sessions.GetPendingEdit(ctx, studentUserID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNoPendingEdit
		}
		return err
	}
	return s.sessions.DeletePendingEdit(ctx, studentUserID)
}

func (s *adminStudentService) StageDelete(ctx context.Context, studentUserID uint) error {
	if _, err := s.loadStudent(ctx, studentUserID); err != nil {
		return err
	}
	if err := s.sessions.MarkPendingDelete(ctx, studentUserID); err != nil {
		return err
	}
	s.logger.Info().Uint("student_id", studentUserID).Msg("student deletion staged")
	return nil
}

// ConfirmDelete removes the student's rows first, then releases the blobs.
// Blob failures only log; the records are already gone.
func (s *adminStudentService) ConfirmDelete(ctx context.Context, studentUserID uint) error {
	staged, err := s.sessions.HasPendingDelete(ctx, studentUserID)
	if err != nil {
		return err
	}
	if !staged {
		return ErrNoPendingDelete
	}

	profile, err := s.loadStudent(ctx, studentUserID)
	if err != nil {
		return err
	}
	documents, err := s.documents.ListByStudent(ctx, studentUserID)
	if err != nil {
		return err
	}

	if err := s.documents.DeleteByStudent(ctx, studentUserID); err != nil {
		return err
	}
	if err := s.notifications.DeleteByUser(ctx, studentUserID); err != nil {
		return err
	}
	if err := s.profiles.DeleteByUserID(ctx, studentUserID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, studentUserID); err != nil {
		return err
	}

	for _, document := range documents {
		if err := s.storage.Delete(ctx, document.FilePublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", document.FilePublicID).Msg("failed to remove document blob")
		}
	}
	if profile.PhotoPublicID != "" {
		if err := s.storage.Delete(ctx, profile.PhotoPublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", profile.PhotoPublicID).Msg("failed to remove photo blob")
		}
	}

	if err := s.sessions.ClearPendingDelete(ctx, studentUserID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentUserID).Msg("failed to clear delete marker")
	}

	s.logger.Info().Uint("student_id", studentUserID).Int("documents", len(documents)).Msg("student deleted")
	return nil
}

func (s *adminStudentService) CancelDelete(ctx context.Context, studentUserID uint) error {
	staged, err := s.sessions.HasPendingDelete(ctx, studentUserID)
	if err != nil {
		return err
	}
	if !staged {
		return ErrNoPendingDelete
	}
	return s.sessions.ClearPendingDelete(ctx, studentUserID)
}

// loadStudent resolves a student profile by user id. Admin accounts are not
// reachable through this path.
func (s *adminStudentService) loadStudent(ctx context.Context, studentUserID uint) (models.StudentProfile, error) {
	user, err := s.users.GetByID(ctx, studentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StudentProfile{}, ErrStudentNotFound
		}
		return models.StudentProfile{}, err
	}
	if !user.IsStudent() {
		return models.StudentProfile{}, ErrStudentNotFound
	}

	return s.profiles.GetOrCreate(ctx, studentUserID)
}

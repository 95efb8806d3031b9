package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/observability"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/pkg/cloudinary"
)

// Document flow errors surfaced to handlers.
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentForbidden   = errors.New("you do not have access to this document")
	ErrDocumentTypeInvalid = errors.New("unknown document type")
	ErrFileTypeNotAllowed  = errors.New("only pdf, jpg, jpeg and png files are accepted")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
	ErrFileContentMismatch = errors.New("file content does not match its extension")
)

// Extensions accepted for upload and the superset a browser can preview.
var (
	uploadExtensions  = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true}
	previewExtensions = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
)

// BlobStorage is the slice of the blob store the document service needs.
type BlobStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.Asset, error)
	Delete(ctx context.Context, publicID string) error
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Actor identifies the authenticated caller for authorization decisions.
type Actor struct {
	UserID  uint
	IsAdmin bool
}

// UploadDocumentInput carries one multipart upload.
type UploadDocumentInput struct {
	StudentUserID uint
	DocumentType  string
	Title         string
	FileName      string
	FileSize      int64
	File          io.ReadSeeker
}

// DownloadResult streams a stored file back as an attachment. The caller
// must close Content.
type DownloadResult struct {
	FileName    string
	ContentType string
	Content     io.ReadCloser
}

// DocumentService owns the document lifecycle, including blob cleanup after
// row mutations.
type DocumentService interface {
	Upload(ctx context.Context, actor Actor, input UploadDocumentInput) (dto.DocumentResponse, error)
	View(ctx context.Context, actor Actor, documentID uint) (dto.DocumentViewResponse, error)
	Download(ctx context.Context, actor Actor, documentID uint) (DownloadResult, error)
	Delete(ctx context.Context, actor Actor, documentID uint) error
}

type documentService struct {
	documents     repository.DocumentRepository
	profiles      repository.StudentProfileRepository
	notifications repository.NotificationRepository
	storage       BlobStorage
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	maxFileBytes  int64
	logger        zerolog.Logger
}

// NewDocumentService constructs the document service. maxFileMB bounds
// uploads; zero falls back to 10 MB.
func NewDocumentService(
	documents repository.DocumentRepository,
	profiles repository.StudentProfileRepository,
	notifications repository.NotificationRepository,
	storage BlobStorage,
	validate *validator.Validate,
	maxFileMB int,
	logger zerolog.Logger,
) DocumentService {
	if maxFileMB <= 0 {
		maxFileMB = 10
	}

	return &documentService{
		documents:     documents,
		profiles:      profiles,
		notifications: notifications,
		storage:       storage,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		maxFileBytes:  int64(maxFileMB) << 20,
		logger:        logger.With().Str("component", "document_service").Logger(),
	}
}

func (s *documentService) Upload(ctx context.Context, actor Actor, input UploadDocumentInput) (dto.DocumentResponse, error) {
	if !actor.IsAdmin && actor.UserID != input.StudentUserID {
		return dto.DocumentResponse{}, ErrDocumentForbidden
	}

	docType := models.DocumentType(strings.ToUpper(strings.TrimSpace(input.DocumentType)))
	if !models.ValidDocumentType(docType) {
		observability.UploadsRejected().WithLabelValues("type").Inc()
		return dto.DocumentResponse{}, ErrDocumentTypeInvalid
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(input.Title))
	if title == "" {
		title = docType.DisplayName()
	}

	ext := strings.ToLower(filepath.Ext(input.FileName))
	if !uploadExtensions[ext] {
		observability.UploadsRejected().WithLabelValues("extension").Inc()
		return dto.DocumentResponse{}, ErrFileTypeNotAllowed
	}
	if input.FileSize > s.maxFileBytes {
		observability.UploadsRejected().WithLabelValues("too_large").Inc()
		return dto.DocumentResponse{}, ErrFileTooLarge
	}

	if err := s.verifyContent(input.File, ext); err != nil {
		observability.UploadsRejected().WithLabelValues("content_mismatch").Inc()
		return dto.DocumentResponse{}, err
	}

	asset, err := s.storage.Upload(ctx, input.FileName, input.File)
	if err != nil {
		return dto.DocumentResponse{}, fmt.Errorf("failed to store file: %w", err)
	}

	var uploadedBy *uint
	if actor.IsAdmin {
		adminID := actor.UserID
		uploadedBy = &adminID
	}

	existing, err := s.documents.FindByKey(ctx, input.StudentUserID, docType, title)
	switch {
	case err == nil:
		// Replace: the row keeps its identity, the prior blob is released
		// once the new one is referenced.
		oldPublicID := existing.FilePublicID
		existing.FileURL = asset.URL
		existing.FilePublicID = asset.PublicID
		existing.FileName = input.FileName
		existing.FileSizeBytes = input.FileSize
		existing.UploadedByID = uploadedBy

		if err := s.documents.Update(ctx, &existing); err != nil {
			s.cleanupBlob(ctx, asset.PublicID)
			return dto.DocumentResponse{}, err
		}
		s.cleanupBlob(ctx, oldPublicID)

		s.logger.Info().Uint("document_id", existing.ID).Str("type", string(docType)).Msg("document replaced")
		return dto.NewDocumentResponse(existing), nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		document := models.Document{
			StudentID:     input.StudentUserID,
			DocumentType:  docType,
			Title:         title,
			FileURL:       asset.URL,
			FilePublicID:  asset.PublicID,
			FileName:      input.FileName,
			FileSizeBytes: input.FileSize,
			UploadedByID:  uploadedBy,
		}
		if err := s.documents.Create(ctx, &document); err != nil {
			s.cleanupBlob(ctx, asset.PublicID)
			return dto.DocumentResponse{}, err
		}

		s.advanceStatusOnFirstUpload(ctx, input.StudentUserID)

		s.logger.Info().Uint("document_id", document.ID).Str("type", string(docType)).Msg("document uploaded")
		return dto.NewDocumentResponse(document), nil

	default:
		s.cleanupBlob(ctx, asset.PublicID)
		return dto.DocumentResponse{}, err
	}
}

func (s *documentService) View(ctx context.Context, actor Actor, documentID uint) (dto.DocumentViewResponse, error) {
	document, err := s.authorize(ctx, actor, documentID)
	if err != nil {
		return dto.DocumentViewResponse{}, err
	}

	ext := strings.ToLower(filepath.Ext(document.FileName))
	return dto.DocumentViewResponse{
		Document:    dto.NewDocumentResponse(document),
		FileURL:     document.FileURL,
		Previewable: previewExtensions[ext],
		IsPDF:       ext == ".pdf",
	}, nil
}

func (s *documentService) Download(ctx context.Context, actor Actor, documentID uint) (DownloadResult, error) {
	document, err := s.authorize(ctx, actor, documentID)
	if err != nil {
		return DownloadResult{}, err
	}

	content, err := s.storage.Open(ctx, document.FileURL)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("failed to open stored file: %w", err)
	}

	return DownloadResult{
		FileName:    document.FileName,
		ContentType: contentTypeForExt(strings.ToLower(filepath.Ext(document.FileName))),
		Content:     content,
	}, nil
}

func (s *documentService) Delete(ctx context.Context, actor Actor, documentID uint) error {
	document, err := s.authorize(ctx, actor, documentID)
	if err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, documentID); err != nil {
		return err
	}

	// The row is gone; blob and notification failures must not surface.
	s.cleanupBlob(ctx, document.FilePublicID)

	if actor.IsAdmin && actor.UserID != document.StudentID {
		notification := models.Notification{
			UserID:  document.StudentID,
			Message: fmt.Sprintf("Your document '%s' (%s) was removed by an administrator.", document.Title, document.DocumentType.DisplayName()),
		}
		if err := s.notifications.Create(ctx, &notification); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", document.StudentID).Msg("failed to create deletion notification")
		}
	}

	s.logger.Info().Uint("document_id", documentID).Uint("actor_id", actor.UserID).Msg("document deleted")
	return nil
}

// authorize loads the document and enforces owner-or-admin access.
func (s *documentService) authorize(ctx context.Context, actor Actor, documentID uint) (models.Document, error) {
	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	if !actor.IsAdmin && actor.UserID != document.StudentID {
		return models.Document{}, ErrDocumentForbidden
	}
	return document, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// verifyContent sniffs the real content type and rejects files whose bytes
// disagree with the claimed extension. The reader is rewound afterwards.
func (s *documentService) verifyContent(file io.ReadSeeker, ext string) error {
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return fmt.Errorf("failed to inspect file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	switch ext {
	case ".pdf":
		if !detected.Is("application/pdf") {
			return ErrFileContentMismatch
		}
	case ".jpg", ".jpeg":
		if !detected.Is("image/jpeg") {
			return ErrFileContentMismatch
		}
	case ".png":
		if !detected.Is("image/png") {
			return ErrFileContentMismatch
		}
	default:
		return ErrFileTypeNotAllowed
	}
	return nil
}

// advanceStatusOnFirstUpload moves a freshly registered student forward once
// their first document lands. Failures only log; the upload already
// succeeded.
func (s *documentService) advanceStatusOnFirstUpload(ctx context.Context, studentUserID uint) {
	profile, err := s.profiles.GetOrCreate(ctx, studentUserID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentUserID).Msg("failed to load profile for status advance")
		return
	}
	if profile.VisaStatus != models.VisaStatusRegistered {
		return
	}

	profile.VisaStatus = models.VisaStatusDocumentsSubmitted
	if err := s.profiles.Update(ctx, &profile); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentUserID).Msg("failed to advance visa status")
	}
}

func (s *documentService) cleanupBlob(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.storage.Delete(ctx, publicID); err != nil {
		s.logger.Warn().Err(err).Str("public_id", publicID).Msg("failed to remove stored blob")
	}
}

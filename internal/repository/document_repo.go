package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// DocumentRepository handles persistence for document rows. Blob cleanup is
// orchestrated by the document service after the row mutation commits.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id uint) (models.Document, error)
	FindByKey(ctx context.Context, studentID uint, documentType models.DocumentType, title string) (models.Document, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Document, error)
	CountByStudent(ctx context.Context, studentID uint) (int64, error)
	CountByTypeForStudent(ctx context.Context, studentID uint) (map[models.DocumentType]int64, error)
	Update(ctx context.Context, document *models.Document) error
	Delete(ctx context.Context, id uint) error
	DeleteByStudent(ctx context.Context, studentID uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs a repository backed by GORM.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).Preload("Student").First(&document, id).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

func (r *documentRepository) FindByKey(ctx context.Context, studentID uint, documentType models.DocumentType, title string) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND document_type = ? AND title = ?", studentID, documentType, title).
		First(&document).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

func (r *documentRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Document, error) {
	var documents []models.Document
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("uploaded_at DESC").
		Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *documentRepository) CountByStudent(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("student_id = ?", studentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *documentRepository) CountByTypeForStudent(ctx context.Context, studentID uint) (map[models.DocumentType]int64, error) {
	type row struct {
		DocumentType models.DocumentType
		Count        int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Document{}).
		Select("document_type, COUNT(*) AS count").
		Where("student_id = ?", studentID).
		Group("document_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.DocumentType]int64, len(rows))
	for _, r := range rows {
		counts[r.DocumentType] = r.Count
	}
	return counts, nil
}

func (r *documentRepository) Update(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Save(document).Error
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Document{}, id).Error
}

func (r *documentRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.db.WithContext(ctx).Where("student_id = ?", studentID).Delete(&models.Document{}).Error
}

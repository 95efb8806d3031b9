package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// StudentFilter narrows the admin student listing.
type StudentFilter struct {
	Search   string
	Status   models.VisaStatus
	Page     int
	PageSize int
}

// StudentProfileRepository provides access to student profiles.
type StudentProfileRepository interface {
	GetOrCreate(ctx context.Context, userID uint) (models.StudentProfile, error)
	GetByID(ctx context.Context, id uint) (models.StudentProfile, error)
	GetByUserID(ctx context.Context, userID uint) (models.StudentProfile, error)
	Update(ctx context.Context, profile *models.StudentProfile) error
	List(ctx context.Context, filter StudentFilter) ([]models.StudentProfile, int64, error)
	StatusCounts(ctx context.Context) (map[models.VisaStatus]int64, error)
	DeleteByUserID(ctx context.Context, userID uint) error
}

type studentProfileRepository struct {
	db *gorm.DB
}

// NewStudentProfileRepository constructs a repository backed by GORM.
func NewStudentProfileRepository(db *gorm.DB) StudentProfileRepository {
	return &studentProfileRepository{db: db}
}

// GetOrCreate returns the profile for the user, creating an empty one on
// first access. Profiles are created lazily on the first dashboard visit.
func (r *studentProfileRepository) GetOrCreate(ctx context.Context, userID uint) (models.StudentProfile, error) {
	var profile models.StudentProfile
	err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StudentProfile{}, err
	}

	profile = models.StudentProfile{UserID: userID, VisaStatus: models.VisaStatusRegistered}
	if err := r.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return models.StudentProfile{}, err
	}

	if err := r.db.WithContext(ctx).Preload("User").First(&profile, profile.ID).Error; err != nil {
		return models.StudentProfile{}, err
	}
	return profile, nil
}

func (r *studentProfileRepository) GetByID(ctx context.Context, id uint) (models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.WithContext(ctx).Preload("User").First(&profile, id).Error; err != nil {
		return models.StudentProfile{}, err
	}
	return profile, nil
}

func (r *studentProfileRepository) GetByUserID(ctx context.Context, userID uint) (models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return models.StudentProfile{}, err
	}
	return profile, nil
}

func (r *studentProfileRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *studentProfileRepository) List(ctx context.Context, filter StudentFilter) ([]models.StudentProfile, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := r.db.WithContext(ctx).Model(&models.StudentProfile{}).
		Joins("JOIN users ON users.id = student_profiles.user_id")

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(users.username) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if filter.Status != "" {
		query = query.Where("student_profiles.visa_status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var profiles []models.StudentProfile
	if err := query.Preload("User").
		Order("student_profiles.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *studentProfileRepository) StatusCounts(ctx context.Context) (map[models.VisaStatus]int64, error) {
	type row struct {
		VisaStatus models.VisaStatus
		Count      int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.StudentProfile{}).
		Select("visa_status, COUNT(*) AS count").
		Group("visa_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.VisaStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.VisaStatus] = r.Count
	}
	return counts, nil
}

func (r *studentProfileRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.StudentProfile{}).Error
}

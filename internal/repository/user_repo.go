package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// UserRepository provides access to portal accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindStudentByIdentifier(ctx context.Context, identifier string) (models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateCredential(ctx context.Context, id uint, passwordHash string, tempExpiresAt *time.Time) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// FindStudentByIdentifier matches the identifier case-insensitively against
// both username and email, restricted to student accounts. Admins cannot be
// resolved through this path.
func (r *userRepository) FindStudentByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(identifier))

	var user models.User
	if err := r.db.WithContext(ctx).
		Where("(LOWER(username) = ? OR LOWER(email) = ?) AND role = ?", normalized, normalized, models.RoleStudent).
		First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateCredential writes the password hash and the temporary-credential
// expiry in one statement, so a nil expiry clears the column.
func (r *userRepository) UpdateCredential(ctx context.Context, id uint, passwordHash string, tempExpiresAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash":            passwordHash,
			"temp_password_expires_at": tempExpiresAt,
		}).Error
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

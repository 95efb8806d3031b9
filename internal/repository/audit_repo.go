package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// ResetAuditRepository appends and reads password-reset audit rows. Rows are
// immutable once written; there is deliberately no update or delete.
type ResetAuditRepository interface {
	Create(ctx context.Context, entry *models.PasswordResetAuditLog) error
	ListRecent(ctx context.Context, limit int) ([]models.PasswordResetAuditLog, error)
}

type resetAuditRepository struct {
	db *gorm.DB
}

// NewResetAuditRepository constructs a repository backed by GORM.
func NewResetAuditRepository(db *gorm.DB) ResetAuditRepository {
	return &resetAuditRepository{db: db}
}

func (r *resetAuditRepository) Create(ctx context.Context, entry *models.PasswordResetAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *resetAuditRepository) ListRecent(ctx context.Context, limit int) ([]models.PasswordResetAuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.PasswordResetAuditLog
	if err := r.db.WithContext(ctx).
		Order("requested_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

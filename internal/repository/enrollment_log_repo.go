package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-activities-api/internal/models"
)

// EnrollmentLogFilter narrows enrollment log queries.
type EnrollmentLogFilter struct {
	Page     int
	PageSize int
	Activity string
	Email    string
	Action   string
}

// EnrollmentLogRepository persists the enrollment audit trail.
type EnrollmentLogRepository interface {
	Create(ctx context.Context, entry *models.EnrollmentLog) error
	List(ctx context.Context, filter EnrollmentLogFilter) ([]models.EnrollmentLog, int64, error)
}

type enrollmentLogRepository struct {
	db *gorm.DB
}

// NewEnrollmentLogRepository constructs the enrollment log repository.
func NewEnrollmentLogRepository(db *gorm.DB) EnrollmentLogRepository {
	return &enrollmentLogRepository{db: db}
}

func (r *enrollmentLogRepository) Create(ctx context.Context, entry *models.EnrollmentLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *enrollmentLogRepository) List(ctx context.Context, filter EnrollmentLogFilter) ([]models.EnrollmentLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.EnrollmentLog{})

	if filter.Activity != "" {
		query = query.Where("activity = ?", filter.Activity)
	}

	if filter.Email != "" {
		query = query.Where("email = ?", filter.Email)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var entries []models.EnrollmentLog
	if err := query.Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

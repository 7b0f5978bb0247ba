package repository

import (
	"context"
	"errors"

	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository stores user reports.
type ModerationRepository interface {
	Create(ctx context.Context, report *models.ModerationReport) error
	FindOpen(ctx context.Context, reporterID uint, targetType string, targetID uint) (*models.ModerationReport, error)
	GetByID(ctx context.Context, id uint) (*models.ModerationReport, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.ModerationReport, int64, error)
	Update(ctx context.Context, report *models.ModerationReport) error
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a ModerationRepository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) Create(ctx context.Context, report *models.ModerationReport) error {
	return r.db.WithContext(ctx).Omit("Reporter").Create(report).Error
}

// FindOpen returns the reporter's open report on the target, or nil.
func (r *moderationRepository) FindOpen(ctx context.Context, reporterID uint, targetType string, targetID uint) (*models.ModerationReport, error) {
	var report models.ModerationReport
	err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?", reporterID, targetType, targetID, models.ReportOpen).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *moderationRepository) GetByID(ctx context.Context, id uint) (*models.ModerationReport, error) {
	var report models.ModerationReport
	if err := r.db.WithContext(ctx).Preload("Reporter").First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Report", id)
		}
		return nil, err
	}
	return &report, nil
}

func (r *moderationRepository) List(ctx context.Context, status string, limit, offset int) ([]models.ModerationReport, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.ModerationReport{})
	if status != "" {
		base = base.Where("status = ?", status)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reports []models.ModerationReport
	err := base.Preload("Reporter").
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).Offset(offset).
		Find(&reports).Error
	return reports, total, err
}

func (r *moderationRepository) Update(ctx context.Context, report *models.ModerationReport) error {
	return r.db.WithContext(ctx).Model(report).
		Select("status", "resolved_by", "resolved_at", "resolution_note").
		Updates(report).Error
}

package repository

import (
	"context"
	"errors"

	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// ImageRepository stores uploaded image metadata.
type ImageRepository interface {
	Create(ctx context.Context, img *models.Image) error
	GetByHash(ctx context.Context, hash string) (*models.Image, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates an ImageRepository.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create inserts the image and its variants. A concurrent upload of the same
// bytes surfaces as a conflict; callers re-read by hash.
func (r *imageRepository) Create(ctx context.Context, img *models.Image) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("image already exists")
		}
		return err
	}
	return nil
}

// GetByHash returns the image with its variants, or nil when unknown.
func (r *imageRepository) GetByHash(ctx context.Context, hash string) (*models.Image, error) {
	var img models.Image
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("size_px ASC") }).
		Where("hash = ?", hash).First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}
